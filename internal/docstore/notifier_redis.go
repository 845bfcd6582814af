package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RedisNotifier fans change events out over a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, n.channel, collection).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (Feed, error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}

	f := &redisFeed{pubsub: pubsub, events: make(chan string, 16)}
	go f.run(ctx)
	return f, nil
}

type redisFeed struct {
	pubsub *redis.PubSub
	events chan string
	once   sync.Once
}

func (f *redisFeed) run(ctx context.Context) {
	defer close(f.events)
	for msg := range f.pubsub.Channel() {
		select {
		case f.events <- msg.Payload:
		case <-ctx.Done():
			return
		}
	}
}

func (f *redisFeed) C() <-chan string {
	return f.events
}

func (f *redisFeed) Close() error {
	var err error
	f.once.Do(func() {
		err = f.pubsub.Close()
	})
	return err
}
