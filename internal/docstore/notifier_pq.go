package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pingInterval = 90 * time.Second

// PGNotifier publishes with pg_notify and listens with a dedicated lib/pq connection.
type PGNotifier struct {
	db      *gorm.DB
	dsn     string
	channel string
}

func NewPGNotifier(db *gorm.DB, dsn, channel string) *PGNotifier {
	return &PGNotifier{db: db, dsn: dsn, channel: channel}
}

func (n *PGNotifier) Publish(ctx context.Context, collection string) error {
	return n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, collection).Error
}

func (n *PGNotifier) Subscribe(ctx context.Context) (Feed, error) {
	listener := pq.NewListener(n.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("notify listener event", "channel", n.channel, "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(n.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", n.channel, err)
	}

	f := &pgFeed{
		listener: listener,
		events:   make(chan string, 16),
		done:     make(chan struct{}),
	}
	go f.run(ctx)
	return f, nil
}

type pgFeed struct {
	listener *pq.Listener
	events   chan string
	done     chan struct{}
	once     sync.Once
}

func (f *pgFeed) run(ctx context.Context) {
	defer close(f.events)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect: notifications may have been missed
			payload := ""
			if n != nil {
				payload = n.Extra
			}
			select {
			case f.events <- payload:
			case <-f.done:
				return
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			go f.listener.Ping()
		case <-f.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (f *pgFeed) C() <-chan string {
	return f.events
}

func (f *pgFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.listener.Close()
	})
	return err
}
