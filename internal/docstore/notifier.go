package docstore

import "context"

// Notifier carries "collection changed" events between the processes sharing one
// database. An empty collection name means "anything may have changed".
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	Subscribe(ctx context.Context) (Feed, error)
}

// Feed is one subscription to a Notifier. C is closed after Close or on failure.
type Feed interface {
	C() <-chan string
	Close() error
}
