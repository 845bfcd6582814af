package docstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrFeedClosed    = errors.New("change feed closed")
	ErrInvalidPatch  = errors.New("invalid patch")
	ErrEmptyDocument = errors.New("document has no fields")

	// ErrListenerStopped wraps context.Canceled so listeners can discard it like any
	// other cancellation.
	ErrListenerStopped = fmt.Errorf("listener stopped: %w", context.Canceled)
)

// Document is the untyped field set of one stored record. Values read back from a
// store are always JSON shaped: string, float64, bool, nil, []any or map[string]any.
type Document map[string]any

type Snapshot struct {
	ID   string
	Data Document
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Query selects every document of a collection ordered by one top-level field.
// Ties are broken by document id, ascending.
type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
}

func (q Query) validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	return nil
}

// Store is the remote document database collaborator.
type Store interface {
	Create(ctx context.Context, collection string, data Document) (string, error)
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	// Update merges patch into the stored document. Patch values may be Transforms.
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, q Query) ([]Snapshot, error)

	// Listen delivers the full ordered result set once immediately and again after every
	// change to the collection. onError is called at most once, after which no more
	// snapshots arrive; it receives ErrListenerStopped (or ctx.Err()) when ctx ends.
	// Callbacks must not write to the store synchronously.
	Listen(ctx context.Context, q Query, onSnapshot func([]Snapshot), onError func(error)) (Listener, error)

	// RunTransaction runs fn with exclusive access to every document it touches.
	// Nothing fn writes is visible unless fn returns nil.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Get(collection, id string) (Snapshot, error)
	Update(collection, id string, patch Document) error
	Delete(collection, id string) error
}

// Listener is the handle of a live query. Stop is idempotent and does not call onError.
type Listener interface {
	Stop()
}

type listenerFunc func()

func (f listenerFunc) Stop() { f() }

// Transform is a patch value computed by the store against the stored value.
type Transform interface {
	isTransform()
}

type arrayUnion struct{ values []any }

type arrayRemove struct{ values []any }

type serverTimestamp struct{}

func (arrayUnion) isTransform()      {}
func (arrayRemove) isTransform()     {}
func (serverTimestamp) isTransform() {}

// ArrayUnion appends each value not already present in the stored array.
// Concurrent unions never drop each other's elements.
func ArrayUnion(values ...any) Transform {
	return arrayUnion{values: values}
}

// ArrayRemove drops every element equal to one of values.
func ArrayRemove(values ...any) Transform {
	return arrayRemove{values: values}
}

// ServerTimestamp is replaced by the store's clock at write time.
func ServerTimestamp() Transform {
	return serverTimestamp{}
}
