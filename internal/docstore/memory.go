package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. Listeners are notified synchronously on the
// writing goroutine after the write commits, so a write that returns has already been
// delivered to every live query on its collection.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Document

	// notifyMu serializes deliveries so the last delivery always carries the latest state.
	notifyMu  sync.Mutex
	listeners map[int]*memoryListener
	nextID    int

	Now   func() time.Time
	NewID func() string
}

type memoryListener struct {
	query      Query
	onSnapshot func([]Snapshot)
	onError    func(error)
	stop       chan struct{}
	once       sync.Once
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		listeners:   make(map[int]*memoryListener),
		Now:         time.Now,
		NewID:       func() string { return uuid.NewString() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, collection string, data Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := prepareCreate(data, s.Now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	id := s.NewID()
	s.collection(collection)[id] = doc
	s.mu.Unlock()

	s.notify(collection)
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{ID: id, Data: cloneDocument(doc)}, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch Document) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Update(collection, id, patch)
	})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Delete(collection, id)
	})
}

func (s *MemoryStore) List(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	snaps := s.snapshotLocked(q)
	s.mu.Unlock()
	return snaps, nil
}

func (s *MemoryStore) snapshotLocked(q Query) []Snapshot {
	docs := s.collections[q.Collection]
	snaps := make([]Snapshot, 0, len(docs))
	for id, doc := range docs {
		snaps = append(snaps, Snapshot{ID: id, Data: cloneDocument(doc)})
	}
	sortSnapshots(snaps, q)
	return snaps
}

func (s *MemoryStore) Listen(ctx context.Context, q Query, onSnapshot func([]Snapshot), onError func(error)) (Listener, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := &memoryListener{
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		stop:       make(chan struct{}),
	}

	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Lock()
	initial := s.snapshotLocked(q)
	s.mu.Unlock()
	onSnapshot(initial)
	s.notifyMu.Unlock()

	remove := func() {
		s.notifyMu.Lock()
		delete(s.listeners, id)
		s.notifyMu.Unlock()
	}

	go func() {
		select {
		case <-ctx.Done():
			l.once.Do(func() {
				close(l.stop)
				remove()
				if onError != nil {
					onError(ErrListenerStopped)
				}
			})
		case <-l.stop:
		}
	}()

	return listenerFunc(func() {
		l.once.Do(func() {
			close(l.stop)
			remove()
		})
	}), nil
}

func (s *MemoryStore) notify(collections ...string) {
	if len(collections) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, l := range s.listeners {
		if !touches(collections, l.query.Collection) {
			continue
		}
		select {
		case <-l.stop:
			continue
		default:
		}
		s.mu.Lock()
		snaps := s.snapshotLocked(l.query)
		s.mu.Unlock()
		l.onSnapshot(snaps)
	}
}

func touches(collections []string, c string) bool {
	for _, t := range collections {
		if t == c {
			return true
		}
	}
	return false
}

func (s *MemoryStore) collection(name string) map[string]Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]Document)
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	tx := &memoryTx{store: s, now: s.Now(), staged: make(map[string]map[string]Document)}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	touched := make([]string, 0, len(tx.staged))
	for collection, docs := range tx.staged {
		target := s.collection(collection)
		for id, doc := range docs {
			if doc == nil {
				delete(target, id)
			} else {
				target[id] = doc
			}
		}
		touched = append(touched, collection)
	}
	s.mu.Unlock()

	s.notify(touched...)
	return nil
}

// memoryTx runs with the store lock held. A nil staged document marks a deletion.
type memoryTx struct {
	store  *MemoryStore
	now    time.Time
	staged map[string]map[string]Document
}

func (tx *memoryTx) lookup(collection, id string) (Document, bool) {
	if docs, ok := tx.staged[collection]; ok {
		if doc, ok := docs[id]; ok {
			return doc, doc != nil
		}
	}
	doc, ok := tx.store.collections[collection][id]
	return doc, ok
}

func (tx *memoryTx) stage(collection, id string, doc Document) {
	docs, ok := tx.staged[collection]
	if !ok {
		docs = make(map[string]Document)
		tx.staged[collection] = docs
	}
	docs[id] = doc
}

func (tx *memoryTx) Get(collection, id string) (Snapshot, error) {
	doc, ok := tx.lookup(collection, id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{ID: id, Data: cloneDocument(doc)}, nil
}

func (tx *memoryTx) Update(collection, id string, patch Document) error {
	current, ok := tx.lookup(collection, id)
	if !ok {
		return ErrNotFound
	}
	next, err := applyPatch(current, patch, tx.now)
	if err != nil {
		return err
	}
	tx.stage(collection, id, next)
	return nil
}

func (tx *memoryTx) Delete(collection, id string) error {
	if _, ok := tx.lookup(collection, id); !ok {
		return ErrNotFound
	}
	tx.stage(collection, id, nil)
	return nil
}
