package state

import "sync"

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Container holds one store's state and notifies subscribers after every update.
// Values handed out must be treated as read-only; updates replace slices instead of
// mutating them in place.
type Container[S any] struct {
	mu     sync.RWMutex
	state  S
	subs   map[int]func(S)
	nextID int
}

func NewContainer[S any](initial S) *Container[S] {
	return &Container[S]{
		state: initial,
		subs:  make(map[int]func(S)),
	}
}

func (c *Container[S]) Get() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Update applies fn under the write lock, then notifies subscribers outside it.
func (c *Container[S]) Update(fn func(s *S)) {
	c.mu.Lock()
	fn(&c.state)
	next := c.state
	subs := make([]func(S), 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
}

// Subscribe registers fn for every future update. The returned func unregisters it.
func (c *Container[S]) Subscribe(fn func(S)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}
