package state

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

type counter struct {
	N      int
	Status Status
}

func TestContainerUpdateNotifies(t *testing.T) {
	c := NewContainer(counter{Status: StatusIdle})

	seen := []int{}
	cancel := c.Subscribe(func(s counter) {
		seen = append(seen, s.N)
	})

	c.Update(func(s *counter) { s.N = 1 })
	c.Update(func(s *counter) { s.N = 2; s.Status = StatusSucceeded })

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, StatusSucceeded, c.Get().Status)

	cancel()
	cancel()
	c.Update(func(s *counter) { s.N = 3 })
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 3, c.Get().N)
}

func TestContainerSubscriberMayReadState(t *testing.T) {
	c := NewContainer(counter{})

	var read int
	c.Subscribe(func(counter) {
		// reading from inside a notification must not deadlock
		read = c.Get().N
	})
	c.Update(func(s *counter) { s.N = 7 })

	assert.Equal(t, 7, read)
}
