package backend

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/go-playground/assert/v2"
)

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{
		JWTSecret:    "secret",
		StoreBackend: config.BackendMemory,
	})
	assert.Equal(t, nil, err)
	defer b.Close()

	_, ok := b.Docs.(*docstore.MemoryStore)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, b.Provider.Current() == nil)
}
