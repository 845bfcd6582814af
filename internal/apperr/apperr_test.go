package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestRemoteErrorMatchesTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")
	err := Remote("posts.toggleLike", cause)

	assert.Equal(t, true, errors.Is(err, ErrRemote))
	assert.Equal(t, true, errors.Is(err, cause))
	assert.Equal(t, false, errors.Is(err, ErrNotFound))
	assert.Equal(t, "posts.toggleLike: connection reset", err.Error())

	assert.Equal(t, nil, Remote("noop", nil))
}

func TestIsCancellation(t *testing.T) {
	assert.Equal(t, true, IsCancellation(context.Canceled))
	assert.Equal(t, true, IsCancellation(fmt.Errorf("listen: %w", context.Canceled)))
	assert.Equal(t, false, IsCancellation(ErrRemote))
	assert.Equal(t, false, IsCancellation(nil))
}
