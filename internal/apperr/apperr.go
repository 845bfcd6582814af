package apperr

import (
	"context"
	"errors"
)

var (
	ErrAuthenticationRequired = errors.New("user is not authenticated")
	ErrAuthorizationDenied    = errors.New("not authorized")
	ErrNotFound               = errors.New("not found")
	ErrInvalidContent         = errors.New("content must not be empty")
	ErrRemote                 = errors.New("remote failure")
)

// RemoteError wraps a failure reported by the document store or identity provider.
type RemoteError struct {
	Op  string
	Err error
}

func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// IsCancellation reports whether err only signals that the caller went away.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
