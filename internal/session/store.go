package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session id is unknown or expired. The
// store never lets an expiry escape as anything else.
var ErrNotFound = errors.New("session not found")

// Store is the key-value persistence boundary for sessions. Implementations
// must treat expired keys as not found and must persist the full session in
// one write, never a partial state.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
