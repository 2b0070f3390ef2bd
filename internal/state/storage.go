// Package state keeps per-user conversation sessions and serializes their updates.
package state

import (
	"context"
	"errors"
)

// ErrSessionNotFound indicates that no session is stored for the user.
var ErrSessionNotFound = errors.New("session not found")

// Storage defines the persistence contract for sessions.
type Storage interface {
	// Get returns the session for userID or ErrSessionNotFound.
	Get(ctx context.Context, userID int64) (*Session, error)
	// Save stores the session, refreshing its UpdatedAt and TTL.
	Save(ctx context.Context, session *Session) error
	// Delete removes the session for userID. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID int64) error
	// List returns every live session.
	List(ctx context.Context) ([]*Session, error)
}
