package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no principal matches the lookup.
	ErrNotFound = errors.New("identity: principal not found")
	// ErrDuplicateEmail is returned when registering an address already in use.
	ErrDuplicateEmail = errors.New("identity: email already registered")
)

// Store resolves and persists principals.
type Store interface {
	// FindByID returns the principal without its credential hash.
	FindByID(ctx context.Context, role Role, id string) (Principal, error)
	FindCredentials(ctx context.Context, role Role, email string) (Credentials, error)
	Create(ctx context.Context, role Role, account NewAccount) (Principal, error)
}
