package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store is the credential store. Records are keyed by normalized email and
// Upsert must never produce a second record for an email that already exists.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// Upsert inserts u if no record exists for u.Email, otherwise updates the
	// existing record in place. The stored ID and CreatedAt are preserved.
	Upsert(ctx context.Context, u *User) (*User, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
