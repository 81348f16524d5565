package users

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches the lookup key.
var ErrNotFound = errors.New("user not found")

// Row mirrors the souq.users columns the notification core consults.
//
// The wider user record (profile, ratings, listings) is owned by the CRUD
// layer and deliberately not modeled here.
type Row struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string

	// Moderation flags, consulted before sensitive operations.
	Banned        bool
	Muted         bool
	ListingBanned bool

	CreatedAt time.Time
}

// Store is the read boundary to the user record store.
type Store interface {
	// FindByID loads a user by id. Returns ErrNotFound when absent.
	FindByID(ctx context.Context, userID string) (Row, error)

	// FindByEmail loads a user by normalized email. Returns ErrNotFound when absent.
	FindByEmail(ctx context.Context, email string) (Row, error)
}
