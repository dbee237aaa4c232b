// Package storage declares the persistence contract shared by the
// PostgreSQL, JSON-file and in-memory backends.
package storage

import (
	"context"

	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
)

// UserKeeper persists and looks up user accounts.
type UserKeeper interface {
	// CreateUser persists a new user and returns it with the id and
	// timestamps filled in. Returns models.ErrEmailAlreadyTaken when the
	// email is already registered.
	CreateUser(ctx context.Context, usr *user.User) (*user.User, error)

	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)

	GetUserByID(ctx context.Context, userID string) (*user.User, bool, error)
}

// URLKeeper persists and looks up short URL records.
type URLKeeper interface {
	// InsertShortURL persists a new record and returns it with the id and
	// timestamps filled in. Returns models.ErrShortCodeTaken when the short
	// code already exists.
	InsertShortURL(ctx context.Context, record *models.ShortURL) (*models.ShortURL, error)

	FindURLByShortCode(ctx context.Context, shortCode string) (*models.ShortURL, bool, error)

	FindURLsByUser(ctx context.Context, userID string) ([]models.ShortURL, error)

	// DeleteShortURL removes the record matching both the short code and the
	// owner in a single conditional statement. It reports whether a row
	// matched.
	DeleteShortURL(ctx context.Context, shortCode, userID string) (bool, error)
}

// StatsKeeper reports aggregate counters for the internal stats endpoint.
type StatsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)
}

// Storage is the full persistence surface of the service.
type Storage interface {
	UserKeeper
	URLKeeper
	StatsKeeper

	Ping(ctx context.Context) error

	Close() error
}
