// Package service implements the business logic of the shortener:
// account registration and login, short code generation, resolution,
// listing and ownership-checked removal.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/thoas/go-funk"

	"github.com/clipr-link/clipr/internal/auth"
	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
)

const (
	// TriesToGenerateUniqueShortCode bounds the retry loop on short code collisions.
	TriesToGenerateUniqueShortCode = 10

	// ShortCodeLength is the generated length of every short code.
	ShortCodeLength = 6

	shortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)
}

type urlKeeper interface {
	InsertShortURL(ctx context.Context, record *models.ShortURL) (*models.ShortURL, error)
	FindURLByShortCode(ctx context.Context, shortCode string) (*models.ShortURL, bool, error)
	FindURLsByUser(ctx context.Context, userID string) ([]models.ShortURL, error)
	DeleteShortURL(ctx context.Context, shortCode, userID string) (bool, error)
}

type storage interface {
	userKeeper
	urlKeeper
}

// Shortener holds the business logic over the storage layer.
type Shortener struct {
	db                storage
	shortURLFormatter models.URLFormatter
}

// New creates a Shortener. shortURLFormatter builds the absolute short link
// returned by GetUserURLs; a nil formatter returns the bare short code.
func New(db storage, shortURLFormatter models.URLFormatter) *Shortener {
	if shortURLFormatter == nil {
		shortURLFormatter = func(shortCode string) string { return shortCode }
	}

	return &Shortener{
		db:                db,
		shortURLFormatter: shortURLFormatter,
	}
}

// RegisterUser creates a new account with a bcrypt-hashed password.
// Returns models.ErrEmailAlreadyTaken when the email is registered already.
func (s *Shortener) RegisterUser(ctx context.Context, name, email, password string) (*user.User, error) {
	_, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, models.ErrEmailAlreadyTaken
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.db.CreateUser(ctx, &user.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	})
}

// AuthenticateUser verifies the credentials and returns the account.
// Returns models.ErrUserNotFound for an unknown email and
// models.ErrIncorrectPassword for a failed comparison.
func (s *Shortener) AuthenticateUser(ctx context.Context, email, password string) (*user.User, error) {
	usr, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrUserNotFound
	}

	if err := auth.CheckPassword(usr.PasswordHash, password); err != nil {
		return nil, models.ErrIncorrectPassword
	}

	return usr, nil
}

// ShortenURL creates a new short URL owned by userID. The short code is a
// random 6-character draw; on a code collision the draw is retried up to
// TriesToGenerateUniqueShortCode times before giving up with
// models.ErrShortCodeSpaceExhausted.
func (s *Shortener) ShortenURL(ctx context.Context, userID, targetURL string) (*models.ShortURL, error) {
	for i := 0; i < TriesToGenerateUniqueShortCode; i++ {
		shortCode, err := generateRandomString(ShortCodeLength)
		if err != nil {
			return nil, err
		}

		created, err := s.db.InsertShortURL(ctx, &models.ShortURL{
			ShortCode: shortCode,
			TargetURL: targetURL,
			UserID:    userID,
		})
		if err != nil {
			if errors.Is(err, models.ErrShortCodeTaken) {
				continue
			}
			return nil, err
		}

		return created, nil
	}

	return nil, models.ErrShortCodeSpaceExhausted
}

// ResolveShortCode returns the target URL mapped to the short code.
// Returns models.ErrURLNotFound when no mapping exists.
func (s *Shortener) ResolveShortCode(ctx context.Context, shortCode string) (string, error) {
	record, found, err := s.db.FindURLByShortCode(ctx, shortCode)
	if err != nil {
		return "", err
	}
	if !found {
		return "", models.ErrURLNotFound
	}

	return record.TargetURL, nil
}

// GetUserURLs returns every short URL owned by userID, each carrying its
// formatted absolute short link.
func (s *Shortener) GetUserURLs(ctx context.Context, userID string) ([]models.OwnedURL, error) {
	records, err := s.db.FindURLsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return funk.Map(records, func(record models.ShortURL) models.OwnedURL {
		return models.OwnedURL{
			ShortURL:  record,
			ShortLink: s.shortURLFormatter(record.ShortCode),
		}
	}).([]models.OwnedURL), nil
}

// RemoveShortURL deletes the short URL matching both the code and the owner
// in one conditional statement. Returns models.ErrNothingWasDeleted when no
// row matched, concealing whether the code exists at all.
func (s *Shortener) RemoveShortURL(ctx context.Context, shortCode, userID string) error {
	deleted, err := s.db.DeleteShortURL(ctx, shortCode, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrNothingWasDeleted
	}

	return nil
}

func generateRandomString(length int) (string, error) {
	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(shortCodeAlphabet)))

	for i := range result {
		randomIndex, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		result[i] = shortCodeAlphabet[randomIndex.Int64()]
	}

	return string(result), nil
}
