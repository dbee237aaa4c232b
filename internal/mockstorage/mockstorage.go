// Package mockstorage provides a testify-based mock implementation of the
// storage interface. It is used to simulate persistence behavior, including
// failure paths, in router and service tests.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
)

// StorageMock is a testify mock implementing the full storage surface.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks persisting a new user.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	args := m.Called(ctx, usr)
	created, _ := args.Get(0).(*user.User)
	return created, args.Error(1)
}

// FindUserByEmail mocks the email lookup.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetUserByID mocks the ID lookup.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// InsertShortURL mocks persisting a new short URL record.
func (m *StorageMock) InsertShortURL(ctx context.Context, record *models.ShortURL) (*models.ShortURL, error) {
	args := m.Called(ctx, record)
	created, _ := args.Get(0).(*models.ShortURL)
	return created, args.Error(1)
}

// FindURLByShortCode mocks the short code lookup.
func (m *StorageMock) FindURLByShortCode(ctx context.Context, shortCode string) (*models.ShortURL, bool, error) {
	args := m.Called(ctx, shortCode)
	record, _ := args.Get(0).(*models.ShortURL)
	return record, args.Bool(1), args.Error(2)
}

// FindURLsByUser mocks listing a user's records.
func (m *StorageMock) FindURLsByUser(ctx context.Context, userID string) ([]models.ShortURL, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]models.ShortURL)
	return records, args.Error(1)
}

// DeleteShortURL mocks the conditional delete.
func (m *StorageMock) DeleteShortURL(ctx context.Context, shortCode, userID string) (bool, error) {
	args := m.Called(ctx, shortCode, userID)
	return args.Bool(0), args.Error(1)
}

// GetNumberOfUsers mocks the user counter.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfShortenedURLs mocks the URL counter.
func (m *StorageMock) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
