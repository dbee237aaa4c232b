// Package jsondb implements the storage interface on top of an in-memory
// cache persisted to a JSON file on Close. It backs both the file storage
// tier and, without a file, the pure in-memory tier.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
)

// CacheStruct is the serialized shape of the database file.
type CacheStruct struct {
	// Users maps user ID to the account record.
	Users map[string]*user.User

	// EmailToUserID is the uniqueness index over user emails.
	EmailToUserID map[string]string

	// Urls maps short code to the short URL record.
	Urls map[string]*models.ShortURL
}

// JSONDB is a JSON-file-backed implementation of the service storage.
type JSONDB struct {
	fileName string

	mu    sync.RWMutex
	Cache CacheStruct
}

// New loads the database file, creating it with an empty cache when absent.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    emptyCache(),
	}

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// NewTransient creates a JSONDB with no backing file; Close persists nothing.
// It is the substrate of the in-memory storage tier.
func NewTransient() *JSONDB {
	return &JSONDB{
		Cache: emptyCache(),
	}
}

// CreateUser persists a new user, assigning a UUID and timestamps.
// Returns models.ErrEmailAlreadyTaken when the email is already registered.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.EmailToUserID[usr.Email]; exists {
		return nil, models.ErrEmailAlreadyTaken
	}

	now := time.Now()
	created := *usr
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now

	db.Cache.Users[created.ID] = &created
	db.Cache.EmailToUserID[created.Email] = created.ID

	return &created, nil
}

// FindUserByEmail fetches a user by email.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	userID, ok := db.Cache.EmailToUserID[email]
	if !ok {
		return nil, false, nil
	}

	usr := *db.Cache.Users[userID]

	return &usr, true, nil
}

// GetUserByID fetches a user by ID.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, false, nil
	}

	found := *usr

	return &found, true, nil
}

// InsertShortURL persists a new short URL record, assigning a UUID and
// timestamps. Returns models.ErrShortCodeTaken when the code already exists.
func (db *JSONDB) InsertShortURL(ctx context.Context, record *models.ShortURL) (*models.ShortURL, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Urls[record.ShortCode]; exists {
		return nil, models.ErrShortCodeTaken
	}

	now := time.Now()
	created := *record
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now

	db.Cache.Urls[created.ShortCode] = &created

	return &created, nil
}

// FindURLByShortCode fetches the record mapped to the given short code.
func (db *JSONDB) FindURLByShortCode(ctx context.Context, shortCode string) (*models.ShortURL, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	record, ok := db.Cache.Urls[shortCode]
	if !ok {
		return nil, false, nil
	}

	found := *record

	return &found, true, nil
}

// FindURLsByUser returns every record owned by the given user in creation order.
func (db *JSONDB) FindURLsByUser(ctx context.Context, userID string) ([]models.ShortURL, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []models.ShortURL{}
	for _, record := range db.Cache.Urls {
		if record.UserID == userID {
			result = append(result, *record)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ShortCode < result[j].ShortCode
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// DeleteShortURL removes the record matching both the short code and the
// owner. The check and the delete happen under a single lock acquisition.
func (db *JSONDB) DeleteShortURL(ctx context.Context, shortCode, userID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	record, ok := db.Cache.Urls[shortCode]
	if !ok || record.UserID != userID {
		return false, nil
	}

	delete(db.Cache.Urls, shortCode)

	return true, nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// GetNumberOfShortenedURLs returns the total number of shortened URLs.
func (db *JSONDB) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Urls)), nil
}

// Ping always succeeds for the file-backed storage.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close persists the cache to the backing file, if any.
func (db *JSONDB) Close() error {
	if db.fileName == "" {
		return nil
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func emptyCache() CacheStruct {
	return CacheStruct{
		Users:         map[string]*user.User{},
		EmailToUserID: map[string]string{},
		Urls:          map[string]*models.ShortURL{},
	}
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

func writeToJSONFile(fileName string, cache CacheStruct) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}
