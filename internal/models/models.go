// Package models defines the request/response types of the HTTP JSON API,
// the ShortURL record, and the sentinel errors shared between the service
// and storage layers.
package models

import (
	"errors"
	"time"
)

// SignupRequest is the body of POST /users/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=5,max=100"`
	Email    string `json:"email" validate:"required,email,min=5,max=100"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,min=5,max=100"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// ShortenRequest is the body of POST /urls/shorten.
type ShortenRequest struct {
	TargetURL string `json:"targetURL" validate:"required,url"`
}

// ShortURL is a mapping from a short code to a target URL owned by a single user.
type ShortURL struct {
	ID        string    `json:"id"`
	ShortCode string    `json:"shortCode"`
	TargetURL string    `json:"targetURL"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnedURL is a ShortURL enriched with the absolute short link built from the
// service base address. It is what GET /urls returns.
type OwnedURL struct {
	ShortURL
	ShortLink string `json:"shortURL"`
}

// URLFormatter converts a short code into an absolute short link.
type URLFormatter func(shortCode string) string

// SignupResponse is the body of a successful signup.
type SignupResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	SessionToken string `json:"sessionToken"`
	Message      string `json:"message"`
}

// ShortenResponse is the body of a successful shorten.
type ShortenResponse struct {
	Data    *ShortURL `json:"data"`
	Message string    `json:"message"`
}

// UserURLsResponse is the body of GET /urls.
type UserURLsResponse struct {
	Data    []OwnedURL `json:"data"`
	Message string     `json:"message"`
}

// MessageResponse is the generic `{message}` envelope used for plain
// confirmations and for every error body.
type MessageResponse struct {
	Message interface{} `json:"message"`
}

// StatsResponse is the body of GET /api/internal/stats.
type StatsResponse struct {
	URLs  int64 `json:"urls"`
	Users int64 `json:"users"`
}

// Storage backend kinds selectable via configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// Sentinel errors surfaced by the storage and service layers.
var (
	ErrEmailAlreadyTaken       = errors.New("a user with this email already exists")
	ErrUserNotFound            = errors.New("user does not exist")
	ErrIncorrectPassword       = errors.New("incorrect password")
	ErrShortCodeTaken          = errors.New("the short code is already taken")
	ErrURLNotFound             = errors.New("URL with such shortcode does not exist")
	ErrNothingWasDeleted       = errors.New("no short URL matched the code and owner")
	ErrShortCodeSpaceExhausted = errors.New("the number of attempts to generate a unique short code has been exceeded")
)
