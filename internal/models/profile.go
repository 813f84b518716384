package models

import (
	"errors"
	"time"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrEmailAlreadyUsed = errors.New("email already used")
	ErrInvalidFormat    = errors.New("invalid format")
)

// Profile is the identity record every authorization check anchors on.
// It is created once from verified token claims and only referenced
// afterwards, never duplicated.
type Profile struct {
	ID        int
	Name      string
	Email     string
	ImageURL  string
	CreatedAt time.Time
}
