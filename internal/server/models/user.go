// Package models defines server-side records persisted in the database.
package models

import (
	"math"
	"time"
)

// Permission levels. Zero means "not authenticated"; registered accounts start
// at LevelUser. LevelConsole belongs to the server operator console and
// exceeds every level an account can hold.
const (
	LevelAnonymous = 0
	LevelUser      = 1
	LevelConsole   = math.MaxInt32
)

// User is an identity in the credential store.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Permission   int
	Banned       bool
	CreatedAt    time.Time
}
