// Package common defines sentinel errors shared by the repository, service and
// session layers of the chat server. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrorUnauthorized     = errors.New("invalid username or password")
	ErrorBanned           = errors.New("account is banned")
	ErrorPermissionDenied = errors.New("insufficient permission")
	ErrorUnknownCommand   = errors.New("unknown command")
	ErrorValidation       = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
