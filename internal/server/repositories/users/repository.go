// Package users is the credential store: identities with their password
// hash, permission level and ban flag.
package users

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/server/models"
)

type Repository interface {
	// Create inserts a new identity and fills in its ID. A taken username
	// yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetBanned(ctx context.Context, login string, banned bool) error
	SetPermission(ctx context.Context, login string, level int) error
	ListBanned(ctx context.Context) ([]*models.User, error)
	// GetUsernames resolves ids to usernames; unknown ids are absent from the result.
	GetUsernames(ctx context.Context, ids []string) (map[string]string, error)
}
