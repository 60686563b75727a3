// Package messages is the append-only message log.
package messages

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/server/models"
)

type Repository interface {
	// Append persists msg and fills in its ID and CreatedAt.
	Append(ctx context.Context, msg *models.Message) (*models.Message, error)
	// History returns every message exchanged between a and b, oldest first.
	History(ctx context.Context, a, b string) ([]*models.Message, error)
}
