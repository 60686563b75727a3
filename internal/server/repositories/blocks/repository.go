// Package blocks stores directed block edges (owner -> blocked identity),
// independent of friendship edges.
package blocks

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/server/models"
)

type Repository interface {
	// Add inserts owner -> blocked; an existing edge yields created=false.
	Add(ctx context.Context, ownerID, blockedID string) (created bool, err error)
	// Remove deletes owner -> blocked; a missing edge yields removed=false.
	Remove(ctx context.Context, ownerID, blockedID string) (removed bool, err error)
	Exists(ctx context.Context, ownerID, blockedID string) (bool, error)
	List(ctx context.Context, ownerID string) ([]models.Contact, error)
}
