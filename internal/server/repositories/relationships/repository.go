// Package relationships stores directed friendship edges (owner -> peer).
package relationships

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/server/models"
)

type Repository interface {
	// Request inserts a pending edge owner -> peer. An existing pending or
	// accepted edge is left alone and reported as created=false; a rejected
	// edge is reopened as pending.
	Request(ctx context.Context, ownerID, peerID string) (created bool, err error)

	// LockPair serializes writers touching the pair {a, b} until the
	// surrounding transaction ends. Call it only inside a transaction.
	LockPair(ctx context.Context, a, b string) error

	// HasPending reports whether owner -> peer is pending.
	HasPending(ctx context.Context, ownerID, peerID string) (bool, error)

	// Resolve moves the pending edge owner -> peer to status. It returns
	// common.ErrorNotFound when there is no pending edge.
	Resolve(ctx context.Context, ownerID, peerID string, status models.RelationshipStatus) error

	// Upsert writes owner -> peer with status regardless of the previous state.
	Upsert(ctx context.Context, ownerID, peerID string, status models.RelationshipStatus) error

	// DeletePair removes both a -> b and b -> a and returns the number of edges removed.
	DeletePair(ctx context.Context, a, b string) (int64, error)

	// Get returns the edge owner -> peer or common.ErrorNotFound.
	Get(ctx context.Context, ownerID, peerID string) (*models.Relationship, error)

	// Friends lists peers of accepted edges owned by ownerID.
	Friends(ctx context.Context, ownerID string) ([]models.Contact, error)

	// Incoming lists owners of pending edges pointing at peerID.
	Incoming(ctx context.Context, peerID string) ([]models.Contact, error)
}
