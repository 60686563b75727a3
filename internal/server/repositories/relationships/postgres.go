package relationships

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/dbx"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/pgerr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Request(ctx context.Context, ownerID, peerID string) (bool, error) {
	query :=
		`INSERT INTO relationships (owner_id, peer_id, status)
		 VALUES ($1, $2, 'pending')
		 ON CONFLICT (owner_id, peer_id) DO UPDATE
		 SET status = 'pending', updated_at = now()
		 WHERE relationships.status = 'rejected'`

	res, err := r.db.ExecContext(ctx, query, ownerID, peerID)
	if err != nil {
		return false, pgerr.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pgerr.Translate(err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) LockPair(ctx context.Context, a, b string) error {
	if b < a {
		a, b = b, a
	}
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`

	if _, err := r.db.ExecContext(ctx, query, a, b); err != nil {
		return pgerr.Translate(err)
	}
	return nil
}

func (r *PostgresRepository) HasPending(ctx context.Context, ownerID, peerID string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM relationships
		   WHERE owner_id = $1 AND peer_id = $2 AND status = 'pending'
		 )`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, peerID).Scan(&ok); err != nil {
		return false, pgerr.Translate(err)
	}
	return ok, nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, ownerID, peerID string, status models.RelationshipStatus) error {
	query :=
		`UPDATE relationships SET status = $3, updated_at = now()
		 WHERE owner_id = $1 AND peer_id = $2 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, ownerID, peerID, string(status))
	if err != nil {
		return pgerr.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pgerr.Translate(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, ownerID, peerID string, status models.RelationshipStatus) error {
	query :=
		`INSERT INTO relationships (owner_id, peer_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, peer_id) DO UPDATE
		 SET status = EXCLUDED.status, updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, ownerID, peerID, string(status)); err != nil {
		return pgerr.Translate(err)
	}
	return nil
}

func (r *PostgresRepository) DeletePair(ctx context.Context, a, b string) (int64, error) {
	query :=
		`DELETE FROM relationships
		 WHERE (owner_id = $1 AND peer_id = $2) OR (owner_id = $2 AND peer_id = $1)`

	res, err := r.db.ExecContext(ctx, query, a, b)
	if err != nil {
		return 0, pgerr.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pgerr.Translate(err)
	}
	return n, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, peerID string) (*models.Relationship, error) {
	query :=
		`SELECT owner_id, peer_id, status FROM relationships
		 WHERE owner_id = $1 AND peer_id = $2`

	rel := &models.Relationship{}
	var status string
	if err := r.db.QueryRowContext(ctx, query, ownerID, peerID).Scan(&rel.OwnerID, &rel.PeerID, &status); err != nil {
		return nil, pgerr.Translate(err)
	}
	rel.Status = models.RelationshipStatus(status)
	return rel, nil
}

func (r *PostgresRepository) Friends(ctx context.Context, ownerID string) ([]models.Contact, error) {
	query :=
		`SELECT u.id, u.username FROM relationships r
		 JOIN users u ON u.id = r.peer_id
		 WHERE r.owner_id = $1 AND r.status = 'accepted'
		 ORDER BY u.username`

	return r.contacts(ctx, query, ownerID)
}

func (r *PostgresRepository) Incoming(ctx context.Context, peerID string) ([]models.Contact, error) {
	query :=
		`SELECT u.id, u.username FROM relationships r
		 JOIN users u ON u.id = r.owner_id
		 WHERE r.peer_id = $1 AND r.status = 'pending'
		 ORDER BY r.updated_at`

	return r.contacts(ctx, query, peerID)
}

func (r *PostgresRepository) contacts(ctx context.Context, query string, id string) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, pgerr.Translate(err)
	}
	defer rows.Close()

	var result []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.UserName); err != nil {
			return nil, pgerr.Translate(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Translate(err)
	}
	return result, nil
}
