package blocks

import (
	"context"

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

func (r *PostgresRepository) Add(ctx context.Context, ownerID, blockedID string) (bool, error) {
	query :=
		`INSERT INTO blocks (owner_id, blocked_id)
		 VALUES ($1, $2)
		 ON CONFLICT (owner_id, blocked_id) DO NOTHING`

	return r.exec(ctx, query, ownerID, blockedID)
}

func (r *PostgresRepository) Remove(ctx context.Context, ownerID, blockedID string) (bool, error) {
	query := `DELETE FROM blocks WHERE owner_id = $1 AND blocked_id = $2`

	return r.exec(ctx, query, ownerID, blockedID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, pgerr.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pgerr.Translate(err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, ownerID, blockedID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM blocks WHERE owner_id = $1 AND blocked_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, blockedID).Scan(&exists); err != nil {
		return false, pgerr.Translate(err)
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string) ([]models.Contact, error) {
	query :=
		`SELECT u.id, u.username FROM blocks b
		 JOIN users u ON u.id = b.blocked_id
		 WHERE b.owner_id = $1
		 ORDER BY b.created_at`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
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
