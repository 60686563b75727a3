package messages

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

func (r *PostgresRepository) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (sender_id, recipient_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, msg.SenderID, msg.RecipientID, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, pgerr.Translate(err)
	}
	return msg, nil
}

func (r *PostgresRepository) History(ctx context.Context, a, b string) ([]*models.Message, error) {
	query :=
		`SELECT id, sender_id, recipient_id, content, created_at FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, pgerr.Translate(err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt); err != nil {
			return nil, pgerr.Translate(err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Translate(err)
	}
	return result, nil
}
