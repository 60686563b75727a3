package users

import (
	"context"
	"fmt"
	"strings"

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, password_hash, permission)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, user.UserName, user.PasswordHash, user.Permission).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, pgerr.Translate(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, permission, banned FROM users
		 WHERE username = $1`

	return r.scanOne(ctx, query, userName)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, permission, banned FROM users
		 WHERE id = $1`

	return r.scanOne(ctx, query, id)
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.UserName, &user.PasswordHash, &user.Permission, &user.Banned)
	if err != nil {
		return nil, pgerr.Translate(err)
	}
	return user, nil
}

func (r *PostgresRepository) SetBanned(ctx context.Context, userName string, banned bool) error {
	query := `UPDATE users SET banned = $1 WHERE username = $2`
	return r.updateOne(ctx, query, banned, userName)
}

func (r *PostgresRepository) SetPermission(ctx context.Context, userName string, level int) error {
	query := `UPDATE users SET permission = $1 WHERE username = $2`
	return r.updateOne(ctx, query, level, userName)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) ListBanned(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT id, username, permission FROM users
		 WHERE banned
		 ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, pgerr.Translate(err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{Banned: true}
		if err := rows.Scan(&u.ID, &u.UserName, &u.Permission); err != nil {
			return nil, pgerr.Translate(err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Translate(err)
	}
	return result, nil
}

func (r *PostgresRepository) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT id, username FROM users WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgerr.Translate(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, pgerr.Translate(err)
		}
		result[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Translate(err)
	}
	return result, nil
}
