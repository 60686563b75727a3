// Package repomanager vends PostgreSQL-backed repositories bound to a DBTX
// and applies the embedded schema migrations via goose.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pdcc/internal/dbx"
	"github.com/dmitrijs2005/pdcc/internal/server/migrations"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/blocks"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/messages"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/relationships"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Relationships(db dbx.DBTX) relationships.Repository
	Blocks(db dbx.DBTX) blocks.Repository
	Messages(db dbx.DBTX) messages.Repository
}

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Relationships(db dbx.DBTX) relationships.Repository {
	return relationships.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Blocks(db dbx.DBTX) blocks.Repository {
	return blocks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Messages(db dbx.DBTX) messages.Repository {
	return messages.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations to db.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
