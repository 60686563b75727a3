// Package pgerr translates PostgreSQL driver errors into the sentinel errors
// the services understand.
package pgerr

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// Translate maps err onto common.ErrorNotFound or common.ErrorAlreadyExists
// where the cause is a business condition, and wraps everything else as a
// "db error". A nil err stays nil.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return common.ErrorAlreadyExists
		case codeForeignKeyViolation, codeInvalidText:
			// unknown or malformed identity reference
			return common.ErrorNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}
