package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidTextRep      = "22P02"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
)

// translatePqError maps driver errors onto domain sentinels. what names the
// entity for the message, e.g. "user with email 'x'".
func translatePqError(err error, what string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%s %w", what, domain.ErrAlreadyExists)
	case pgForeignKeyViolation:
		return fmt.Errorf("%s references a record that does not exist: %w", what, domain.ErrNotFound)
	case pgCheckViolation:
		return fmt.Errorf("%s violates constraint %s: %w", what, pqErr.Constraint, domain.ErrInvalidInput)
	case pgInvalidTextRep:
		return fmt.Errorf("%s %w", what, domain.ErrNotFound)
	case pgSerializationFail, pgDeadlockDetected:
		return fmt.Errorf("%s was changed by a concurrent transaction, please retry: %w", what, domain.ErrConflict)
	}
	return err
}

// withTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func withTx(ctx context.Context, db *sql.DB, log *logrus.Logger, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Errorf("Repository: Failed to begin transaction: %v", err)
		return fmt.Errorf("could not start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("Repository: Recovered from panic, rolling back transaction")
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Errorf("Repository: Failed to rollback transaction: %v (original error: %v)", rbErr, err)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			log.Errorf("Repository: Failed to commit transaction: %v", cErr)
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
