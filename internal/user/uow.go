package user

import (
	"context"
	"database/sql"
	"fmt"

	"herald/internal/logger"
)

// UnitOfWork runs fn inside one transaction: committed when fn returns nil,
// rolled back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
	DB() DBTX
}

type SQLUnitOfWork struct {
	db     *sql.DB
	logger logger.Logger
}

func NewUnitOfWork(db *sql.DB, log logger.Logger) *SQLUnitOfWork {
	return &SQLUnitOfWork{db: db, logger: log}
}

func (u *SQLUnitOfWork) DB() DBTX {
	return u.db
}

func (u *SQLUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			u.logger.ErrorwCtx(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
