package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repository interface {
	Create(ctx context.Context, db DBTX, u *User) error
	Get(ctx context.Context, db DBTX, id uuid.UUID) (*User, error)
}

type PostgresRepository struct {
	serviceName string
}

func NewRepository(serviceName string) *PostgresRepository {
	return &PostgresRepository{serviceName: serviceName}
}

func (r *PostgresRepository) Create(ctx context.Context, db DBTX, u *User) error {
	query := `
		INSERT INTO users (id, username, email, created_at)
		VALUES ($1, $2, $3, $4)
	`

	start := time.Now()
	_, err := db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.CreatedAt)
	r.observe("insert", err, start)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", "username or email already registered")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, db DBTX, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = $1
	`

	start := time.Now()
	var u User
	err := db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		r.observe("select", nil, start)
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id.String())
	}
	r.observe("select", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *PostgresRepository) observe(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDatabaseQuery(r.serviceName, "postgres", operation, status, time.Since(start))
}
