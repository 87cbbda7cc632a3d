package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"proconnect/internal/participant/models"
	"proconnect/pkg/platform/sentinel"
)

// Postgres persists clients in the clients table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts the client and fills in the generated id.
func (s *Postgres) Create(ctx context.Context, c *models.Client) error {
	query := `
		INSERT INTO clients (full_name, email, company_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		c.FullName, c.Email, c.CompanyName, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// FindByID returns the client when present and not soft-deleted.
func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Client, error) {
	query := `
		SELECT id, full_name, email, company_name, created_at, updated_at
		FROM clients
		WHERE id = $1 AND deleted_at IS NULL
	`
	var c models.Client
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.FullName, &c.Email, &c.CompanyName, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find client by id: %w", err)
	}
	return &c, nil
}

// SoftDelete marks the client deleted; it stops resolving afterwards.
func (s *Postgres) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	query := `
		UPDATE clients
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("soft delete client: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete client: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
