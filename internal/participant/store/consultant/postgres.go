package consultant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"proconnect/internal/participant/models"
	"proconnect/pkg/platform/sentinel"
)

// Postgres persists consultants in the consultants table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts the consultant and fills in the generated id.
func (s *Postgres) Create(ctx context.Context, c *models.Consultant) error {
	query := `
		INSERT INTO consultants (full_name, email, specialization, hourly_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		c.FullName, c.Email, c.Specialization, c.HourlyRate, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert consultant: %w", err)
	}
	return nil
}

// FindByID returns the consultant when present and not soft-deleted.
func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Consultant, error) {
	query := `
		SELECT id, full_name, email, specialization, hourly_rate, created_at, updated_at
		FROM consultants
		WHERE id = $1 AND deleted_at IS NULL
	`
	var c models.Consultant
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.FullName, &c.Email, &c.Specialization, &c.HourlyRate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consultant by id: %w", err)
	}
	return &c, nil
}

// SoftDelete marks the consultant deleted; it stops resolving afterwards.
func (s *Postgres) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	query := `
		UPDATE consultants
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("soft delete consultant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete consultant: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
