package store

import (
	"context"
	"database/sql"
	"fmt"

	"proconnect/internal/audit"
	"proconnect/pkg/domain"
)

// Postgres persists the trail in the connection_audit table. Inserts are
// idempotent on event id via ON CONFLICT DO NOTHING, so replays from the
// stream never duplicate rows.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const auditColumns = `id, occurred_at, action, connection_id,
	actor_kind, actor_id, counterpart_kind, counterpart_id,
	status, device, client_ip, request_id`

func (s *Postgres) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO connection_audit (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Action),
		event.ConnectionID,
		string(event.Actor.Kind),
		event.Actor.ID,
		string(event.Counterpart.Kind),
		event.Counterpart.ID,
		event.Status,
		event.Device,
		event.ClientIP,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByConnection returns one connection's events, oldest first.
func (s *Postgres) ListByConnection(ctx context.Context, connectionID int64) ([]audit.Event, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM connection_audit
		WHERE connection_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the most recent N events, newest first.
func (s *Postgres) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM connection_audit
		ORDER BY occurred_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event           audit.Event
			action          string
			actorKind       string
			counterpartKind string
		)
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&action,
			&event.ConnectionID,
			&actorKind,
			&event.Actor.ID,
			&counterpartKind,
			&event.Counterpart.ID,
			&event.Status,
			&event.Device,
			&event.ClientIP,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		event.Actor.Kind = domain.ParticipantKind(actorKind)
		event.Counterpart.Kind = domain.ParticipantKind(counterpartKind)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
