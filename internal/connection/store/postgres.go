package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"proconnect/internal/connection/models"
	"proconnect/pkg/domain"
	"proconnect/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code raised by the
// connections_active_pair partial unique index.
const uniqueViolation = "23505"

const connectionColumns = `
	id, requester_kind, requester_id, receiver_kind, receiver_id,
	status, request_date, response_date, created_at, updated_at
`

// sortColumns whitelists the ORDER BY targets. Sort input never reaches the
// SQL text except through this map.
var sortColumns = map[models.SortBy]string{
	models.SortByRequestDate:  "request_date",
	models.SortByResponseDate: "response_date",
	models.SortByStatus:       "status",
}

// Postgres persists connections in the connections table. Active-pair
// uniqueness is owned by the connections_active_pair partial unique index;
// this store only translates its violations into sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts the pending connection and fills in the generated id.
// A concurrent or pre-existing live record for the same pair trips the
// partial unique index and surfaces as sentinel.ErrConflict.
func (s *Postgres) Create(ctx context.Context, conn *models.Connection) error {
	query := `
		INSERT INTO connections (
			requester_kind, requester_id, receiver_kind, receiver_id,
			status, pair_key, request_date, response_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		conn.Requester.Kind.String(), conn.Requester.ID,
		conn.Receiver.Kind.String(), conn.Receiver.ID,
		conn.Status.String(), conn.PairKey(),
		conn.RequestDate, conn.ResponseDate,
		conn.CreatedAt, conn.UpdatedAt,
	).Scan(&conn.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create connection: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

// FindByID returns the connection or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find connection by id: %w", err)
	}
	return conn, nil
}

// FindActiveBetween returns the pending or accepted record between the pair,
// in either orientation. The most recently created wins should the data ever
// hold more than one.
func (s *Postgres) FindActiveBetween(ctx context.Context, a, b domain.ParticipantRef) (*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE pair_key = $1 AND status IN ('pending', 'accepted')
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, domain.PairKey(a, b)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active connection: %w", err)
	}
	return conn, nil
}

// FindLatestBetween returns the most recently created record between the
// pair regardless of status.
func (s *Postgres) FindLatestBetween(ctx context.Context, a, b domain.ParticipantRef) (*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE pair_key = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, domain.PairKey(a, b)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest connection: %w", err)
	}
	return conn, nil
}

// UpdateStatus persists the connection's status, response date, and updated
// timestamp. The write is unconditional; transition checks belong to the
// lifecycle service.
func (s *Postgres) UpdateStatus(ctx context.Context, conn *models.Connection) error {
	query := `
		UPDATE connections
		SET status = $2, response_date = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		conn.ID, conn.Status.String(), conn.ResponseDate, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns the participant's connections after filtering, ordering, and
// pagination, along with the pre-pagination total. Every filter becomes one
// parameterized predicate; values never reach the SQL text.
func (s *Postgres) List(ctx context.Context, ref domain.ParticipantRef, filter models.ListFilter, page models.Page) ([]*models.Connection, int64, error) {
	args := []any{ref.Kind.String(), ref.ID}
	conds := []string{
		"((requester_kind = $1 AND requester_id = $2) OR (receiver_kind = $1 AND receiver_id = $2))",
	}

	if filter.Status != nil {
		args = append(args, filter.Status.String())
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CounterpartKind != nil {
		args = append(args, filter.CounterpartKind.String())
		conds = append(conds, fmt.Sprintf(
			"(CASE WHEN requester_kind = $1 AND requester_id = $2 THEN receiver_kind ELSE requester_kind END) = $%d",
			len(args)))
	}
	if filter.Direction != nil {
		switch *filter.Direction {
		case models.DirectionSent:
			conds = append(conds, "(requester_kind = $1 AND requester_id = $2)")
		case models.DirectionReceived:
			conds = append(conds, "(receiver_kind = $1 AND receiver_id = $2)")
		}
	}

	where := strings.Join(conds, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM connections WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count connections: %w", err)
	}

	orderColumn, ok := sortColumns[page.SortBy]
	if !ok {
		orderColumn = "request_date"
	}
	orderDir := "DESC"
	if page.SortOrder == models.SortAsc {
		orderDir = "ASC"
	}

	args = append(args, page.Limit)
	limitArg := len(args)
	args = append(args, page.Offset)
	offsetArg := len(args)

	listQuery := fmt.Sprintf(
		`SELECT %s FROM connections WHERE %s ORDER BY %s %s NULLS LAST, id DESC LIMIT $%d OFFSET $%d`,
		connectionColumns, where, orderColumn, orderDir, limitArg, offsetArg,
	)

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, total, nil
}

// Stats aggregates totals by status and by kind pairing in a single query.
func (s *Postgres) Stats(ctx context.Context) (*models.Stats, error) {
	query := `
		SELECT status, requester_kind, receiver_kind, COUNT(*)
		FROM connections
		GROUP BY status, requester_kind, receiver_kind
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query connection stats: %w", err)
	}
	defer rows.Close()

	stats := &models.Stats{
		ByStatus:  make(map[models.Status]int64),
		ByPairing: make(map[string]int64),
	}
	for rows.Next() {
		var (
			status, requesterKind, receiverKind string
			count                               int64
		)
		if err := rows.Scan(&status, &requesterKind, &receiverKind, &count); err != nil {
			return nil, fmt.Errorf("scan connection stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[models.Status(status)] += count
		stats.ByPairing[models.PairingKey(
			domain.ParticipantKind(requesterKind),
			domain.ParticipantKind(receiverKind),
		)] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*models.Connection, error) {
	var (
		conn                          models.Connection
		requesterKind, receiverKind   string
		status                        string
		responseDate                  sql.NullTime
	)
	err := row.Scan(
		&conn.ID,
		&requesterKind, &conn.Requester.ID,
		&receiverKind, &conn.Receiver.ID,
		&status,
		&conn.RequestDate, &responseDate,
		&conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conn.Requester.Kind = domain.ParticipantKind(requesterKind)
	conn.Receiver.Kind = domain.ParticipantKind(receiverKind)
	conn.Status = models.Status(status)
	if responseDate.Valid {
		t := responseDate.Time
		conn.ResponseDate = &t
	}
	return &conn, nil
}
