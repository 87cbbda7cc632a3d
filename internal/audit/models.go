// Package audit records connection lifecycle events on an append-only trail.
//
// The trail is advisory: connection state is the source of truth, and a
// failed emit never fails the mutation that triggered it. Events flow through
// the Publisher into a Store and, when a sink is configured, out to Kafka for
// downstream consumers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"proconnect/pkg/domain"
)

// Topic is the Kafka topic lifecycle events are streamed to when a broker
// sink is configured. Records are keyed by connection id so one connection's
// trail stays ordered within a partition.
const Topic = "proconnect.connection.audit"

// Action names the lifecycle mutation an event records.
type Action string

const (
	ActionRequested Action = "connection_requested"
	ActionAccepted  Action = "connection_accepted"
	ActionRejected  Action = "connection_rejected"
	ActionRemoved   Action = "connection_removed"
)

// Event is one entry in the trail. Actor is the participant who performed
// the mutation, Counterpart the other side of the connection, Status the
// connection status after the mutation. Device carries the parsed User-Agent
// summary, never the raw header.
type Event struct {
	ID           uuid.UUID             `json:"id"`
	Timestamp    time.Time             `json:"timestamp"`
	Action       Action                `json:"action"`
	ConnectionID int64                 `json:"connection_id"`
	Actor        domain.ParticipantRef `json:"actor"`
	Counterpart  domain.ParticipantRef `json:"counterpart"`
	Status       string                `json:"status"`
	Device       string                `json:"device,omitempty"`
	ClientIP     string                `json:"client_ip,omitempty"`
	RequestID    string                `json:"request_id,omitempty"`
}

// Store persists events. Implementations must be safe for concurrent use and
// idempotent on event id, so replays from the stream do not duplicate rows.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByConnection(ctx context.Context, connectionID int64) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
