package models

import (
	"time"

	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
)

// Connection is the aggregate root for a professional connection between a
// consultant and a client.
//
// Invariants:
//   - Requester != Receiver, compared as tagged refs (kind and id)
//   - Status follows the lifecycle in statusTransitions; nothing else
//   - ResponseDate is nil while pending and set exactly once when the
//     record leaves pending; removal keeps the original ResponseDate
//   - RequestDate and the participant refs are immutable after construction
//   - records are never physically deleted; terminal records are history,
//     and a fresh connection (new id) may later link the same pair
//
// At most one connection with an active status (pending or accepted) exists
// per unordered participant pair. That rule spans records, so it is enforced
// by the stores (partial unique index over PairKey) and rechecked by the
// lifecycle service, not here.
type Connection struct {
	ID           int64                 `json:"id"`
	Requester    domain.ParticipantRef `json:"requester"`
	Receiver     domain.ParticipantRef `json:"receiver"`
	Status       Status                `json:"status"`
	RequestDate  time.Time             `json:"request_date"`
	ResponseDate *time.Time            `json:"response_date,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// NewConnection builds a pending connection request. The store assigns ID.
func NewConnection(requester, receiver domain.ParticipantRef, now time.Time) (*Connection, error) {
	if !requester.Kind.IsValid() || requester.ID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "requester reference is invalid")
	}
	if !receiver.Kind.IsValid() || receiver.ID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "receiver reference is invalid")
	}
	if requester == receiver {
		return nil, dErrors.New(dErrors.CodeSelfConnection, "cannot create a connection with yourself")
	}
	return &Connection{
		Requester:   requester,
		Receiver:    receiver,
		Status:      StatusPending,
		RequestDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsParty reports whether ref is the requester or the receiver.
func (c *Connection) IsParty(ref domain.ParticipantRef) bool {
	return c.Requester == ref || c.Receiver == ref
}

// CounterpartOf returns the other side of the connection relative to ref.
// The second return is false when ref is not a party at all.
func (c *Connection) CounterpartOf(ref domain.ParticipantRef) (domain.ParticipantRef, bool) {
	switch ref {
	case c.Requester:
		return c.Receiver, true
	case c.Receiver:
		return c.Requester, true
	default:
		return domain.ParticipantRef{}, false
	}
}

// PairKey returns the canonical order-independent key for the pair.
func (c *Connection) PairKey() string {
	return domain.PairKey(c.Requester, c.Receiver)
}

// CanRespond checks whether actor may answer the request with to, which must
// be accepted or rejected. Only the receiver of a pending request may respond.
// Use with ApplyResponse.
func (c *Connection) CanRespond(actor domain.ParticipantRef, to Status) error {
	if !c.Status.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"connection is "+c.Status.String()+", cannot transition to "+to.String())
	}
	if actor != c.Receiver {
		return dErrors.New(dErrors.CodeForbidden, "only the receiver can respond to a pending request")
	}
	return nil
}

// ApplyResponse moves the record out of pending and stamps ResponseDate.
// Call CanRespond first to validate the transition.
func (c *Connection) ApplyResponse(to Status, now time.Time) {
	c.Status = to
	c.ResponseDate = &now
	c.UpdatedAt = now
}

// CanRemove checks whether the connection can be severed. Either party may
// remove an accepted connection; party membership is the caller's check.
// Use with ApplyRemoval.
func (c *Connection) CanRemove() error {
	if !c.Status.CanTransitionTo(StatusRemoved) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"connection is "+c.Status.String()+", cannot transition to "+StatusRemoved.String())
	}
	return nil
}

// ApplyRemoval severs the connection. ResponseDate keeps the value set when
// the request was accepted. Call CanRemove first to validate the transition.
func (c *Connection) ApplyRemoval(now time.Time) {
	c.Status = StatusRemoved
	c.UpdatedAt = now
}
