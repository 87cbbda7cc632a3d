package models

import dErrors "proconnect/pkg/domain-errors"

// Status is the lifecycle position of a connection.
// Invariant: the value must be one of the supported statuses; no other
// status value is valid anywhere in the system.
//
// Usage: construct via ParseStatus at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Status string

// Supported connection statuses.
const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusRemoved  Status = "removed"
)

// validStatuses is the single source of truth for valid statuses.
var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusAccepted: true,
	StatusRejected: true,
	StatusRemoved:  true,
}

// statusTransitions encodes the lifecycle: pending exits to accepted or
// rejected, accepted exits to removed, rejected and removed exit nowhere.
var statusTransitions = map[Status]map[Status]bool{
	StatusPending:  {StatusAccepted: true, StatusRejected: true},
	StatusAccepted: {StatusRemoved: true},
}

// ParseStatus constructs a Status from external input.
//
// Usage: call from handlers/adapters when parsing requests.
//
// Errors: returns CodeValidation when the value is empty or unsupported; no
// other errors are expected.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsActive reports whether the status counts against the one-active-per-pair
// rule.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// IsTerminal reports whether the record is history: it can never change
// again, and it does not block a fresh connection between the same pair.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusRemoved
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	return statusTransitions[s][next]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
