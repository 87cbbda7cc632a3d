package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (wrapped with
// operation detail) so services can translate them into coded domain errors
// without inspecting driver error strings.
//
// These are facts about the store, not rule violations:
//   - ErrNotFound: no row/entry matches the lookup
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backing store cannot be reached right now
//
// Rule violations (self-connection, illegal transition) never originate in a
// store; services raise those via pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
