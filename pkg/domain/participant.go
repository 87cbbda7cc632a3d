// Package domain holds the identity primitives shared across features.
//
// The central type is ParticipantRef: the tagged (kind, id) pair used wherever
// a connection refers to one of its two sides. The kind tag is part of the
// identity - consultant #7 and client #7 are different participants, and every
// comparison, map key, and pair key includes the tag.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "proconnect/pkg/domain-errors"
)

// ParticipantKind is a domain value that tags which directory a participant
// id belongs to.
// Invariant: the value must be one of the supported kinds.
//
// Usage: construct via ParseParticipantKind at trust boundaries to enforce
// the allowlist; direct casting bypasses validation.
type ParticipantKind string

// Supported participant kinds.
const (
	KindConsultant ParticipantKind = "consultant"
	KindClient     ParticipantKind = "client"
)

// validKinds is the single source of truth for valid participant kinds.
var validKinds = map[ParticipantKind]bool{
	KindConsultant: true,
	KindClient:     true,
}

// ParseParticipantKind constructs a ParticipantKind from external input.
//
// Usage: call from handlers/adapters when parsing requests and token claims.
//
// Errors: returns CodeValidation when the value is empty or unsupported; no
// other errors are expected.
func ParseParticipantKind(s string) (ParticipantKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "participant kind cannot be empty")
	}
	k := ParticipantKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown participant kind %q", s))
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k ParticipantKind) IsValid() bool {
	return validKinds[k]
}

// String returns the string representation of the kind.
func (k ParticipantKind) String() string {
	return string(k)
}

// ParticipantRef identifies one side of a connection. Both fields participate
// in equality, so refs are usable directly as map keys. The zero value is not
// a valid ref; use IsZero to detect it.
type ParticipantRef struct {
	Kind ParticipantKind `json:"kind"`
	ID   int64           `json:"id"`
}

// NewParticipantRef constructs a validated ref from external input.
//
// Errors: returns CodeValidation when the kind is unsupported or the id is
// not positive.
func NewParticipantRef(kind ParticipantKind, id int64) (ParticipantRef, error) {
	if !kind.IsValid() {
		return ParticipantRef{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown participant kind %q", kind))
	}
	if id <= 0 {
		return ParticipantRef{}, dErrors.New(dErrors.CodeValidation, "participant id must be positive")
	}
	return ParticipantRef{Kind: kind, ID: id}, nil
}

// ParseParticipantRef constructs a ref from separate kind and id strings, as
// they arrive in query parameters and token claims.
func ParseParticipantRef(kind, id string) (ParticipantRef, error) {
	k, err := ParseParticipantKind(kind)
	if err != nil {
		return ParticipantRef{}, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return ParticipantRef{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid participant id %q", id))
	}
	return NewParticipantRef(k, n)
}

// IsZero reports whether the ref is the zero value.
func (r ParticipantRef) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}

// String renders the ref as "kind:id". The format is stable: pair keys and
// log fields depend on it.
func (r ParticipantRef) String() string {
	return string(r.Kind) + ":" + strconv.FormatInt(r.ID, 10)
}

// PairKey derives the canonical key for an unordered participant pair.
// Invariant: PairKey(a, b) == PairKey(b, a), and distinct pairs never
// collide because each side serializes kind and id separately.
//
// The key is what the active-connection uniqueness constraint is declared
// over, so it must stay stable across releases.
func PairKey(a, b ParticipantRef) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + "|" + y
}
