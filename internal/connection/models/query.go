package models

import (
	participantmodels "proconnect/internal/participant/models"
	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
)

// Direction filters a listing by the participant's role in the connection.
type Direction string

const (
	DirectionSent     Direction = "sent"     // participant is the requester
	DirectionReceived Direction = "received" // participant is the receiver
)

var validDirections = map[Direction]bool{
	DirectionSent:     true,
	DirectionReceived: true,
}

// ParseDirection constructs a Direction from external input.
//
// Errors: returns CodeValidation when the value is unsupported.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !validDirections[d] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid direction")
	}
	return d, nil
}

func (d Direction) IsValid() bool {
	return validDirections[d]
}

func (d Direction) String() string {
	return string(d)
}

// SortBy names the listing sort key.
type SortBy string

const (
	SortByRequestDate  SortBy = "request_date"
	SortByResponseDate SortBy = "response_date"
	SortByStatus       SortBy = "status"
)

var validSortBys = map[SortBy]bool{
	SortByRequestDate:  true,
	SortByResponseDate: true,
	SortByStatus:       true,
}

// ParseSortBy constructs a SortBy from external input.
//
// Errors: returns CodeValidation when the value is unsupported.
func ParseSortBy(s string) (SortBy, error) {
	sb := SortBy(s)
	if !validSortBys[sb] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid sort_by")
	}
	return sb, nil
}

func (s SortBy) IsValid() bool {
	return validSortBys[s]
}

func (s SortBy) String() string {
	return string(s)
}

// SortOrder is the listing sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

var validSortOrders = map[SortOrder]bool{
	SortAsc:  true,
	SortDesc: true,
}

// ParseSortOrder constructs a SortOrder from external input.
//
// Errors: returns CodeValidation when the value is unsupported.
func ParseSortOrder(s string) (SortOrder, error) {
	so := SortOrder(s)
	if !validSortOrders[so] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid sort_order")
	}
	return so, nil
}

func (s SortOrder) IsValid() bool {
	return validSortOrders[s]
}

func (s SortOrder) String() string {
	return string(s)
}

// ListFilter narrows a participant's listing. Nil fields mean no filter.
// One clause per set field; values are always bound as parameters, never
// interpolated.
type ListFilter struct {
	Status          *Status
	CounterpartKind *domain.ParticipantKind
	Direction       *Direction
}

// Pagination bounds. Listings never return unbounded result sets.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page carries pagination and ordering for listings.
type Page struct {
	Limit     int
	Offset    int
	SortBy    SortBy
	SortOrder SortOrder
}

// Normalize applies defaults and clamps the limit. Call before handing the
// page to a store.
func (p *Page) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if !p.SortBy.IsValid() {
		p.SortBy = SortByRequestDate
	}
	if !p.SortOrder.IsValid() {
		p.SortOrder = SortDesc
	}
}

// StatusNone is the StatusSummary status when no record links the pair.
const StatusNone = "none"

// StatusSummary answers where two participants stand: the governing record
// when one exists (the live one, else the latest piece of history) and
// whether a new request is currently allowed.
type StatusSummary struct {
	Status     string      `json:"status"`
	CanConnect bool        `json:"can_connect"`
	Connection *Connection `json:"connection,omitempty"`
}

// Stats is the aggregate projection over all connections: totals per status
// and per (requester kind, receiver kind) pairing.
type Stats struct {
	Total     int64            `json:"total"`
	ByStatus  map[Status]int64 `json:"by_status"`
	ByPairing map[string]int64 `json:"by_pairing"`
}

// PairingKey labels a cross-tab bucket, e.g. "consultant->client".
func PairingKey(requester, receiver domain.ParticipantKind) string {
	return requester.String() + "->" + receiver.String()
}

// ConnectionView is a Connection enriched with display details for the
// counterpart of the participant the view was built for. Counterpart is nil
// when the directory lookup failed; the connection itself is still served.
type ConnectionView struct {
	*Connection

	CounterpartRef domain.ParticipantRef          `json:"counterpart_ref"`
	Counterpart    *participantmodels.DisplayInfo `json:"counterpart,omitempty"`
}
