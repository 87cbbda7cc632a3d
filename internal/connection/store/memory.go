package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"proconnect/internal/connection/models"
	"proconnect/pkg/domain"
	"proconnect/pkg/platform/sentinel"
)

// InMemory keeps connections in a mutex-guarded map. It gives the same
// guarantees as the Postgres store: the activePair index mirrors the partial
// unique index, so duplicate active pairs are rejected under the lock.
// Intended for tests and local development.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]models.Connection

	// activePair maps PairKey -> connection id for records whose status is
	// pending or accepted. It is the in-memory twin of the
	// connections_active_pair index.
	activePair map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[int64]models.Connection),
		activePair: make(map[string]int64),
	}
}

// Create inserts the pending connection and fills in the generated id.
// A live record for the same unordered pair yields sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conn.PairKey()
	if _, exists := s.activePair[key]; exists {
		return fmt.Errorf("create connection: %w", sentinel.ErrConflict)
	}

	s.nextID++
	conn.ID = s.nextID
	s.byID[conn.ID] = *conn
	s.activePair[key] = conn.ID
	return nil
}

// FindByID returns the connection or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := conn
	return &out, nil
}

// FindActiveBetween returns the pending or accepted record between the pair,
// in either orientation. The most recently created wins should the data ever
// hold more than one.
func (s *InMemory) FindActiveBetween(_ context.Context, a, b domain.ParticipantRef) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.PairKey(a, b)
	var found *models.Connection
	for id := range s.byID {
		conn := s.byID[id]
		if conn.PairKey() != key || !conn.Status.IsActive() {
			continue
		}
		if found == nil || conn.CreatedAt.After(found.CreatedAt) ||
			(conn.CreatedAt.Equal(found.CreatedAt) && conn.ID > found.ID) {
			c := conn
			found = &c
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

// FindLatestBetween returns the most recently created record between the
// pair regardless of status. Because a pair has at most one live record and
// every record starts pending, the latest record is the live one when it
// exists and the newest piece of history otherwise.
func (s *InMemory) FindLatestBetween(_ context.Context, a, b domain.ParticipantRef) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.PairKey(a, b)
	var found *models.Connection
	for id := range s.byID {
		conn := s.byID[id]
		if conn.PairKey() != key {
			continue
		}
		if found == nil || conn.CreatedAt.After(found.CreatedAt) ||
			(conn.CreatedAt.Equal(found.CreatedAt) && conn.ID > found.ID) {
			c := conn
			found = &c
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

// UpdateStatus persists the connection's status, response date, and updated
// timestamp. The write is unconditional; transition checks belong to the
// lifecycle service.
func (s *InMemory) UpdateStatus(_ context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[conn.ID]
	if !ok {
		return sentinel.ErrNotFound
	}

	stored.Status = conn.Status
	stored.ResponseDate = conn.ResponseDate
	stored.UpdatedAt = conn.UpdatedAt
	s.byID[conn.ID] = stored

	// Keep the active-pair index in step with the status.
	key := stored.PairKey()
	if stored.Status.IsActive() {
		s.activePair[key] = stored.ID
	} else if s.activePair[key] == stored.ID {
		delete(s.activePair, key)
	}
	return nil
}

// List returns the participant's connections after filtering, ordering, and
// pagination, along with the pre-pagination total.
func (s *InMemory) List(_ context.Context, ref domain.ParticipantRef, filter models.ListFilter, page models.Page) ([]*models.Connection, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Connection
	for id := range s.byID {
		conn := s.byID[id]
		if !conn.IsParty(ref) {
			continue
		}
		if !matchesFilter(&conn, ref, filter) {
			continue
		}
		c := conn
		matched = append(matched, &c)
	}

	sortConnections(matched, page.SortBy, page.SortOrder)

	total := int64(len(matched))
	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// Stats aggregates totals by status and by kind pairing.
func (s *InMemory) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{
		ByStatus:  make(map[models.Status]int64),
		ByPairing: make(map[string]int64),
	}
	for id := range s.byID {
		conn := s.byID[id]
		stats.Total++
		stats.ByStatus[conn.Status]++
		stats.ByPairing[models.PairingKey(conn.Requester.Kind, conn.Receiver.Kind)]++
	}
	return stats, nil
}

func matchesFilter(conn *models.Connection, ref domain.ParticipantRef, filter models.ListFilter) bool {
	if filter.Status != nil && conn.Status != *filter.Status {
		return false
	}
	if filter.CounterpartKind != nil {
		counterpart, ok := conn.CounterpartOf(ref)
		if !ok || counterpart.Kind != *filter.CounterpartKind {
			return false
		}
	}
	if filter.Direction != nil {
		switch *filter.Direction {
		case models.DirectionSent:
			if conn.Requester != ref {
				return false
			}
		case models.DirectionReceived:
			if conn.Receiver != ref {
				return false
			}
		}
	}
	return true
}

// sortConnections orders the slice like the Postgres store: the requested
// key with nil response dates last, then id descending as the tie-break.
func sortConnections(conns []*models.Connection, by models.SortBy, order models.SortOrder) {
	sort.SliceStable(conns, func(i, j int) bool {
		a, b := conns[i], conns[j]
		switch by {
		case models.SortByResponseDate:
			if a.ResponseDate == nil && b.ResponseDate == nil {
				break
			}
			if a.ResponseDate == nil {
				return false // nils last in either order
			}
			if b.ResponseDate == nil {
				return true
			}
			if !a.ResponseDate.Equal(*b.ResponseDate) {
				if order == models.SortAsc {
					return a.ResponseDate.Before(*b.ResponseDate)
				}
				return a.ResponseDate.After(*b.ResponseDate)
			}
		case models.SortByStatus:
			if a.Status != b.Status {
				if order == models.SortAsc {
					return a.Status < b.Status
				}
				return a.Status > b.Status
			}
		default: // request date
			if !a.RequestDate.Equal(b.RequestDate) {
				if order == models.SortAsc {
					return a.RequestDate.Before(b.RequestDate)
				}
				return a.RequestDate.After(b.RequestDate)
			}
		}
		return a.ID > b.ID
	})
}
