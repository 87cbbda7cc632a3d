package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"proconnect/internal/audit"
)

// InMemory keeps the trail in insertion order. Duplicate event ids are
// ignored, matching the Postgres store's ON CONFLICT DO NOTHING.
type InMemory struct {
	mu     sync.RWMutex
	seen   map[uuid.UUID]bool
	events []audit.Event
}

func NewInMemory() *InMemory {
	return &InMemory{seen: make(map[uuid.UUID]bool)}
}

func (s *InMemory) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[event.ID] {
		return nil
	}
	s.seen[event.ID] = true
	s.events = append(s.events, event)
	return nil
}

// ListByConnection returns one connection's events, oldest first.
func (s *InMemory) ListByConnection(_ context.Context, connectionID int64) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, event := range s.events {
		if event.ConnectionID == connectionID {
			out = append(out, event)
		}
	}
	return out, nil
}

// ListRecent returns the most recent N events, newest first.
func (s *InMemory) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]audit.Event, 0, len(s.events)-start)
	for i := len(s.events) - 1; i >= start; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
