package consultant

import (
	"context"
	"sync"
	"time"

	"proconnect/internal/participant/models"
	"proconnect/pkg/platform/sentinel"
)

// InMemory keeps consultants in a mutex-guarded map. Intended for tests and
// local development; production uses the Postgres store.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]models.Consultant
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[int64]models.Consultant)}
}

// Create assigns the next surrogate id and stores the consultant.
func (s *InMemory) Create(_ context.Context, c *models.Consultant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.byID[c.ID] = *c
	return nil
}

// FindByID returns the consultant when present and not soft-deleted.
func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Consultant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok || c.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	out := c
	return &out, nil
}

// SoftDelete marks the consultant deleted; it stops resolving afterwards.
func (s *InMemory) SoftDelete(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok || c.IsDeleted() {
		return sentinel.ErrNotFound
	}
	c.DeletedAt = &now
	c.UpdatedAt = now
	s.byID[id] = c
	return nil
}
