package directory

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"proconnect/internal/participant/models"
	"proconnect/pkg/domain"
	"proconnect/pkg/platform/sentinel"
)

// batchConcurrency bounds parallel store lookups during listing enrichment.
const batchConcurrency = 4

type ConsultantStore interface {
	FindByID(ctx context.Context, id int64) (*models.Consultant, error)
}

type ClientStore interface {
	FindByID(ctx context.Context, id int64) (*models.Client, error)
}

// Service resolves participant references against the per-kind stores.
// Soft-deleted participants do not resolve: they are indistinguishable
// from absent ones to every caller.
type Service struct {
	consultants ConsultantStore
	clients     ClientStore
}

func New(consultants ConsultantStore, clients ClientStore) *Service {
	return &Service{consultants: consultants, clients: clients}
}

// Exists reports whether the reference denotes a live participant.
// Store failures surface as errors; absence is not an error.
func (s *Service) Exists(ctx context.Context, ref domain.ParticipantRef) (bool, error) {
	_, err := s.DisplayInfo(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DisplayInfo returns the display attributes for a live participant.
// Returns sentinel.ErrNotFound when the participant is absent or deleted.
func (s *Service) DisplayInfo(ctx context.Context, ref domain.ParticipantRef) (*models.DisplayInfo, error) {
	switch ref.Kind {
	case domain.KindConsultant:
		c, err := s.consultants.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return c.Display(), nil
	case domain.KindClient:
		c, err := s.clients.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return c.Display(), nil
	default:
		return nil, sentinel.ErrNotFound
	}
}

// DisplayInfoBatch resolves display attributes for a set of references with
// bounded concurrency. Enrichment is best-effort: references that fail to
// resolve are simply absent from the result, never an error.
func (s *Service) DisplayInfoBatch(ctx context.Context, refs []domain.ParticipantRef) map[domain.ParticipantRef]*models.DisplayInfo {
	return displayBatch(ctx, s, refs)
}

type displaySource interface {
	DisplayInfo(ctx context.Context, ref domain.ParticipantRef) (*models.DisplayInfo, error)
}

func displayBatch(ctx context.Context, src displaySource, refs []domain.ParticipantRef) map[domain.ParticipantRef]*models.DisplayInfo {
	out := make(map[domain.ParticipantRef]*models.DisplayInfo, len(refs))
	if len(refs) == 0 {
		return out
	}

	var (
		mu   sync.Mutex
		g    errgroup.Group
		seen = make(map[domain.ParticipantRef]bool, len(refs))
	)
	g.SetLimit(batchConcurrency)

	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		g.Go(func() error {
			info, err := src.DisplayInfo(ctx, ref)
			if err != nil {
				return nil
			}
			mu.Lock()
			out[ref] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
