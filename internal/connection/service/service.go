// Package service implements the connection lifecycle: who may request a
// connection, who may answer it, and how records move between statuses.
// Rule violations surface as coded domain errors; storage facts arrive as
// sentinel errors and are translated here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"proconnect/internal/audit"
	"proconnect/internal/connection/metrics"
	"proconnect/internal/connection/models"
	participantmodels "proconnect/internal/participant/models"
	"proconnect/internal/platform/device"
	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
	"proconnect/pkg/platform/sentinel"
	"proconnect/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

const tracerName = "proconnect/connection"

// Store is the connection repository. Implementations return sentinel errors
// for storage facts and never enforce domain rules.
type Store interface {
	Create(ctx context.Context, conn *models.Connection) error
	FindByID(ctx context.Context, id int64) (*models.Connection, error)
	FindActiveBetween(ctx context.Context, a, b domain.ParticipantRef) (*models.Connection, error)
	FindLatestBetween(ctx context.Context, a, b domain.ParticipantRef) (*models.Connection, error)
	UpdateStatus(ctx context.Context, conn *models.Connection) error
	List(ctx context.Context, ref domain.ParticipantRef, filter models.ListFilter, page models.Page) ([]*models.Connection, int64, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Directory resolves participant existence and display details.
type Directory interface {
	Exists(ctx context.Context, ref domain.ParticipantRef) (bool, error)
	DisplayInfoBatch(ctx context.Context, refs []domain.ParticipantRef) map[domain.ParticipantRef]*participantmodels.DisplayInfo
}

// AuditPublisher records lifecycle events. Emit failures are logged and
// swallowed; the trail never fails a mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the connection lifecycle.
type Service struct {
	store     Store
	directory Directory
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a pending connection request from actor to receiver.
// Preconditions run in order and the first failure wins: both participants
// resolve in the directory, the two sides differ, and no active record links
// the pair. The partial unique index closes the remaining race; a conflict
// there is mapped to the same coded failure the pre-check would have raised.
func (s *Service) Create(ctx context.Context, actor, receiver domain.ParticipantRef) (_ *models.Connection, err error) {
	ctx, span := s.tracer.Start(ctx, "connection.create", trace.WithAttributes(
		attribute.String("requester", actor.String()),
		attribute.String("receiver", receiver.String()),
	))
	defer func() { endSpan(span, err) }()

	if err := s.requireParticipant(ctx, actor, "requester"); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, receiver, "receiver"); err != nil {
		return nil, err
	}

	conn, err := models.NewConnection(actor, receiver, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	// Cheap duplicate pre-check for a clean error; the index is the guard.
	existing, err := s.store.FindActiveBetween(ctx, actor, receiver)
	if err == nil {
		s.incrementDuplicateBlocked()
		return nil, duplicateError(existing)
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, storageErr(err)
	}

	if err := s.store.Create(ctx, conn); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementDuplicateBlocked()
			return nil, s.concurrentDuplicate(ctx, actor, receiver)
		}
		return nil, storageErr(err)
	}

	s.incrementCreated()
	s.emitAudit(ctx, audit.ActionRequested, conn, actor)
	s.logInfo(ctx, "connection requested",
		"connection_id", conn.ID,
		"requester", actor.String(),
		"receiver", receiver.String())
	return conn, nil
}

// UpdateStatus moves a connection to next on behalf of actor. Only a party
// may touch the record; pending requests are answered by the receiver alone;
// accepted connections are removed by either side. Everything else is an
// invalid transition.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.ParticipantRef, id int64, next models.Status) (_ *models.Connection, err error) {
	ctx, span := s.tracer.Start(ctx, "connection.update_status", trace.WithAttributes(
		attribute.Int64("connection_id", id),
		attribute.String("to_status", next.String()),
	))
	defer func() { endSpan(span, err) }()

	conn, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "connection not found")
	}
	if !conn.IsParty(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "you are not a party to this connection")
	}

	now := requestcontext.Now(ctx)
	switch next {
	case models.StatusAccepted, models.StatusRejected:
		if err := conn.CanRespond(actor, next); err != nil {
			return nil, err
		}
		conn.ApplyResponse(next, now)
	case models.StatusRemoved:
		if err := conn.CanRemove(); err != nil {
			return nil, err
		}
		conn.ApplyRemoval(now)
	default:
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("connections cannot transition to %q", next.String()))
	}

	if err := s.store.UpdateStatus(ctx, conn); err != nil {
		return nil, wrapStoreErr(err, "connection not found")
	}

	s.incrementTransition(next)
	s.emitAudit(ctx, actionFor(next), conn, actor)
	s.logInfo(ctx, "connection status updated",
		"connection_id", conn.ID,
		"status", next.String(),
		"actor", actor.String())
	return conn, nil
}

// Get returns one connection with the counterpart enriched, party-scoped:
// a valid actor who is not a party gets CodeForbidden.
func (s *Service) Get(ctx context.Context, actor domain.ParticipantRef, id int64) (_ *models.ConnectionView, err error) {
	ctx, span := s.tracer.Start(ctx, "connection.get", trace.WithAttributes(
		attribute.Int64("connection_id", id),
	))
	defer func() { endSpan(span, err) }()

	conn, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "connection not found")
	}
	if !conn.IsParty(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "you are not a party to this connection")
	}

	counterpart, _ := conn.CounterpartOf(actor)
	infos := s.directory.DisplayInfoBatch(ctx, []domain.ParticipantRef{counterpart})
	return buildView(conn, actor, infos), nil
}

// List pages through actor's connections and enriches each with the
// counterpart's display details. Enrichment is best-effort: a failed lookup
// leaves the counterpart empty, never fails the listing.
func (s *Service) List(ctx context.Context, actor domain.ParticipantRef, filter models.ListFilter, page models.Page) (_ []*models.ConnectionView, total int64, err error) {
	ctx, span := s.tracer.Start(ctx, "connection.list", trace.WithAttributes(
		attribute.String("participant", actor.String()),
	))
	defer func() { endSpan(span, err) }()

	page.Normalize()

	conns, total, err := s.store.List(ctx, actor, filter, page)
	if err != nil {
		return nil, 0, storageErr(err)
	}

	refs := make([]domain.ParticipantRef, 0, len(conns))
	for _, conn := range conns {
		if counterpart, ok := conn.CounterpartOf(actor); ok {
			refs = append(refs, counterpart)
		}
	}
	infos := s.directory.DisplayInfoBatch(ctx, refs)

	views := make([]*models.ConnectionView, 0, len(conns))
	for _, conn := range conns {
		views = append(views, buildView(conn, actor, infos))
	}
	return views, total, nil
}

// StatusBetween reports where two participants stand. The governing record is
// the most recent one: the active record when one exists, else the latest
// piece of history. CanConnect is true only when nothing blocks a new request.
func (s *Service) StatusBetween(ctx context.Context, a, b domain.ParticipantRef) (_ *models.StatusSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "connection.status_between", trace.WithAttributes(
		attribute.String("participant_a", a.String()),
		attribute.String("participant_b", b.String()),
	))
	defer func() { endSpan(span, err) }()

	if a == b {
		// A participant has no standing with itself and may not request one.
		return &models.StatusSummary{Status: models.StatusNone, CanConnect: false}, nil
	}

	latest, err := s.store.FindLatestBetween(ctx, a, b)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.StatusSummary{Status: models.StatusNone, CanConnect: true}, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}

	return &models.StatusSummary{
		Status:     latest.Status.String(),
		CanConnect: latest.Status.IsTerminal(),
		Connection: latest,
	}, nil
}

// Stats returns the aggregate projection and refreshes the active gauge.
func (s *Service) Stats(ctx context.Context) (_ *models.Stats, err error) {
	ctx, span := s.tracer.Start(ctx, "connection.stats")
	defer func() { endSpan(span, err) }()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, storageErr(err)
	}

	s.setActiveGauge(stats)
	return stats, nil
}

func (s *Service) requireParticipant(ctx context.Context, ref domain.ParticipantRef, role string) error {
	ok, err := s.directory.Exists(ctx, ref)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "participant directory unavailable")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, role+" not found")
	}
	return nil
}

// concurrentDuplicate maps a lost create race to the same coded failure the
// pre-check would have produced.
func (s *Service) concurrentDuplicate(ctx context.Context, actor, receiver domain.ParticipantRef) error {
	existing, err := s.store.FindActiveBetween(ctx, actor, receiver)
	if err != nil {
		// The winner vanished before the re-read; a brand-new winner can only
		// have been pending.
		return dErrors.New(dErrors.CodeDuplicatePending, "a connection request between these participants already exists")
	}
	return duplicateError(existing)
}

func duplicateError(existing *models.Connection) error {
	if existing.Status == models.StatusAccepted {
		return dErrors.New(dErrors.CodeAlreadyConnected, "participants are already connected")
	}
	return dErrors.New(dErrors.CodeDuplicatePending, "a connection request between these participants is already pending")
}

func buildView(conn *models.Connection, viewer domain.ParticipantRef, infos map[domain.ParticipantRef]*participantmodels.DisplayInfo) *models.ConnectionView {
	view := &models.ConnectionView{Connection: conn}
	if counterpart, ok := conn.CounterpartOf(viewer); ok {
		view.CounterpartRef = counterpart
		view.Counterpart = infos[counterpart]
	}
	return view
}

func actionFor(status models.Status) audit.Action {
	switch status {
	case models.StatusAccepted:
		return audit.ActionAccepted
	case models.StatusRejected:
		return audit.ActionRejected
	default:
		return audit.ActionRemoved
	}
}

// storageErr surfaces a store failure as retryable at the transport edge.
func storageErr(err error) error {
	return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "connection storage unavailable")
}

// wrapStoreErr translates sentinel storage facts into coded errors.
func wrapStoreErr(err error, notFoundMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return storageErr(err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) emitAudit(ctx context.Context, action audit.Action, conn *models.Connection, actor domain.ParticipantRef) {
	if s.publisher == nil {
		return
	}
	counterpart, _ := conn.CounterpartOf(actor)
	event := audit.Event{
		Timestamp:    requestcontext.Now(ctx),
		Action:       action,
		ConnectionID: conn.ID,
		Actor:        actor,
		Counterpart:  counterpart,
		Status:       conn.Status.String(),
		Device:       device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		ClientIP:     requestcontext.ClientIP(ctx),
		RequestID:    requestcontext.RequestID(ctx),
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logWarn(ctx, "audit emit failed",
			"action", string(action),
			"connection_id", conn.ID,
			"error", err)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, args...)
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, msg, args...)
}

func (s *Service) incrementCreated() {
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
}

func (s *Service) incrementTransition(status models.Status) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(status)
	}
}

func (s *Service) incrementDuplicateBlocked() {
	if s.metrics != nil {
		s.metrics.IncrementDuplicateBlocked()
	}
}

func (s *Service) setActiveGauge(stats *models.Stats) {
	if s.metrics == nil {
		return
	}
	active := stats.ByStatus[models.StatusPending] + stats.ByStatus[models.StatusAccepted]
	s.metrics.SetActive(active)
}
