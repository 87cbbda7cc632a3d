package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"proconnect/internal/connection/models"
	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
	"proconnect/pkg/platform/httputil"
	"proconnect/pkg/requestcontext"
)

// Service defines the interface for connection lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor, receiver domain.ParticipantRef) (*models.Connection, error)
	UpdateStatus(ctx context.Context, actor domain.ParticipantRef, id int64, next models.Status) (*models.Connection, error)
	Get(ctx context.Context, actor domain.ParticipantRef, id int64) (*models.ConnectionView, error)
	List(ctx context.Context, actor domain.ParticipantRef, filter models.ListFilter, page models.Page) ([]*models.ConnectionView, int64, error)
	StatusBetween(ctx context.Context, a, b domain.ParticipantRef) (*models.StatusSummary, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler wires connection endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a connection handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts connection endpoints on the router. Static segments are
// registered alongside the id parameter; chi matches them first.
func (h *Handler) Register(r chi.Router) {
	r.Route("/connections", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/status", h.HandleStatusBetween)
		r.Get("/stats", h.HandleStats)
		r.Get("/{connectionID}", h.HandleGet)
		r.Patch("/{connectionID}", h.HandleUpdateStatus)
	})
}

// HandleCreate handles POST /connections requests. The authenticated
// participant is the requester; the body names the receiver.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateConnectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	conn, err := h.service.Create(ctx, actor, req.ParsedReceiver())
	if err != nil {
		h.logger.WarnContext(ctx, "connection request failed",
			"request_id", requestID,
			"requester", actor.String(),
			"receiver", req.ParsedReceiver().String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, conn)
}

// HandleUpdateStatus handles PATCH /connections/{connectionID} requests:
// accept, reject, or remove, depending on the target status in the body.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	id, err := connectionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateConnectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	conn, err := h.service.UpdateStatus(ctx, actor, id, req.ParsedStatus())
	if err != nil {
		h.logger.WarnContext(ctx, "connection status update failed",
			"request_id", requestID,
			"connection_id", id,
			"actor", actor.String(),
			"target_status", req.ParsedStatus().String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, conn)
}

// HandleGet handles GET /connections/{connectionID} requests. Only a party
// to the connection may read it.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	id, err := connectionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.Get(ctx, actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleList handles GET /connections requests for the authenticated
// participant, filtered and paginated by query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	filter, page, err := parseListQuery(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid list query",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	views, total, err := h.service.List(ctx, actor, filter, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListConnectionsResponse{
		Connections: views,
		Total:       total,
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
}

// HandleStatusBetween handles GET /connections/status?kind&id requests. The
// query names the counterpart; the authenticated participant is the other
// side.
func (h *Handler) HandleStatusBetween(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	counterpart, err := domain.ParseParticipantRef(
		r.URL.Query().Get("kind"),
		r.URL.Query().Get("id"),
	)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.service.StatusBetween(ctx, actor, counterpart)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleStats handles GET /connections/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requireActor(w, ctx); !ok {
		return
	}

	stats, err := h.service.Stats(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// requireActor reads the authenticated participant that RequireAuth stored in
// the context. A zero ref means the middleware is missing from the chain; the
// request is refused rather than served unattributed.
func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (domain.ParticipantRef, bool) {
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		h.logger.ErrorContext(ctx, "participant missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.ParticipantRef{}, false
	}
	return actor, true
}

func connectionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "connectionID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid connection id")
	}
	return id, nil
}
