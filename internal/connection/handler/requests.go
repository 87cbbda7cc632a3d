package handler

import (
	"net/http"
	"strconv"
	"strings"

	"proconnect/internal/connection/models"
	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
)

// CreateConnectionRequest is the HTTP request body for POST /connections.
// The requester is always the authenticated participant, never the body.
type CreateConnectionRequest struct {
	ReceiverKind string `json:"receiver_kind"`
	ReceiverID   int64  `json:"receiver_id"`

	// Parsed values (populated by Validate)
	parsedReceiver domain.ParticipantRef
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateConnectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	kind, err := domain.ParseParticipantKind(strings.TrimSpace(r.ReceiverKind))
	if err != nil {
		return err
	}

	receiver, err := domain.NewParticipantRef(kind, r.ReceiverID)
	if err != nil {
		return err
	}
	r.parsedReceiver = receiver

	return nil
}

// ParsedReceiver returns the validated receiver reference.
func (r *CreateConnectionRequest) ParsedReceiver() domain.ParticipantRef {
	return r.parsedReceiver
}

// UpdateConnectionRequest is the HTTP request body for
// PATCH /connections/{connectionID}.
type UpdateConnectionRequest struct {
	Status string `json:"status"`

	// Parsed values (populated by Validate)
	parsedStatus models.Status
}

// Validate validates and parses the request. Which transitions the target
// status permits is the service's rule, not the body's.
func (r *UpdateConnectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status

	return nil
}

// ParsedStatus returns the validated target status.
func (r *UpdateConnectionRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// parseListQuery reads the filter, pagination, and ordering query parameters
// for GET /connections. Pagination is page-number based on the wire and
// offset based internally; the limit is resolved here because the offset
// depends on it.
func parseListQuery(r *http.Request) (models.ListFilter, models.Page, error) {
	q := r.URL.Query()

	var filter models.ListFilter
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return filter, models.Page{}, err
		}
		filter.Status = &status
	}
	if raw := q.Get("counterpart_kind"); raw != "" {
		kind, err := domain.ParseParticipantKind(raw)
		if err != nil {
			return filter, models.Page{}, err
		}
		filter.CounterpartKind = &kind
	}
	if raw := q.Get("direction"); raw != "" {
		direction, err := models.ParseDirection(raw)
		if err != nil {
			return filter, models.Page{}, err
		}
		filter.Direction = &direction
	}

	limit := models.DefaultPageLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, models.Page{}, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		if n > models.MaxPageLimit {
			n = models.MaxPageLimit
		}
		limit = n
	}

	pageNum := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, models.Page{}, dErrors.New(dErrors.CodeValidation, "page must be a positive integer")
		}
		pageNum = n
	}

	page := models.Page{
		Limit:  limit,
		Offset: (pageNum - 1) * limit,
	}

	if raw := q.Get("sort_by"); raw != "" {
		sortBy, err := models.ParseSortBy(raw)
		if err != nil {
			return filter, models.Page{}, err
		}
		page.SortBy = sortBy
	}
	if raw := q.Get("sort_order"); raw != "" {
		sortOrder, err := models.ParseSortOrder(raw)
		if err != nil {
			return filter, models.Page{}, err
		}
		page.SortOrder = sortOrder
	}

	return filter, page, nil
}
