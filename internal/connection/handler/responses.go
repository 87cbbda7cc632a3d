package handler

import "proconnect/internal/connection/models"

// ListConnectionsResponse is the HTTP response for GET /connections.
type ListConnectionsResponse struct {
	Connections []*models.ConnectionView `json:"connections"`
	Total       int64                    `json:"total"`
	Limit       int                      `json:"limit"`
	Offset      int                      `json:"offset"`
}
