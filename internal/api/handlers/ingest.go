package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/services"
)

// IngestHandler accepts raw messages from trusted relays
type IngestHandler struct {
	ingester        services.Ingester
	maxMessageBytes int64
}

// NewIngestHandler creates a new IngestHandler instance
func NewIngestHandler(ingester services.Ingester, maxMessageBytes int64) *IngestHandler {
	return &IngestHandler{ingester: ingester, maxMessageBytes: maxMessageBytes}
}

// Deliver ingests the raw RFC 5322 request body
// POST /api/internal/deliver?from=&to=&to=
func (h *IngestHandler) Deliver(c *gin.Context) {
	rcpts := c.QueryArray("to")
	if len(rcpts) == 0 {
		respondValidation(c, "at least one recipient is required", nil)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxMessageBytes+1))
	if err != nil {
		respondValidation(c, "Failed to read message", err)
		return
	}
	if int64(len(raw)) > h.maxMessageBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Message too large")
		return
	}

	report, err := h.ingester.Deliver(c.Request.Context(), c.Query("from"), rcpts, raw)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEmailData) {
			respondValidation(c, "Message could not be parsed", err)
			return
		}
		respondError(c, http.StatusServiceUnavailable, "INTERNAL_ERROR", "Delivery failed, retry later")
		return
	}
	respondOK(c, report)
}
