package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/adapter/pii"
	"github.com/V4T54L/safewatch/internal/domain"
)

// NotifyRequest is the body accepted by POST /api/notify.
type NotifyRequest struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type notifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NotifyHandler lets other processes broadcast an event to dashboard
// subscribers.
type NotifyHandler struct {
	publisher     domain.EventPublisher
	logger        *slog.Logger
	metrics       *metrics.NotifierMetrics
	redactor      *pii.Redactor
	maxNotifySize int64
}

// NewNotifyHandler creates a new NotifyHandler. m may be nil.
func NewNotifyHandler(publisher domain.EventPublisher, logger *slog.Logger, m *metrics.NotifierMetrics, maxNotifySize int64) *NotifyHandler {
	return &NotifyHandler{
		publisher:     publisher,
		logger:        logger.With("component", "notify_handler"),
		metrics:       m,
		maxNotifySize: maxNotifySize,
	}
}

// WithRedactor masks sensitive keys in event data before broadcast.
func (h *NotifyHandler) WithRedactor(r *pii.Redactor) *NotifyHandler {
	h.redactor = r
	return h
}

// ServeHTTP processes incoming notify requests.
func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.record("method_not_allowed")
		respondWithError(h.logger, w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	if h.maxNotifySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxNotifySize)
	}

	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.record("too_large")
			respondWithError(h.logger, w, http.StatusRequestEntityTooLarge, "Payload too large", "")
			return
		}
		h.record("bad_request")
		h.logger.Warn("failed to decode notify request", "error", err)
		respondWithError(h.logger, w, http.StatusBadRequest, "Bad request", err.Error())
		return
	}

	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		h.record("bad_request")
		respondWithError(h.logger, w, http.StatusBadRequest, "Bad request", "type is required")
		return
	}

	if h.redactor != nil {
		var redacted bool
		if req.Data, redacted = h.redactor.Redact(req.Data); redacted {
			h.logger.Info("masked sensitive fields in notification", "type", req.Type)
		}
	}

	h.publisher.Publish(r.Context(), domain.NewNotificationEvent(req.Type, req.Message, req.Data))
	h.record("ok")
	respondWithJSON(h.logger, w, http.StatusOK, notifyResponse{Success: true, Message: "Notification sent"})
}

func (h *NotifyHandler) record(status string) {
	if h.metrics != nil {
		h.metrics.NotifyRequests.WithLabelValues(status).Inc()
	}
}
