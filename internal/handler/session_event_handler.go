package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"Mansoor88-6/session-replay/internal/archive"
	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/models"
	"Mansoor88-6/session-replay/internal/repository"
	"Mansoor88-6/session-replay/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SessionEventHandler struct {
	service     *service.SessionEventService
	metrics     *metrics.Metrics
	maxBodySize int64
	logger      *zap.Logger
}

func NewSessionEventHandler(svc *service.SessionEventService, m *metrics.Metrics, maxBodySize int64, logger *zap.Logger) *SessionEventHandler {
	if m == nil {
		m = metrics.New()
	}
	return &SessionEventHandler{
		service:     svc,
		metrics:     m,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// SaveEvents is the collector endpoint. packed is stored verbatim as one
// row; the viewer unpacks the whole upload from that row.
func (h *SessionEventHandler) SaveEvents(w http.ResponseWriter, r *http.Request) {
	h.metrics.Inc(&h.metrics.IngestRequestsTotal)

	var req models.UploadPayload
	if !h.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		h.reject(w, "Missing sessionId", http.StatusBadRequest)
		return
	}
	if req.Packed == "" {
		h.reject(w, "Missing packed", http.StatusBadRequest)
		return
	}

	meta := service.IngestMeta{ProjectKey: req.JiraProjectKey, UserAgent: req.UserAgent}
	if _, err := h.service.Ingest(r.Context(), req.SessionID, req.Packed, meta); err != nil {
		h.storeFailed(w, req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.SaveResponse{SessionID: req.SessionID, Saved: 1})
}

// SaveMultiple accepts packed events as a real JSON array
func (h *SessionEventHandler) SaveMultiple(w http.ResponseWriter, r *http.Request) {
	h.metrics.Inc(&h.metrics.IngestRequestsTotal)

	var req models.SaveMultipleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		h.reject(w, "Missing sessionId", http.StatusBadRequest)
		return
	}

	meta := service.IngestMeta{ProjectKey: req.JiraProjectKey, UserAgent: req.UserAgent}
	events, err := h.service.IngestBatch(r.Context(), req.SessionID, req.Packed, meta)
	if err != nil {
		h.storeFailed(w, req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.SaveResponse{SessionID: req.SessionID, Saved: len(events)})
}

func (h *SessionEventHandler) GetEventsBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	events, err := h.service.GetBySession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to get session events", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to get session events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *SessionEventHandler) GetEventByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	event, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *SessionEventHandler) DeleteEventsBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	deleted, err := h.service.DeleteBySession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to delete session events", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to delete session events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResponse{Deleted: deleted})
}

func (h *SessionEventHandler) DeleteEventByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	event, err := h.service.DeleteByID(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *SessionEventHandler) GetEventsByTimeRange(w http.ResponseWriter, r *http.Request) {
	startTime, err := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid startTime parameter", http.StatusBadRequest)
		return
	}
	endTime, err := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid endTime parameter", http.StatusBadRequest)
		return
	}

	events, err := h.service.GetByTimeRange(r.Context(), startTime, endTime)
	if err != nil {
		h.logger.Error("Failed to get events by time range", zap.Error(err))
		http.Error(w, "Failed to get events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ExportSession streams the session as gzip JSON lines
func (h *SessionEventHandler) ExportSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	events, err := h.service.GetBySession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to export session", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to export session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sessionID+`.jsonl.gz"`)
	w.WriteHeader(http.StatusOK)
	if err := archive.WriteJSONLGZ(w, events); err != nil {
		h.logger.Warn("Export interrupted", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (h *SessionEventHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.reject(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	h.logger.Debug("Failed to decode request", zap.Error(err))
	h.reject(w, "Invalid request body", http.StatusBadRequest)
	return false
}

func (h *SessionEventHandler) reject(w http.ResponseWriter, msg string, status int) {
	h.metrics.Inc(&h.metrics.IngestRequestsRejectedTotal)
	http.Error(w, msg, status)
}

func (h *SessionEventHandler) storeFailed(w http.ResponseWriter, sessionID string, err error) {
	h.logger.Error("Failed to save session events", zap.String("session_id", sessionID), zap.Error(err))
	http.Error(w, "Failed to save session events", http.StatusInternalServerError)
}

func (h *SessionEventHandler) lookupFailed(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Event with ID "+strconv.FormatInt(id, 10)+" not found", http.StatusNotFound)
		return
	}
	h.logger.Error("Failed to access session event", zap.Int64("event_id", id), zap.Error(err))
	http.Error(w, "Failed to access session event", http.StatusInternalServerError)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id parameter", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
