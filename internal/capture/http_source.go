package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"Mansoor88-6/session-replay/internal/models"

	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("capture source already started")

// HTTPSource receives recorder events POSTed by the in-page capture
// script. The body is a JSON array of raw recorder events; each element
// is kept verbatim as the record payload.
type HTTPSource struct {
	maxBodySize int64
	now         func() time.Time
	logger      *zap.Logger

	mu   sync.RWMutex
	emit func(models.EventRecord)
}

// NewHTTPSource creates a stopped source
func NewHTTPSource(maxBodySize int64, logger *zap.Logger) *HTTPSource {
	if maxBodySize <= 0 {
		maxBodySize = 10 << 20
	}
	return &HTTPSource{
		maxBodySize: maxBodySize,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *HTTPSource) Start(emit func(models.EventRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emit != nil {
		return ErrAlreadyStarted
	}
	s.emit = emit
	s.logger.Info("Capture intake started")
	return nil
}

func (s *HTTPSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emit != nil {
		s.emit = nil
		s.logger.Info("Capture intake stopped")
	}
	return nil
}

type timestampProbe struct {
	Timestamp *int64 `json:"timestamp"`
}

type acceptedResponse struct {
	Accepted int `json:"accepted"`
}

// ServeHTTP accepts POST of a JSON array of recorder events
func (s *HTTPSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	emit := s.emit
	s.mu.RUnlock()
	if emit == nil {
		http.Error(w, "Capture is not running", http.StatusConflict)
		return
	}

	var events []json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodySize)).Decode(&events); err != nil {
		s.logger.Warn("Failed to decode captured events", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, raw := range events {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		emit(models.EventRecord{
			Payload:   string(raw),
			Timestamp: s.timestampOf(raw),
		})
		accepted++
	}

	s.logger.Debug("Captured events received", zap.Int("count", accepted))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(acceptedResponse{Accepted: accepted})
}

// timestampOf reads the event's own "timestamp" field, falling back to now
func (s *HTTPSource) timestampOf(raw json.RawMessage) int64 {
	var probe timestampProbe
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Timestamp != nil {
		return *probe.Timestamp
	}
	return s.now().UnixMilli()
}
