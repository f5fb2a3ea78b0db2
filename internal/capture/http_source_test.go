package capture

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"Mansoor88-6/session-replay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collected struct {
	mu      sync.Mutex
	records []models.EventRecord
}

func (c *collected) emit(rec models.EventRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPSourceRejectsWhenStopped(t *testing.T) {
	s := NewHTTPSource(0, zap.NewNop())

	rec := post(s, `[{"type":2,"timestamp":1}]`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHTTPSourceEmitsRecords(t *testing.T) {
	s := NewHTTPSource(0, zap.NewNop())
	s.now = func() time.Time { return time.UnixMilli(5000) }

	var got collected
	require.NoError(t, s.Start(got.emit))

	rec := post(s, `[{"type":2,"timestamp":1700000000001}, {"type":3}, null]`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":2}`, rec.Body.String())

	require.Len(t, got.records, 2)
	assert.Equal(t, `{"type":2,"timestamp":1700000000001}`, got.records[0].Payload)
	assert.Equal(t, int64(1700000000001), got.records[0].Timestamp)
	assert.Equal(t, `{"type":3}`, got.records[1].Payload)
	assert.Equal(t, int64(5000), got.records[1].Timestamp)
}

func TestHTTPSourceStartTwice(t *testing.T) {
	s := NewHTTPSource(0, zap.NewNop())
	require.NoError(t, s.Start(func(models.EventRecord) {}))
	assert.ErrorIs(t, s.Start(func(models.EventRecord) {}), ErrAlreadyStarted)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.NoError(t, s.Start(func(models.EventRecord) {}))
}

func TestHTTPSourceBadRequests(t *testing.T) {
	s := NewHTTPSource(16, zap.NewNop())
	require.NoError(t, s.Start(func(models.EventRecord) {}))

	assert.Equal(t, http.StatusBadRequest, post(s, `{"not":"an array"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(s, `[{"type":2,"timestamp":1700000000001}]`).Code, "body over limit")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
