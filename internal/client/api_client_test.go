package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Mansoor88-6/session-replay/internal/models"
	"Mansoor88-6/session-replay/internal/packer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingTimer fires immediately and remembers the requested delays
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	ch     chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delays = append(t.delays, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch
}

func (t *recordingTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

func newTestClient(serverURL string, timer *recordingTimer) *APIClient {
	c := NewAPIClient(Options{
		ServerURL:     serverURL,
		UserAgent:     "test-agent/1.0",
		MaxRetryCount: 3,
		RetryDelay:    time.Second,
		Timeout:       5 * time.Second,
		Packer:        packer.NopPacker{},
	}, zap.NewNop())
	if timer != nil {
		c.timer = timer
	}
	return c
}

func records(timestamps ...int64) []models.EventRecord {
	out := make([]models.EventRecord, 0, len(timestamps))
	for i, ts := range timestamps {
		out = append(out, models.EventRecord{Payload: `{"type":3}`, Timestamp: ts, Seq: uint64(i + 1)})
	}
	return out
}

func TestSendEmptyIsNoop(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &recordingTimer{})
	resp, err := c.Send(context.Background(), nil, "session_1", "QA")

	assert.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSendPostsPayload(t *testing.T) {
	var got models.UploadPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sessionId":"session_1","saved":2}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &recordingTimer{})
	resp, err := c.Send(context.Background(), records(1, 2), "session_1", "QA")
	require.NoError(t, err)

	assert.Equal(t, "session_1", resp.SessionID)
	assert.Equal(t, 2, resp.SavedCount(0))

	assert.Equal(t, "session_1", got.SessionID)
	assert.Equal(t, "QA", got.JiraProjectKey)
	assert.Equal(t, "test-agent/1.0", got.UserAgent)

	var packed []string
	require.NoError(t, json.Unmarshal([]byte(got.Packed), &packed))
	assert.Equal(t, []string{`{"type":3}`, `{"type":3}`}, packed)
}

func TestSendSavedMissingFallsBackToCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sessionId":"session_1"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &recordingTimer{})
	resp, err := c.Send(context.Background(), records(1, 2, 3), "session_1", "")
	require.NoError(t, err)
	assert.Nil(t, resp.Saved)
	assert.Equal(t, 3, resp.SavedCount(3))
}

func TestSendSetsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"sessionId":"s"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &recordingTimer{})
	c.apiKey = "secret"
	_, err := c.Send(context.Background(), records(1), "s", "")
	require.NoError(t, err)
}

func TestSendRetriesWithExponentialBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	timer := &recordingTimer{}
	c := newTestClient(srv.URL, timer)

	resp, err := c.Send(context.Background(), records(1), "session_1", "QA")

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.Delays())

	var deliveryErr *DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, 3, deliveryErr.Attempts)

	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusInternalServerError, backendErr.StatusCode)
}

func TestSendRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"sessionId":"session_1","saved":1}`))
	}))
	defer srv.Close()

	timer := &recordingTimer{}
	c := newTestClient(srv.URL, timer)

	resp, err := c.Send(context.Background(), records(1), "session_1", "QA")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SavedCount(0))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second}, timer.Delays())
}

func TestSendSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	timer := &recordingTimer{}
	c := newTestClient(srv.URL, timer)
	c.maxRetryCount = 1

	_, err := c.Send(context.Background(), records(1), "s", "")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, timer.Delays())
}

func TestSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	timer := &recordingTimer{}
	c := newTestClient(url, timer)

	_, err := c.Send(context.Background(), records(1), "s", "")

	var deliveryErr *DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, 3, deliveryErr.Attempts)
	assert.Len(t, timer.Delays(), 2)
}

func TestSendStopsOnCancelledContext(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for atomic.LoadInt32(&calls) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := c.Send(ctx, records(1), "s", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStatusErrorMapping(t *testing.T) {
	var authErr *AuthError
	assert.True(t, errors.As(statusError(http.StatusForbidden, nil), &authErr))

	var rateErr *RateLimitError
	assert.True(t, errors.As(statusError(http.StatusTooManyRequests, nil), &rateErr))

	var badErr *BadRequestError
	assert.True(t, errors.As(statusError(http.StatusBadRequest, nil), &badErr))

	var backendErr *BackendError
	assert.True(t, errors.As(statusError(http.StatusServiceUnavailable, nil), &backendErr))
}
