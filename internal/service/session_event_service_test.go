package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"Mansoor88-6/session-replay/internal/database"
	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/models"
	"Mansoor88-6/session-replay/internal/notify"
	"Mansoor88-6/session-replay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Dispatch(note notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

// failingRepository fails Create after ok successful calls
type failingRepository struct {
	*repository.MemoryRepository
	ok int
}

func (r *failingRepository) Create(ctx context.Context, sessionID, eventData string, ingestedAt int64) (*models.SessionEvent, error) {
	if r.ok == 0 {
		return nil, errors.New("disk full")
	}
	r.ok--
	return r.MemoryRepository.Create(ctx, sessionID, eventData, ingestedAt)
}

func newIngest(repo repository.SessionEventRepository, notifier Notifier, clock *int64) (*SessionEventService, *metrics.Metrics) {
	m := metrics.New()
	svc := NewSessionEventService(repo, notifier, m, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(*clock) }
	return svc, m
}

func TestIngestStampsServerTime(t *testing.T) {
	clock := int64(5000)
	notifier := &recordingNotifier{}
	svc, m := newIngest(repository.NewMemoryRepository(), notifier, &clock)

	event, err := svc.Ingest(context.Background(), "s1", "gz:abc", IngestMeta{ProjectKey: "QA", UserAgent: "ua"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), event.Timestamp)
	assert.Equal(t, "s1", event.SessionID)
	assert.Positive(t, event.ID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "QA", notifier.sent[0].ProjectKey)
	assert.Equal(t, "ua", notifier.sent[0].UserAgent)
	assert.Equal(t, []*models.SessionEvent{event}, notifier.sent[0].Events)
	assert.Equal(t, int64(1), m.EventsStoredTotal)
}

func TestIngestBatchSequentialFallback(t *testing.T) {
	clock := int64(1234)
	svc, m := newIngest(repository.NewMemoryRepository(), nil, &clock)

	events, err := svc.IngestBatch(context.Background(), "s1", []string{"a", "b"}, IngestMeta{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "s1", e.SessionID)
	}
	assert.Equal(t, events[0].Timestamp, events[1].Timestamp)
	assert.Equal(t, "a", events[0].EventData)
	assert.Equal(t, "b", events[1].EventData)
	assert.Equal(t, int64(2), m.EventsStoredTotal)
}

func TestIngestBatchUsesBulkInsert(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "ingest.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := int64(777)
	notifier := &recordingNotifier{}
	svc, _ := newIngest(repository.NewSQLiteRepository(db.DB), notifier, &clock)

	events, err := svc.IngestBatch(context.Background(), "s1", []string{"a", "b", "c"}, IngestMeta{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(777), events[2].Timestamp)

	stored, err := svc.GetBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, events, stored)

	require.Len(t, notifier.sent, 1)
	assert.Len(t, notifier.sent[0].Events, 3)
}

func TestIngestFailureDoesNotNotify(t *testing.T) {
	clock := int64(1)
	notifier := &recordingNotifier{}
	repo := &failingRepository{MemoryRepository: repository.NewMemoryRepository(), ok: 1}
	svc, m := newIngest(repo, notifier, &clock)

	_, err := svc.IngestBatch(context.Background(), "s1", []string{"a", "b"}, IngestMeta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = svc.Ingest(context.Background(), "s1", "c", IngestMeta{})
	require.Error(t, err)

	assert.Empty(t, notifier.sent)
	assert.Equal(t, int64(2), m.StoreErrorsTotal)
}

func TestGetByTimeRange(t *testing.T) {
	clock := int64(0)
	svc, _ := newIngest(repository.NewMemoryRepository(), nil, &clock)
	ctx := context.Background()

	for _, ts := range []int64{100, 200, 300} {
		clock = ts
		_, err := svc.Ingest(ctx, "s1", "e", IngestMeta{})
		require.NoError(t, err)
	}

	events, err := svc.GetByTimeRange(ctx, 150, 300)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(200), events[0].Timestamp)
	assert.Equal(t, int64(300), events[1].Timestamp)
}

func TestDeleteByIDThenNotFound(t *testing.T) {
	clock := int64(10)
	svc, _ := newIngest(repository.NewMemoryRepository(), nil, &clock)
	ctx := context.Background()

	event, err := svc.Ingest(ctx, "s1", "e", IngestMeta{})
	require.NoError(t, err)

	deleted, err := svc.DeleteByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event, deleted)

	_, err = svc.GetByID(ctx, event.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := svc.DeleteBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
