package service

import (
	"context"
	"fmt"
	"time"

	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/models"
	"Mansoor88-6/session-replay/internal/notify"
	"Mansoor88-6/session-replay/internal/repository"

	"go.uber.org/zap"
)

// Notifier receives every successful ingest. Implementations must not block.
type Notifier interface {
	Dispatch(n notify.Notification)
}

// IngestMeta carries the optional collector fields used for notifications
type IngestMeta struct {
	ProjectKey string
	UserAgent  string
}

type SessionEventService struct {
	repo     repository.SessionEventRepository
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionEventService wires the store. notifier may be nil.
func NewSessionEventService(
	repo repository.SessionEventRepository,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SessionEventService {
	if m == nil {
		m = metrics.New()
	}
	return &SessionEventService{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest stores one packed payload stamped with the server clock
func (s *SessionEventService) Ingest(ctx context.Context, sessionID, packed string, meta IngestMeta) (*models.SessionEvent, error) {
	event, err := s.repo.Create(ctx, sessionID, packed, s.now().UnixMilli())
	if err != nil {
		s.metrics.Inc(&s.metrics.StoreErrorsTotal)
		return nil, err
	}

	s.metrics.Inc(&s.metrics.EventsStoredTotal)
	s.dispatch(sessionID, meta, []*models.SessionEvent{event})
	return event, nil
}

// IngestBatch stores every payload with one shared ingest timestamp. Stores
// without a bulk insert fall back to one Create per payload.
func (s *SessionEventService) IngestBatch(ctx context.Context, sessionID string, packed []string, meta IngestMeta) ([]*models.SessionEvent, error) {
	if len(packed) == 0 {
		return []*models.SessionEvent{}, nil
	}
	now := s.now().UnixMilli()

	var events []*models.SessionEvent
	var err error
	if bulk, ok := s.repo.(repository.BatchCreator); ok {
		events, err = bulk.CreateBatch(ctx, sessionID, packed, now)
	} else {
		events, err = s.createEach(ctx, sessionID, packed, now)
	}
	if err != nil {
		s.metrics.Inc(&s.metrics.StoreErrorsTotal)
		return nil, err
	}

	s.metrics.Add(&s.metrics.EventsStoredTotal, int64(len(events)))
	s.dispatch(sessionID, meta, events)
	return events, nil
}

func (s *SessionEventService) createEach(ctx context.Context, sessionID string, packed []string, now int64) ([]*models.SessionEvent, error) {
	events := make([]*models.SessionEvent, 0, len(packed))
	for i, p := range packed {
		event, err := s.repo.Create(ctx, sessionID, p, now)
		if err != nil {
			// rows already written stay; the collector retries the whole batch
			s.logger.Error("Sequential batch insert failed",
				zap.String("session_id", sessionID),
				zap.Int("stored", i),
				zap.Int("event_count", len(packed)),
				zap.Error(err),
			)
			s.metrics.Add(&s.metrics.EventsStoredTotal, int64(i))
			return nil, fmt.Errorf("failed to store event %d of %d: %w", i+1, len(packed), err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *SessionEventService) dispatch(sessionID string, meta IngestMeta, events []*models.SessionEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(notify.Notification{
		SessionID:  sessionID,
		ProjectKey: meta.ProjectKey,
		UserAgent:  meta.UserAgent,
		Events:     events,
	})
}

func (s *SessionEventService) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionEvent, error) {
	return s.repo.GetBySession(ctx, sessionID)
}

func (s *SessionEventService) GetByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SessionEventService) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	deleted, err := s.repo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Session events deleted",
		zap.String("session_id", sessionID),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *SessionEventService) DeleteByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	return s.repo.DeleteByID(ctx, id)
}

func (s *SessionEventService) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*models.SessionEvent, error) {
	return s.repo.GetByTimeRange(ctx, startMs, endMs)
}
