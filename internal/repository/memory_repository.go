package repository

import (
	"context"
	"sort"
	"sync"

	"Mansoor88-6/session-replay/internal/models"
)

// MemoryRepository keeps events in process memory. It has no bulk insert,
// so batches go through Create one row at a time.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	events map[int64]models.SessionEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[int64]models.SessionEvent)}
}

func (r *MemoryRepository) Create(ctx context.Context, sessionID, eventData string, ingestedAt int64) (*models.SessionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	event := models.SessionEvent{
		ID:        r.nextID,
		SessionID: sessionID,
		EventData: eventData,
		Timestamp: ingestedAt,
	}
	r.events[event.ID] = event
	return &event, nil
}

func (r *MemoryRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionEvent, error) {
	return r.filter(func(e models.SessionEvent) bool { return e.SessionID == sessionID }), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (r *MemoryRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, event := range r.events {
		if event.SessionID == sessionID {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.events, id)
	return &event, nil
}

func (r *MemoryRepository) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*models.SessionEvent, error) {
	return r.filter(func(e models.SessionEvent) bool {
		return e.Timestamp >= startMs && e.Timestamp <= endMs
	}), nil
}

func (r *MemoryRepository) filter(match func(models.SessionEvent) bool) []*models.SessionEvent {
	r.mu.RLock()
	events := []*models.SessionEvent{}
	for _, event := range r.events {
		if match(event) {
			e := event
			events = append(events, &e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].ID < events[j].ID
	})
	return events
}
