package repository

import (
	"context"
	"errors"

	"Mansoor88-6/session-replay/internal/models"
)

// ErrNotFound is returned when no event has the requested id
var ErrNotFound = errors.New("session event not found")

// SessionEventRepository persists session events
type SessionEventRepository interface {
	Create(ctx context.Context, sessionID, eventData string, ingestedAt int64) (*models.SessionEvent, error)
	GetBySession(ctx context.Context, sessionID string) ([]*models.SessionEvent, error)
	GetByID(ctx context.Context, id int64) (*models.SessionEvent, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	DeleteByID(ctx context.Context, id int64) (*models.SessionEvent, error)
	// GetByTimeRange is inclusive on both bounds
	GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*models.SessionEvent, error)
}

// BatchCreator is implemented by stores that can insert many rows and
// return them in one round trip.
type BatchCreator interface {
	CreateBatch(ctx context.Context, sessionID string, eventData []string, ingestedAt int64) ([]*models.SessionEvent, error)
}

// batchChunk bounds rows per multi-row INSERT
const batchChunk = 500
