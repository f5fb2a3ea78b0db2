package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"Mansoor88-6/session-replay/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores events in PostgreSQL through a pgx pool
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, sessionID, eventData string, ingestedAt int64) (*models.SessionEvent, error) {
	query := `
		INSERT INTO session_events (session_id, event_data, ingested_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	if err := r.pool.QueryRow(ctx, query, sessionID, eventData, ingestedAt).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create session event: %w", err)
	}

	return &models.SessionEvent{
		ID:        id,
		SessionID: sessionID,
		EventData: eventData,
		Timestamp: ingestedAt,
	}, nil
}

// CreateBatch inserts the whole batch with a single statement
func (r *PostgresRepository) CreateBatch(ctx context.Context, sessionID string, eventData []string, ingestedAt int64) ([]*models.SessionEvent, error) {
	if len(eventData) == 0 {
		return []*models.SessionEvent{}, nil
	}

	query := `
		INSERT INTO session_events (session_id, event_data, ingested_at)
		SELECT $1, data, $3 FROM unnest($2::text[]) WITH ORDINALITY AS t(data, ord)
		ORDER BY ord
		RETURNING id
	`

	rows, err := r.pool.Query(ctx, query, sessionID, eventData, ingestedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session events: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to create session events: %w", err)
	}
	if len(ids) != len(eventData) {
		return nil, fmt.Errorf("failed to create session events: inserted %d of %d", len(ids), len(eventData))
	}
	// serial ids are handed out in insertion order
	slices.Sort(ids)

	events := make([]*models.SessionEvent, len(eventData))
	for i, data := range eventData {
		events[i] = &models.SessionEvent{
			ID:        ids[i],
			SessionID: sessionID,
			EventData: data,
			Timestamp: ingestedAt,
		}
	}
	return events, nil
}

func (r *PostgresRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionEvent, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM session_events
		WHERE session_id = $1
		ORDER BY ingested_at ASC, id ASC
	`
	return r.list(ctx, query, sessionID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	query := `SELECT ` + selectColumns + ` FROM session_events WHERE id = $1`
	return r.one(ctx, "get", query, id)
}

func (r *PostgresRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM session_events WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	query := `DELETE FROM session_events WHERE id = $1 RETURNING ` + selectColumns
	return r.one(ctx, "delete", query, id)
}

func (r *PostgresRepository) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*models.SessionEvent, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM session_events
		WHERE ingested_at >= $1 AND ingested_at <= $2
		ORDER BY ingested_at ASC, id ASC
	`
	return r.list(ctx, query, startMs, endMs)
}

func (r *PostgresRepository) one(ctx context.Context, op, query string, args ...any) (*models.SessionEvent, error) {
	var event models.SessionEvent
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&event.ID,
		&event.SessionID,
		&event.EventData,
		&event.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s session event: %w", op, err)
	}
	return &event, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.SessionEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	events := []*models.SessionEvent{}
	for rows.Next() {
		var event models.SessionEvent
		if err := rows.Scan(&event.ID, &event.SessionID, &event.EventData, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session events: %w", err)
	}
	return events, nil
}
