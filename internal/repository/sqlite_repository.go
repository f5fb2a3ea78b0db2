package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"Mansoor88-6/session-replay/internal/models"
)

const selectColumns = `id, session_id, event_data, ingested_at`

// SQLiteRepository stores events in SQLite
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, sessionID, eventData string, ingestedAt int64) (*models.SessionEvent, error) {
	query := `
		INSERT INTO session_events (session_id, event_data, ingested_at)
		VALUES (?, ?, ?)
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, sessionID, eventData, ingestedAt).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create session event: %w", err)
	}

	return &models.SessionEvent{
		ID:        id,
		SessionID: sessionID,
		EventData: eventData,
		Timestamp: ingestedAt,
	}, nil
}

// CreateBatch inserts all events in one transaction using multi-row
// INSERT ... RETURNING. Results follow the input order.
func (r *SQLiteRepository) CreateBatch(ctx context.Context, sessionID string, eventData []string, ingestedAt int64) ([]*models.SessionEvent, error) {
	if len(eventData) == 0 {
		return []*models.SessionEvent{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	events := make([]*models.SessionEvent, 0, len(eventData))
	for start := 0; start < len(eventData); start += batchChunk {
		end := min(start+batchChunk, len(eventData))
		chunk := eventData[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*3)
		for i, data := range chunk {
			placeholders[i] = "(?, ?, ?)"
			args = append(args, sessionID, data, ingestedAt)
		}
		query := `INSERT INTO session_events (session_id, event_data, ingested_at) VALUES ` +
			strings.Join(placeholders, ", ") + ` RETURNING id`

		ids, err := queryIDs(ctx, tx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create session events: %w", err)
		}
		if len(ids) != len(chunk) {
			return nil, fmt.Errorf("failed to create session events: inserted %d of %d", len(ids), len(chunk))
		}
		// autoincrement ids grow in insertion order
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for i, data := range chunk {
			events = append(events, &models.SessionEvent{
				ID:        ids[i],
				SessionID: sessionID,
				EventData: data,
				Timestamp: ingestedAt,
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return events, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionEvent, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM session_events
		WHERE session_id = ?
		ORDER BY ingested_at ASC, id ASC
	`
	return r.list(ctx, query, sessionID)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM session_events
		WHERE id = ?
	`

	var event models.SessionEvent
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.SessionID,
		&event.EventData,
		&event.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session event: %w", err)
	}

	return &event, nil
}

func (r *SQLiteRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) (*models.SessionEvent, error) {
	query := `DELETE FROM session_events WHERE id = ? RETURNING ` + selectColumns

	var event models.SessionEvent
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.SessionID,
		&event.EventData,
		&event.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete session event: %w", err)
	}

	return &event, nil
}

func (r *SQLiteRepository) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*models.SessionEvent, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM session_events
		WHERE ingested_at >= ? AND ingested_at <= ?
		ORDER BY ingested_at ASC, id ASC
	`
	return r.list(ctx, query, startMs, endMs)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	events := []*models.SessionEvent{}
	for rows.Next() {
		var event models.SessionEvent
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.EventData,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session events: %w", err)
	}

	return events, nil
}
