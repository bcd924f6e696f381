package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"twinguard-lab/internal/infrastructure/database"
	"twinguard-lab/internal/streaming"
	"twinguard-lab/pkg/logger"
)

const eventSchema = `
CREATE TABLE IF NOT EXISTS twin_events (
	id         TEXT PRIMARY KEY,
	type       TEXT        NOT NULL,
	node_id    TEXT,
	region     TEXT,
	severity   DOUBLE PRECISION NOT NULL DEFAULT 0,
	payload    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_twin_events_created_at ON twin_events (created_at);
CREATE INDEX IF NOT EXISTS idx_twin_events_type ON twin_events (type);
`

// EventRepository stores the twin event log: every threat, cascade,
// prediction and mitigation event that crossed the bus.
type EventRepository struct {
	db     *database.PostgresDB
	logger *logger.Logger
}

// NewEventRepository creates the repository and ensures the schema
func NewEventRepository(ctx context.Context, db *database.PostgresDB, log *logger.Logger) (*EventRepository, error) {
	if err := db.Exec(ctx, eventSchema); err != nil {
		return nil, fmt.Errorf("creating event schema: %w", err)
	}
	return &EventRepository{
		db:     db,
		logger: log.WithComponent("event-repo"),
	}, nil
}

// SaveEvent persists one simulation event
func (r *EventRepository) SaveEvent(ctx context.Context, event *streaming.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	const q = `
		INSERT INTO twin_events (id, type, node_id, region, severity, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	if err := r.db.Exec(ctx, q,
		event.ID, string(event.Type), event.NodeID, event.Region,
		event.Severity, payload, event.Timestamp,
	); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// RecentEvents returns the most recent events, newest first
func (r *EventRepository) RecentEvents(ctx context.Context, limit int) ([]*streaming.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT payload FROM twin_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []*streaming.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		var event streaming.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			r.logger.Warn().Err(err).Msg("skipping undecodable event")
			continue
		}
		out = append(out, &event)
	}
	return out, rows.Err()
}

// EventByID returns one event, or nil when it does not exist
func (r *EventRepository) EventByID(ctx context.Context, id string) (*streaming.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT payload FROM twin_events WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var payload []byte
	if err := rows.Scan(&payload); err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	var event streaming.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &event, nil
}
