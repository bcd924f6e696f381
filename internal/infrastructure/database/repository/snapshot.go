// Package repository persists per-tick system snapshots so scenario runs
// can be replayed and compared after the fact.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/infrastructure/database"
	"twinguard-lab/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS system_snapshots (
	id           BIGSERIAL PRIMARY KEY,
	tick         BIGINT      NOT NULL,
	total_nodes  INT         NOT NULL,
	avg_health   DOUBLE PRECISION NOT NULL,
	avg_risk     DOUBLE PRECISION NOT NULL,
	max_risk     DOUBLE PRECISION NOT NULL,
	max_risk_node TEXT,
	active_threats INT       NOT NULL,
	state        JSONB       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_system_snapshots_tick ON system_snapshots (tick);
CREATE INDEX IF NOT EXISTS idx_system_snapshots_created_at ON system_snapshots (created_at);
`

// SnapshotRepository stores and reads system state snapshots
type SnapshotRepository struct {
	db     *database.PostgresDB
	logger *logger.Logger
}

// NewSnapshotRepository creates the repository and ensures the schema
func NewSnapshotRepository(ctx context.Context, db *database.PostgresDB, log *logger.Logger) (*SnapshotRepository, error) {
	if err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}
	return &SnapshotRepository{
		db:     db,
		logger: log.WithComponent("snapshot-repo"),
	}, nil
}

// SaveSnapshot persists one per-tick aggregate state
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, state *models.SystemState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	const q = `
		INSERT INTO system_snapshots
			(tick, total_nodes, avg_health, avg_risk, max_risk, max_risk_node, active_threats, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if err := r.db.Exec(ctx, q,
		int64(state.Tick), state.TotalNodes, state.AverageHealth, state.AverageRisk,
		state.MaxRisk, state.MaxRiskNodeID, state.ActiveThreats, payload, state.Timestamp,
	); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots, newest first
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, limit int) ([]*models.SystemState, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT state FROM system_snapshots ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.SystemState
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		var state models.SystemState
		if err := json.Unmarshal(payload, &state); err != nil {
			r.logger.Warn().Err(err).Msg("skipping undecodable snapshot")
			continue
		}
		out = append(out, &state)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest snapshot, or nil when none exist
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context) (*models.SystemState, error) {
	snaps, err := r.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0], nil
}

// Prune deletes snapshots older than the retention window and returns the
// number removed.
func (r *SnapshotRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM system_snapshots WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
