// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/deganai/lp-estimator/internal/types"
)

// SaveEstimateSnapshot journals one successful estimate. No-op returning 0
// when the journal is disabled so the request path never depends on the DB.
func SaveEstimateSnapshot(snapshot types.EstimateSnapshot) (int64, error) {
	if DB == nil {
		return 0, nil
	}

	notesJSON, err := json.Marshal(snapshot.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal notes: %w", err)
	}

	query := `
		INSERT INTO estimate_snapshots (
			kind, pool_address, chain_id,
			il_percent, fee_apr, net_apr,
			recommendation, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Kind, snapshot.PoolAddress, snapshot.ChainID,
		snapshot.ILPercentage, snapshot.FeeAPR, snapshot.NetAPR,
		snapshot.Recommendation, notesJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save estimate snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("kind", snapshot.Kind).
		Float64("il_percent", snapshot.ILPercentage).
		Msg("Estimate snapshot saved to database")

	return snapshotID, nil
}

// GetRecentEstimates returns the newest snapshots, capped at limit.
func GetRecentEstimates(limit int) ([]types.EstimateSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, kind, COALESCE(pool_address, ''), COALESCE(chain_id, 0),
		       il_percent, fee_apr, net_apr, recommendation, COALESCE(notes, 'null'), created_at
		FROM estimate_snapshots
		ORDER BY created_at DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimate snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.EstimateSnapshot
	for rows.Next() {
		var snapshot types.EstimateSnapshot
		var notesJSON []byte
		if err := rows.Scan(
			&snapshot.SnapshotID, &snapshot.Kind, &snapshot.PoolAddress, &snapshot.ChainID,
			&snapshot.ILPercentage, &snapshot.FeeAPR, &snapshot.NetAPR,
			&snapshot.Recommendation, &notesJSON, &snapshot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan estimate snapshot: %w", err)
		}
		if err := json.Unmarshal(notesJSON, &snapshot.Notes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot notes: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate estimate snapshots: %w", err)
	}

	return snapshots, nil
}

// IncrementRequestCounter bumps the persistent request counter and returns the
// new total. No-op returning 0 when the journal is disabled.
func IncrementRequestCounter() (int64, error) {
	if DB == nil {
		return 0, nil
	}

	query := `
		UPDATE request_counter
		SET total_requests = total_requests + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING total_requests;
	`

	var total int64
	if err := DB.QueryRow(query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to increment request counter: %w", err)
	}
	return total, nil
}

// GetStats aggregates the journal into the stats payload.
func GetStats() (types.UsageStats, error) {
	if DB == nil {
		return types.UsageStats{}, fmt.Errorf("database not initialized")
	}

	var stats types.UsageStats

	counterQuery := `SELECT total_requests FROM request_counter WHERE id = 1;`
	if err := DB.QueryRow(counterQuery).Scan(&stats.TotalRequests); err != nil {
		return types.UsageStats{}, fmt.Errorf("failed to read request counter: %w", err)
	}

	aggQuery := `
		SELECT COUNT(*), COALESCE(AVG(il_percent), 0), COALESCE(AVG(net_apr), 0)
		FROM estimate_snapshots;
	`
	if err := DB.QueryRow(aggQuery).Scan(&stats.TotalSnapshots, &stats.AvgILPercent, &stats.AvgNetAPR); err != nil {
		return types.UsageStats{}, fmt.Errorf("failed to aggregate estimate snapshots: %w", err)
	}

	return stats, nil
}
