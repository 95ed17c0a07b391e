package types

import "time"

// EstimateSnapshot is the journal record persisted after each successful
// estimate. Snapshots feed the analytics endpoints only; they are never read
// back into a computation.
type EstimateSnapshot struct {
	SnapshotID     int64     `json:"snapshot_id"`
	Kind           string    `json:"kind"` // "position" or "pool"
	PoolAddress    string    `json:"pool_address,omitempty"`
	ChainID        int       `json:"chain,omitempty"`
	ILPercentage   float64   `json:"il_percentage"`
	FeeAPR         float64   `json:"fee_apr"`
	NetAPR         float64   `json:"net_apr"`
	Recommendation string    `json:"recommendation"`
	Notes          []string  `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageStats is the aggregate view served by the stats endpoint.
type UsageStats struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalSnapshots int64   `json:"total_snapshots"`
	AvgILPercent   float64 `json:"avg_il_percent"`
	AvgNetAPR      float64 `json:"avg_net_apr"`
}
