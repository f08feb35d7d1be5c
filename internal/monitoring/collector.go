package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// collectLimit caps how many log entries one snapshot reads.
const collectLimit = 10000

// ScanSnapshot holds a point-in-time view of scan health.
type ScanSnapshot struct {
	// Scan log counts within the lookback window.
	Total        int `json:"total" yaml:"total"`
	Completed    int `json:"completed" yaml:"completed"`
	Failed       int `json:"failed" yaml:"failed"`
	Pending      int `json:"pending" yaml:"pending"`
	StalePending int `json:"stale_pending" yaml:"stale_pending"`

	FailRate      float64 `json:"fail_rate" yaml:"fail_rate"`
	AvgConfidence float64 `json:"avg_confidence" yaml:"avg_confidence"`
	ChangesMade   int     `json:"changes_made" yaml:"changes_made"`

	LookbackHours int       `json:"lookback_hours" yaml:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at" yaml:"collected_at"`
}

// Finished counts scans that reached a terminal status.
func (s *ScanSnapshot) Finished() int {
	return s.Completed + s.Failed
}

// Collector reads scan health from the audit log.
type Collector struct {
	store      store.Store
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. Pending entries older than staleAfter
// count as stale; zero disables the stale count.
func NewCollector(st store.Store, staleAfter time.Duration) *Collector {
	return &Collector{
		store:      st,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*ScanSnapshot, error) {
	now := c.now()
	snap := &ScanSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	entries, err := c.store.ListScanLogs(ctx, store.ScanLogFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list scan logs")
	}

	var totalScore float64
	for _, e := range entries {
		snap.Total++
		switch e.Status {
		case model.ScanLogCompleted:
			snap.Completed++
			totalScore += e.AIConfidenceScore
			snap.ChangesMade += len(e.ChangesMade)
		case model.ScanLogFailed:
			snap.Failed++
		case model.ScanLogPending:
			snap.Pending++
			if c.staleAfter > 0 && now.Sub(e.CreatedAt) > c.staleAfter {
				snap.StalePending++
			}
		}
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Completed > 0 {
		snap.AvgConfidence = totalScore / float64(snap.Completed)
	}

	return snap, nil
}
