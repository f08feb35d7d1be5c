package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/store"
)

var collectTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// logStore serves ListScanLogs from memory. Other Store methods panic.
type logStore struct {
	store.Store
	logs    []model.ScanLogEntry
	listErr error
	filters []store.ScanLogFilter
}

func (s *logStore) ListScanLogs(_ context.Context, filter store.ScanLogFilter) ([]model.ScanLogEntry, error) {
	s.filters = append(s.filters, filter)
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.ScanLogEntry
	for _, e := range s.logs {
		if !filter.CreatedAfter.IsZero() && e.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func newTestCollector(st store.Store, staleAfter time.Duration) *Collector {
	c := NewCollector(st, staleAfter)
	c.now = func() time.Time { return collectTime }
	return c
}

func logAt(status model.ScanLogStatus, age time.Duration, score float64) model.ScanLogEntry {
	return model.ScanLogEntry{
		ID:                string(status) + age.String(),
		Status:            status,
		AIConfidenceScore: score,
		CreatedAt:         collectTime.Add(-age),
	}
}

func TestCollector_EmptyStore(t *testing.T) {
	snap, err := newTestCollector(&logStore{}, 15*time.Minute).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.AvgConfidence)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, collectTime, snap.CollectedAt)
}

func TestCollector_ScanMetrics(t *testing.T) {
	done := logAt(model.ScanLogCompleted, time.Hour, 0.9)
	done.ChangesMade = []model.FieldChange{{Field: model.FieldRoleTitle}}
	st := &logStore{logs: []model.ScanLogEntry{
		done,
		logAt(model.ScanLogCompleted, 2*time.Hour, 0.5),
		logAt(model.ScanLogFailed, 3*time.Hour, 0),
		logAt(model.ScanLogPending, time.Minute, 0),
		logAt(model.ScanLogPending, time.Hour, 0),
		logAt(model.ScanLogFailed, 48*time.Hour, 0),
	}}

	snap, err := newTestCollector(st, 15*time.Minute).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.Total, "entries outside the window are skipped")
	assert.Equal(t, 2, snap.Completed)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 2, snap.Pending)
	assert.Equal(t, 1, snap.StalePending)
	assert.Equal(t, 3, snap.Finished())
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.InDelta(t, 0.7, snap.AvgConfidence, 1e-9)
	assert.Equal(t, 1, snap.ChangesMade)

	require.Len(t, st.filters, 1)
	assert.Equal(t, collectTime.Add(-24*time.Hour), st.filters[0].CreatedAfter)
	assert.Equal(t, collectLimit, st.filters[0].Limit)
}

func TestCollector_StaleDisabled(t *testing.T) {
	st := &logStore{logs: []model.ScanLogEntry{logAt(model.ScanLogPending, 2*time.Hour, 0)}}
	snap, err := newTestCollector(st, 0).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Pending)
	assert.Zero(t, snap.StalePending)
}

func TestCollector_ListError(t *testing.T) {
	st := &logStore{listErr: errors.New("connection refused")}
	_, err := newTestCollector(st, time.Minute).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list scan logs")
}
