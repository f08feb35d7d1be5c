package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politica-cm/politica-scanner/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedPolitician(t *testing.T, s Store) model.Target {
	t.Helper()
	target := model.PoliticianTarget(model.Politician{
		ID:        "pol-1",
		Name:      "Manaouda Malachie",
		RoleTitle: "Minister of Health",
		Region:    "Centre",
		Party:     "RDPC",
		BirthDate: "1972-05-14",
	})
	require.NoError(t, s.SaveTarget(context.Background(), target))
	return target
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_Targets(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPolitician(t, st)

	got, err := st.GetTarget(ctx, model.TargetPolitician, "pol-1")
	require.NoError(t, err)
	require.NotNil(t, got.Politician)
	assert.Equal(t, "Manaouda Malachie", got.Politician.Name)
	assert.Equal(t, "Centre", got.Politician.Region)
	assert.Equal(t, "Active", got.Politician.Status, "status defaults to Active")
	assert.Empty(t, got.Politician.Bio)

	require.NoError(t, st.UpdateTarget(ctx, model.TargetPolitician, "pol-1", map[model.Field]string{
		model.FieldRoleTitle: "Former Minister of Health",
		model.FieldStatus:    "Retired",
	}))
	got, err = st.GetTarget(ctx, model.TargetPolitician, "pol-1")
	require.NoError(t, err)
	assert.Equal(t, "Former Minister of Health", got.Politician.RoleTitle)
	assert.Equal(t, "Retired", got.Politician.Status)
	assert.Equal(t, "RDPC", got.Politician.Party, "untouched columns keep their value")

	_, err = st.GetTarget(ctx, model.TargetPolitician, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = st.GetTarget(ctx, model.TargetParty, "pol-1")
	assert.True(t, errors.Is(err, ErrNotFound), "ids are looked up in the table of the requested type")
}

func TestSQLite_Party(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	party := model.PartyTarget(model.PoliticalParty{ID: "party-1", Name: "RDPC", PartyPresident: "Paul Biya", FoundingDate: "1985-03-24"})
	require.NoError(t, st.SaveTarget(ctx, party))

	got, err := st.GetTarget(ctx, model.TargetParty, "party-1")
	require.NoError(t, err)
	require.NotNil(t, got.Party)
	assert.Equal(t, "Paul Biya", got.Party.PartyPresident)
	assert.Equal(t, "1985-03-24", got.Party.FoundingDate)
	assert.Empty(t, got.Party.HeadquartersAddress)
}

func TestSQLite_UpdateTarget_Errors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPolitician(t, st)

	err := st.UpdateTarget(ctx, model.TargetPolitician, "missing", map[model.Field]string{model.FieldName: "X"})
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.UpdateTarget(ctx, model.TargetPolitician, "pol-1", map[model.Field]string{model.FieldPartyPresident: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not updatable")

	assert.NoError(t, st.UpdateTarget(ctx, model.TargetPolitician, "pol-1", nil), "empty update is a no-op")
}

func TestSQLite_Verification_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPolitician(t, st)

	first := model.LedgerEntry{
		TargetID:           "pol-1",
		TargetType:         model.TargetPolitician,
		LastVerifiedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		VerificationStatus: model.VerificationDisputed,
		VerificationScore:  0.42,
		SourcesCount:       2,
		LastSourcesChecked: []model.SourceCheck{{URL: "https://prc.cm/?s=x", CheckedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}},
		DisputedFields:     []model.Field{model.FieldParty},
	}
	require.NoError(t, st.UpsertVerification(ctx, first))

	second := first
	second.VerificationStatus = model.VerificationVerified
	second.VerificationScore = 0.9
	second.DisputedFields = nil
	second.OutdatedFields = []model.Field{model.FieldRoleTitle}
	require.NoError(t, st.UpsertVerification(ctx, second))

	got, err := st.GetVerification(ctx, model.TargetPolitician, "pol-1")
	require.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, got.VerificationStatus)
	assert.InDelta(t, 0.9, got.VerificationScore, 1e-9)
	assert.Equal(t, 2, got.SourcesCount)
	assert.Equal(t, []model.Field{model.FieldRoleTitle}, got.OutdatedFields)
	assert.Empty(t, got.DisputedFields)
	require.Len(t, got.LastSourcesChecked, 1)
	assert.Equal(t, "https://prc.cm/?s=x", got.LastSourcesChecked[0].URL)
	assert.True(t, first.LastVerifiedAt.Equal(got.LastVerifiedAt))

	_, err = st.GetVerification(ctx, model.TargetParty, "pol-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ScanLog_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := &model.ScanLogEntry{
		ID:         "log-1",
		TargetType: model.TargetPolitician,
		TargetID:   "pol-1",
		ActionType: model.ActionManualScan,
		Status:     model.ScanLogPending,
	}
	require.NoError(t, st.CreateScanLog(ctx, entry))
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := st.GetScanLog(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, model.ScanLogPending, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.ChangesMade)

	changes := []model.FieldChange{{Field: model.FieldRoleTitle, OldValue: "Minister", NewValue: "Former Minister", Confidence: 0.85}}
	completedAt := time.Date(2026, 3, 1, 9, 0, 5, 0, time.UTC)
	require.NoError(t, st.CompleteScanLog(ctx, "log-1", 0.77, []string{"https://prc.cm/?s=x"}, changes, completedAt))

	got, err = st.GetScanLog(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, model.ScanLogCompleted, got.Status)
	assert.InDelta(t, 0.77, got.AIConfidenceScore, 1e-9)
	assert.Equal(t, []string{"https://prc.cm/?s=x"}, got.SourcesVerified)
	assert.Equal(t, changes, got.ChangesMade)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completedAt.Equal(*got.CompletedAt), "completion uses the caller's clock")

	err = st.CompleteScanLog(ctx, "missing", 0, nil, nil, time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_FailStaleScanLogs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, e := range []*model.ScanLogEntry{
		{ID: "old-pending", Status: model.ScanLogPending, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "new-pending", Status: model.ScanLogPending, CreatedAt: now},
		{ID: "old-completed", Status: model.ScanLogCompleted, CreatedAt: now.Add(-2 * time.Hour)},
	} {
		e.TargetType = model.TargetPolitician
		e.TargetID = "pol-1"
		e.ActionType = model.ActionAutoScan
		require.NoError(t, st.CreateScanLog(ctx, e))
	}

	n, err := st.FailStaleScanLogs(ctx, now.Add(-15*time.Minute), "timed out")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := st.GetScanLog(ctx, "old-pending")
	require.NoError(t, err)
	assert.Equal(t, model.ScanLogFailed, got.Status)
	assert.Equal(t, "timed out", got.Error)

	pending, err := st.ListScanLogs(ctx, ScanLogFilter{Status: model.ScanLogPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "new-pending", pending[0].ID)

	all, err := st.ListScanLogs(ctx, ScanLogFilter{TargetID: "pol-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_InTx_RollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPolitician(t, st)

	boom := errors.New("ledger write failed")
	err := st.InTx(ctx, func(tx Store) error {
		if err := tx.UpdateTarget(ctx, model.TargetPolitician, "pol-1", map[model.Field]string{model.FieldName: "Changed"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := st.GetTarget(ctx, model.TargetPolitician, "pol-1")
	require.NoError(t, err)
	assert.Equal(t, "Manaouda Malachie", got.Politician.Name)
}

func TestSQLite_InTx_Commits(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedPolitician(t, st)

	err := st.InTx(ctx, func(tx Store) error {
		return tx.InTx(ctx, func(inner Store) error {
			return inner.UpdateTarget(ctx, model.TargetPolitician, "pol-1", map[model.Field]string{model.FieldName: "Changed"})
		})
	})
	require.NoError(t, err)

	got, err := st.GetTarget(ctx, model.TargetPolitician, "pol-1")
	require.NoError(t, err)
	assert.Equal(t, "Changed", got.Politician.Name)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT ?1, ?2, ?10", rebind("SELECT $1, $2, $10"))
}

func TestUpdateTargetSQL(t *testing.T) {
	got := updateTargetSQL("politicians", []string{"name", "role_title"})
	assert.Equal(t, `UPDATE politicians SET "name" = $1, "role_title" = $2, updated_at = $3 WHERE id = $4`, got)
}
