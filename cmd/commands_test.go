package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/politica-cm/politica-scanner/internal/config"
	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/monitoring"
	"github.com/politica-cm/politica-scanner/internal/scan"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// useSQLite points the global config at a fresh SQLite file.
func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "politica.db")
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: path}}
	cfg.Scan.StaleAfterMins = 15
	return path
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}
	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestMigrateCmd_SQLite(t *testing.T) {
	useSQLite(t)
	migrateCmd.SetContext(context.Background())
	require.NoError(t, migrateCmd.RunE(migrateCmd, nil))
}

func TestMigrateCmd_InvalidConfig(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres"}}
	err := migrateCmd.RunE(migrateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

const importYAML = `
politicians:
  - id: pol-1
    name: Manaouda Malachie
    role_title: Minister of Public Health
    party: RDPC
parties:
  - id: party-1
    name: Social Democratic Front
    party_president: Joshua Osih
`

func TestReadImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(importYAML), 0644))

	targets, err := readImportFile(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, model.TargetPolitician, targets[0].Type)
	assert.Equal(t, "Minister of Public Health", targets[0].Politician.RoleTitle)
	assert.Equal(t, "Active", targets[0].Politician.Status)
	assert.Equal(t, model.TargetParty, targets[1].Type)
	assert.Equal(t, "Joshua Osih", targets[1].Party.PartyPresident)
}

func TestReadImportFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := readImportFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read import file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("politicians: {"), 0644))
	_, err = readImportFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse import file")

	noName := filepath.Join(dir, "noname.yaml")
	require.NoError(t, os.WriteFile(noName, []byte("parties:\n  - id: p1\n"), 0644))
	_, err = readImportFile(noName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parties[0]")
}

func TestLoadTargets_CSVRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parties.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,party_president\nparty-2,SDF,Joshua Osih\n"), 0644))

	targets, err := loadTargets(path, "political_party", "")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, model.TargetParty, targets[0].Type)
	assert.Equal(t, "Joshua Osih", targets[0].Party.PartyPresident)

	_, err = loadTargets(path, "senator", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target type")
}

func TestImportCmd_SQLite(t *testing.T) {
	dbPath := useSQLite(t)
	file := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(file, []byte(importYAML), 0644))

	importFilePath = file
	defer func() { importFilePath = "" }()
	importCmd.SetContext(context.Background())
	require.NoError(t, importCmd.RunE(importCmd, nil))

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	got, err := st.GetTarget(context.Background(), model.TargetParty, "party-1")
	require.NoError(t, err)
	assert.Equal(t, "Social Democratic Front", got.Name())
}

func TestLogsReapCmd_SQLite(t *testing.T) {
	dbPath := useSQLite(t)
	ctx := context.Background()

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.CreateScanLog(ctx, &model.ScanLogEntry{
		ID: "old", TargetType: model.TargetPolitician, TargetID: "pol-1",
		ActionType: model.ActionAutoScan, Status: model.ScanLogPending,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}))
	require.NoError(t, st.Close())

	require.NoError(t, logsReapCmd.Flags().Set("older-than", "10m"))
	defer logsReapCmd.Flags().Set("older-than", "0") //nolint:errcheck
	logsReapCmd.SetContext(ctx)
	require.NoError(t, logsReapCmd.RunE(logsReapCmd, nil))

	st, err = store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	got, err := st.GetScanLog(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, model.ScanLogFailed, got.Status)
	assert.Equal(t, staleReason, got.Error)
}

func TestFormatLogsList(t *testing.T) {
	var buf bytes.Buffer
	formatLogsList(&buf, []model.ScanLogEntry{{
		ID:                "0d6f9a4e-8c1b-4b7e-9a55-3c2f1e0b7d11",
		TargetType:        model.TargetPolitician,
		TargetID:          "pol-1",
		ActionType:        model.ActionManualScan,
		Status:            model.ScanLogCompleted,
		AIConfidenceScore: 0.8125,
		ChangesMade:       []model.FieldChange{{Field: model.FieldRoleTitle}},
		CreatedAt:         time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[2], "0d6f9a4e")
	assert.NotContains(t, lines[2], "0d6f9a4e-8c1b")
	assert.Contains(t, lines[2], "politician/pol-1")
	assert.Contains(t, lines[2], "0.81")
	assert.Contains(t, lines[2], "2026-03-01 09:30")
}

func TestWriteHealth(t *testing.T) {
	snap := &monitoring.ScanSnapshot{Total: 4, Completed: 3, Failed: 1, FailRate: 0.25, LookbackHours: 24}

	var buf bytes.Buffer
	require.NoError(t, writeHealth(&buf, snap, nil))
	assert.Contains(t, buf.String(), `"completed": 3`)
	assert.Contains(t, buf.String(), `"fail_rate": 0.25`)
	assert.Contains(t, buf.String(), `"alerts": []`)

	buf.Reset()
	require.NoError(t, writeHealth(&buf, snap, []monitoring.Alert{{Type: monitoring.AlertStalePending, Severity: "medium"}}))
	assert.Contains(t, buf.String(), `"type": "stale_pending_scans"`)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "12345678", truncateID("123456789"))
}

func TestWriteOutcome(t *testing.T) {
	out := &scan.Outcome{
		LogID: "log-1",
		Result: &model.ScanResult{
			TargetID:          "pol-1",
			TargetType:        model.TargetPolitician,
			Verifications:     []model.FieldVerification{{Field: model.FieldName, Confidence: 0.9}},
			OverallConfidence: 0.9,
			Status:            model.VerificationVerified,
		},
	}

	var js bytes.Buffer
	require.NoError(t, writeOutcome(&js, out, "json"))
	assert.Contains(t, js.String(), `"log_id": "log-1"`)
	assert.Contains(t, js.String(), `"overall_confidence": 0.9`)

	var ys bytes.Buffer
	require.NoError(t, writeOutcome(&ys, out, "yaml"))
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(ys.Bytes(), &decoded))
	assert.Equal(t, "log-1", decoded["log_id"])
	results := decoded["scan_results"].(map[string]any)
	assert.Equal(t, "verified", results["status"])
}
