// Package store persists verification targets, the per-target verification
// ledger and the scan log.
package store

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/model"
)

// ErrNotFound is returned when a target, ledger row or log entry does not
// exist.
var ErrNotFound = eris.New("store: not found")

// ScanLogFilter specifies criteria for listing scan log entries.
type ScanLogFilter struct {
	Status   model.ScanLogStatus `json:"status,omitempty"`
	TargetID string              `json:"target_id,omitempty"`
	// CreatedAfter, when set, drops entries created before it.
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

// Store defines the persistence interface for the scanner.
type Store interface {
	// Targets
	GetTarget(ctx context.Context, tt model.TargetType, id string) (*model.Target, error)
	SaveTarget(ctx context.Context, t model.Target) error
	UpdateTarget(ctx context.Context, tt model.TargetType, id string, updates map[model.Field]string) error

	// Verification ledger
	UpsertVerification(ctx context.Context, entry model.LedgerEntry) error
	GetVerification(ctx context.Context, tt model.TargetType, id string) (*model.LedgerEntry, error)

	// Scan log
	CreateScanLog(ctx context.Context, entry *model.ScanLogEntry) error
	CompleteScanLog(ctx context.Context, id string, score float64, sources []string, changes []model.FieldChange, completedAt time.Time) error
	GetScanLog(ctx context.Context, id string) (*model.ScanLogEntry, error)
	ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]model.ScanLogEntry, error)
	FailStaleScanLogs(ctx context.Context, olderThan time.Time, reason string) (int64, error)

	// InTx runs fn against a Store whose writes commit together. A nested
	// call reuses the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// tables names the rows a target type owns.
type tables struct {
	entity    string
	ledger    string
	ledgerKey string
}

var targetTables = map[model.TargetType]tables{
	model.TargetPolitician: {entity: "politicians", ledger: "politician_ai_verification", ledgerKey: "politician_id"},
	model.TargetParty:      {entity: "political_parties", ledger: "party_ai_verification", ledgerKey: "party_id"},
}

func tablesFor(tt model.TargetType) (tables, error) {
	t, ok := targetTables[tt]
	if !ok {
		return tables{}, eris.Errorf("store: unknown target type %q", tt)
	}
	return t, nil
}

// updateColumns validates an update set and returns its columns in a stable
// order with matching values.
func updateColumns(tt model.TargetType, updates map[model.Field]string) ([]string, []any, error) {
	fields := make([]model.Field, 0, len(updates))
	for f := range updates {
		if !model.CanUpdate(tt, f) {
			return nil, nil, eris.Errorf("store: field %q is not updatable on %s", f, tt)
		}
		fields = append(fields, f)
	}
	slices.Sort(fields)

	cols := make([]string, len(fields))
	vals := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = string(f)
		vals[i] = updates[f]
	}
	return cols, vals, nil
}

// ledgerJSON holds the JSON-encoded list columns of a ledger row.
type ledgerJSON struct {
	sources, outdated, disputed []byte
}

func encodeLedger(e model.LedgerEntry) (ledgerJSON, error) {
	var out ledgerJSON
	var err error
	if out.sources, err = json.Marshal(nonNil(e.LastSourcesChecked)); err != nil {
		return out, eris.Wrap(err, "store: marshal sources")
	}
	if out.outdated, err = json.Marshal(nonNil(e.OutdatedFields)); err != nil {
		return out, eris.Wrap(err, "store: marshal outdated fields")
	}
	if out.disputed, err = json.Marshal(nonNil(e.DisputedFields)); err != nil {
		return out, eris.Wrap(err, "store: marshal disputed fields")
	}
	return out, nil
}

func decodeLedger(e *model.LedgerEntry, j ledgerJSON) error {
	if err := unmarshalList(j.sources, &e.LastSourcesChecked); err != nil {
		return eris.Wrap(err, "store: unmarshal sources")
	}
	if err := unmarshalList(j.outdated, &e.OutdatedFields); err != nil {
		return eris.Wrap(err, "store: unmarshal outdated fields")
	}
	if err := unmarshalList(j.disputed, &e.DisputedFields); err != nil {
		return eris.Wrap(err, "store: unmarshal disputed fields")
	}
	return nil
}

// logJSON holds the JSON-encoded list columns of a scan log row.
type logJSON struct {
	sources, changes []byte
}

func encodeLog(sources []string, changes []model.FieldChange) (logJSON, error) {
	var out logJSON
	var err error
	if out.sources, err = json.Marshal(nonNil(sources)); err != nil {
		return out, eris.Wrap(err, "store: marshal sources verified")
	}
	if out.changes, err = json.Marshal(nonNil(changes)); err != nil {
		return out, eris.Wrap(err, "store: marshal changes")
	}
	return out, nil
}

func decodeLog(e *model.ScanLogEntry, j logJSON) error {
	if err := unmarshalList(j.sources, &e.SourcesVerified); err != nil {
		return eris.Wrap(err, "store: unmarshal sources verified")
	}
	if err := unmarshalList(j.changes, &e.ChangesMade); err != nil {
		return eris.Wrap(err, "store: unmarshal changes")
	}
	return nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func unmarshalList[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []T{}
	}
	return nil
}

const defaultLogLimit = 100
