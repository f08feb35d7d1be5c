package scan

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// outdatedAbove separates outdated fields (a confident correction exists)
// from disputed ones.
const outdatedAbove = 0.5

// BuildLedgerEntry summarizes a scan result into the per-target ledger row.
// A field that needs an update is outdated when its confidence is above 0.5
// and disputed otherwise.
func BuildLedgerEntry(result *model.ScanResult, now time.Time) model.LedgerEntry {
	e := model.LedgerEntry{
		TargetID:           result.TargetID,
		TargetType:         result.TargetType,
		LastVerifiedAt:     now,
		VerificationStatus: result.Status,
		VerificationScore:  result.OverallConfidence,
		SourcesCount:       len(result.SourcesChecked),
		LastSourcesChecked: make([]model.SourceCheck, 0, len(result.SourcesChecked)),
		OutdatedFields:     []model.Field{},
		DisputedFields:     []model.Field{},
	}
	for _, u := range result.SourcesChecked {
		e.LastSourcesChecked = append(e.LastSourcesChecked, model.SourceCheck{URL: u, CheckedAt: now})
	}
	for _, v := range result.Verifications {
		if !v.NeedsUpdate {
			continue
		}
		if v.Confidence > outdatedAbove {
			e.OutdatedFields = append(e.OutdatedFields, v.Field)
		} else {
			e.DisputedFields = append(e.DisputedFields, v.Field)
		}
	}
	return e
}

// RecordVerification upserts the ledger row and completes the scan log entry.
// now stamps both the ledger row and the log completion.
func RecordVerification(ctx context.Context, st store.Store, logID string, result *model.ScanResult, changes []model.FieldChange, now time.Time) error {
	if err := st.UpsertVerification(ctx, BuildLedgerEntry(result, now)); err != nil {
		return eris.Wrap(err, "scan: record verification")
	}
	if err := st.CompleteScanLog(ctx, logID, result.OverallConfidence, result.SourcesChecked, changes, now); err != nil {
		return eris.Wrap(err, "scan: complete log")
	}
	return nil
}
