package scan

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// SelectUpdates picks the corrections worth writing: proposed by the
// analyzer, confident enough, actually different, non-empty and for a field
// the target type allows updating.
func SelectUpdates(result *model.ScanResult, threshold float64) map[model.Field]string {
	updates := make(map[model.Field]string)
	for _, v := range result.Verifications {
		if !v.NeedsUpdate || v.Confidence < threshold {
			continue
		}
		if v.FoundValue == "" || v.FoundValue == v.CurrentValue {
			continue
		}
		if !model.CanUpdate(result.TargetType, v.Field) {
			continue
		}
		updates[v.Field] = v.FoundValue
	}
	return updates
}

// ApplyUpdates writes the selected corrections in a single update and returns
// the applied changes in verification order. Nothing is written when no field
// qualifies.
func ApplyUpdates(ctx context.Context, st store.Store, result *model.ScanResult, threshold float64) ([]model.FieldChange, error) {
	updates := SelectUpdates(result, threshold)
	if len(updates) == 0 {
		return nil, nil
	}
	if err := st.UpdateTarget(ctx, result.TargetType, result.TargetID, updates); err != nil {
		return nil, eris.Wrap(err, "scan: apply updates")
	}

	changes := make([]model.FieldChange, 0, len(updates))
	seen := make(map[model.Field]bool, len(updates))
	for _, v := range result.Verifications {
		if val, ok := updates[v.Field]; ok && val == v.FoundValue && !seen[v.Field] {
			changes = append(changes, model.FieldChange{
				Field:      v.Field,
				OldValue:   v.CurrentValue,
				NewValue:   v.FoundValue,
				Confidence: v.Confidence,
			})
			seen[v.Field] = true
		}
	}
	return changes, nil
}
