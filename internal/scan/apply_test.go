package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/politica-cm/politica-scanner/internal/model"
)

func TestSelectUpdates(t *testing.T) {
	result := &model.ScanResult{
		TargetID:   "pol-1",
		TargetType: model.TargetPolitician,
		Verifications: []model.FieldVerification{
			{Field: model.FieldRoleTitle, CurrentValue: "Minister", FoundValue: "Former Minister", Confidence: 0.85, NeedsUpdate: true},
			{Field: model.FieldName, CurrentValue: "Paul Biya", FoundValue: "Paul Biya", Confidence: 0.9, NeedsUpdate: true},
			{Field: model.FieldStatus, CurrentValue: "Active", FoundValue: "Retired", Confidence: 0.4, NeedsUpdate: true},
			{Field: model.FieldBio, CurrentValue: "x", FoundValue: "", Confidence: 0.9, NeedsUpdate: true},
			{Field: model.FieldParty, CurrentValue: "RDPC", FoundValue: "SDF", Confidence: 0.9},
			{Field: model.FieldPartyPresident, CurrentValue: "a", FoundValue: "b", Confidence: 0.9, NeedsUpdate: true},
			{Field: model.FieldEducation, CurrentValue: "a", FoundValue: "b", Confidence: 0.5, NeedsUpdate: true},
		},
	}
	got := SelectUpdates(result, 0.5)
	assert.Equal(t, map[model.Field]string{
		model.FieldRoleTitle: "Former Minister",
		model.FieldEducation: "b",
	}, got)
}

func TestApplyUpdates_NothingToWrite(t *testing.T) {
	st := &mockStore{}
	result := &model.ScanResult{TargetType: model.TargetPolitician, Verifications: []model.FieldVerification{
		{Field: model.FieldName, CurrentValue: "A", FoundValue: "A", Confidence: 1, NeedsUpdate: true},
	}}
	changes, err := ApplyUpdates(context.Background(), st, result, 0.5)
	require.NoError(t, err)
	assert.Nil(t, changes)
	st.AssertNotCalled(t, "UpdateTarget", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyUpdates_SingleWrite(t *testing.T) {
	ctx := context.Background()
	st := &mockStore{}
	st.On("UpdateTarget", ctx, model.TargetParty, "party-1", map[model.Field]string{
		model.FieldName:           "Social Democratic Front",
		model.FieldPartyPresident: "Joshua Osih",
	}).Return(nil).Once()

	result := &model.ScanResult{TargetID: "party-1", TargetType: model.TargetParty, Verifications: []model.FieldVerification{
		{Field: model.FieldName, CurrentValue: "Social Democratic Frnt", FoundValue: "Social Democratic Front", Confidence: 0.7, NeedsUpdate: true},
		{Field: model.FieldPartyPresident, CurrentValue: "John Fru Ndi", FoundValue: "Joshua Osih", Confidence: 0.6, NeedsUpdate: true},
	}}
	changes, err := ApplyUpdates(ctx, st, result, 0.5)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, model.FieldName, changes[0].Field)
	assert.Equal(t, "Social Democratic Frnt", changes[0].OldValue)
	assert.Equal(t, model.FieldPartyPresident, changes[1].Field)
	st.AssertExpectations(t)
}

func TestApplyUpdates_WriteError(t *testing.T) {
	ctx := context.Background()
	st := &mockStore{}
	st.On("UpdateTarget", ctx, model.TargetPolitician, "pol-1", mock.Anything).Return(errors.New("deadlock"))

	result := &model.ScanResult{TargetID: "pol-1", TargetType: model.TargetPolitician, Verifications: []model.FieldVerification{
		{Field: model.FieldRoleTitle, CurrentValue: "a", FoundValue: "b", Confidence: 0.9, NeedsUpdate: true},
	}}
	_, err := ApplyUpdates(ctx, st, result, 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan: apply updates")
}

func TestBuildLedgerEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	result := &model.ScanResult{
		TargetID:          "pol-1",
		TargetType:        model.TargetPolitician,
		OverallConfidence: 0.6,
		Status:            model.VerificationDisputed,
		SourcesChecked:    []string{"https://prc.cm", "https://senat.cm"},
		Verifications: []model.FieldVerification{
			{Field: model.FieldRoleTitle, Confidence: 0.85, NeedsUpdate: true},
			{Field: model.FieldStatus, Confidence: 0.5, NeedsUpdate: true},
			{Field: model.FieldParty, Confidence: 0.3, NeedsUpdate: true},
			{Field: model.FieldName, Confidence: 0.1},
		},
	}
	e := BuildLedgerEntry(result, now)
	assert.Equal(t, []model.Field{model.FieldRoleTitle}, e.OutdatedFields)
	assert.Equal(t, []model.Field{model.FieldStatus, model.FieldParty}, e.DisputedFields)
	assert.Equal(t, 2, e.SourcesCount)
	assert.Equal(t, []model.SourceCheck{
		{URL: "https://prc.cm", CheckedAt: now},
		{URL: "https://senat.cm", CheckedAt: now},
	}, e.LastSourcesChecked)
	assert.Equal(t, model.VerificationDisputed, e.VerificationStatus)
	assert.InDelta(t, 0.6, e.VerificationScore, 1e-9)
}

func TestBuildLedgerEntry_EmptyListsAreNotNil(t *testing.T) {
	e := BuildLedgerEntry(&model.ScanResult{TargetID: "x", TargetType: model.TargetParty}, time.Now())
	assert.NotNil(t, e.OutdatedFields)
	assert.NotNil(t, e.DisputedFields)
	assert.NotNil(t, e.LastSourcesChecked)
}
