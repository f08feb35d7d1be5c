package model

import "time"

// VerificationStatus is the aggregate verdict of a scan.
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationDisputed   VerificationStatus = "disputed"
	VerificationUnverified VerificationStatus = "unverified"
)

// FieldVerification is one analyzer's verdict on one field. It is produced
// fresh each scan and only persisted in aggregate.
type FieldVerification struct {
	Field        Field   `json:"field" yaml:"field"`
	CurrentValue string  `json:"current_value" yaml:"current_value"`
	FoundValue   string  `json:"found_value" yaml:"found_value"`
	SourceURL    string  `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Confidence   float64 `json:"confidence" yaml:"confidence"`
	NeedsUpdate  bool    `json:"needs_update" yaml:"needs_update"`
}

// AnalyzerFailure records an analyzer that errored and was left out of
// aggregation.
type AnalyzerFailure struct {
	Field Field  `json:"field" yaml:"field"`
	Error string `json:"error" yaml:"error"`
}

// ScanResult is the outcome of running every applicable analyzer against a
// target.
type ScanResult struct {
	TargetID          string              `json:"target_id" yaml:"target_id"`
	TargetType        TargetType          `json:"target_type" yaml:"target_type"`
	Verifications     []FieldVerification `json:"verifications" yaml:"verifications"`
	OverallConfidence float64             `json:"overall_confidence" yaml:"overall_confidence"`
	SourcesChecked    []string            `json:"sources_checked" yaml:"sources_checked"`
	Status            VerificationStatus  `json:"status" yaml:"status"`
	FailedAnalyzers   []AnalyzerFailure   `json:"failed_analyzers,omitempty" yaml:"failed_analyzers,omitempty"`
}

// SourceCheck is a timestamped source URL stored on the ledger row.
type SourceCheck struct {
	URL       string    `json:"url"`
	CheckedAt time.Time `json:"checked_at"`
}

// LedgerEntry is the per-target verification status row. There is at most
// one per target; writes upsert on TargetID.
type LedgerEntry struct {
	TargetID           string             `json:"target_id"`
	TargetType         TargetType         `json:"target_type"`
	LastVerifiedAt     time.Time          `json:"last_verified_at"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerificationScore  float64            `json:"verification_score"`
	SourcesCount       int                `json:"sources_count"`
	LastSourcesChecked []SourceCheck      `json:"last_sources_checked"`
	OutdatedFields     []Field            `json:"outdated_fields"`
	DisputedFields     []Field            `json:"disputed_fields"`
}
