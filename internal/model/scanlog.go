package model

import "time"

// ScanLogStatus tracks a scan log entry through pending -> completed|failed.
type ScanLogStatus string

const (
	ScanLogPending   ScanLogStatus = "pending"
	ScanLogCompleted ScanLogStatus = "completed"
	ScanLogFailed    ScanLogStatus = "failed"
)

// Action types written to the scan log.
const (
	ActionAutoScan   = "auto_scan"
	ActionManualScan = "manual_scan"
)

// FieldChange is one applied field update.
type FieldChange struct {
	Field      Field   `json:"field" yaml:"field"`
	OldValue   string  `json:"old_value" yaml:"old_value"`
	NewValue   string  `json:"new_value" yaml:"new_value"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ScanLogEntry is the append-only record of one scan invocation.
type ScanLogEntry struct {
	ID                string        `json:"id"`
	TargetType        TargetType    `json:"target_type"`
	TargetID          string        `json:"target_id"`
	ActionType        string        `json:"action_type"`
	Status            ScanLogStatus `json:"status"`
	AIConfidenceScore float64       `json:"ai_confidence_score"`
	SourcesVerified   []string      `json:"sources_verified"`
	ChangesMade       []FieldChange `json:"changes_made"`
	Error             string        `json:"error,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}
