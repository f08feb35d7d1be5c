// Package scan orchestrates one verification scan of a politician or party:
// it opens a scan log entry, runs every applicable field analyzer, aggregates
// their verdicts and commits updates and the verification ledger.
package scan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/politica-cm/politica-scanner/internal/analyzer"
	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// ErrTargetNotFound is returned when the requested target does not exist.
var ErrTargetNotFound = eris.New("scan: target not found")

// Thresholds control update and status decisions.
type Thresholds struct {
	// AutoApply is the minimum confidence for a proposed correction to be
	// written back to the record.
	AutoApply float64
	// Dispute marks a scan disputed when any proposed correction scores below it.
	Dispute float64
	// Verified is the overall confidence at or above which a scan is verified.
	Verified float64
}

// DefaultThresholds returns the standard decision thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoApply: 0.5, Dispute: 0.5, Verified: 0.8}
}

// Request identifies the target of a scan.
type Request struct {
	TargetType model.TargetType `json:"target_type"`
	TargetID   string           `json:"target_id"`
	Manual     bool             `json:"manual_scan,omitempty"`
}

// Outcome is what a scan returns. LogID is set as soon as the log entry is
// created, so it is available even when Scan fails afterwards.
type Outcome struct {
	LogID   string              `json:"log_id" yaml:"log_id"`
	Result  *model.ScanResult   `json:"scan_results,omitempty" yaml:"scan_results,omitempty"`
	Changes []model.FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// AnalyzerSet returns every analyzer defined for a target type.
type AnalyzerSet func(tt model.TargetType) []analyzer.Analyzer

// Scanner runs scans against a store.
type Scanner struct {
	store         store.Store
	analyzers     AnalyzerSet
	sources       []string
	thresholds    Thresholds
	transactional bool
	concurrency   int
	now           func() time.Time
	newID         func() string
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithThresholds overrides the decision thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Scanner) { s.thresholds = t }
}

// WithTransactionalCommit controls whether the record update, ledger upsert
// and log completion commit together. It is on by default.
func WithTransactionalCommit(on bool) Option {
	return func(s *Scanner) { s.transactional = on }
}

// WithSources sets the source URLs reported as checked by every scan.
func WithSources(urls []string) Option {
	return func(s *Scanner) { s.sources = urls }
}

// WithConcurrency caps how many analyzers run at once. Zero means no cap.
func WithConcurrency(n int) Option {
	return func(s *Scanner) { s.concurrency = n }
}

// New creates a Scanner.
func New(st store.Store, analyzers AnalyzerSet, opts ...Option) *Scanner {
	s := &Scanner{
		store:         st,
		analyzers:     analyzers,
		thresholds:    DefaultThresholds(),
		transactional: true,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan runs a full scan: log, load, analyze, commit. On any failure after the
// log entry is created the entry stays pending and the returned Outcome
// carries its id.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	action := model.ActionAutoScan
	if req.Manual {
		action = model.ActionManualScan
	}
	entry := &model.ScanLogEntry{
		ID:         s.newID(),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActionType: action,
		Status:     model.ScanLogPending,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateScanLog(ctx, entry); err != nil {
		return nil, eris.Wrap(err, "scan: create log entry")
	}
	out := &Outcome{LogID: entry.ID}
	log := zap.L().With(
		zap.String("log_id", entry.ID),
		zap.String("target_type", string(req.TargetType)),
		zap.String("target_id", req.TargetID),
	)

	target, err := s.store.GetTarget(ctx, req.TargetType, req.TargetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return out, eris.Wrapf(ErrTargetNotFound, "%s %s", req.TargetType, req.TargetID)
		}
		return out, eris.Wrap(err, "scan: load target")
	}

	result := s.Analyze(ctx, *target)

	changes, err := s.commit(ctx, entry.ID, result)
	if err != nil {
		log.Error("scan: commit failed", zap.Error(err))
		return out, err
	}
	out.Result = result
	out.Changes = changes

	log.Info("scan: completed",
		zap.String("status", string(result.Status)),
		zap.Float64("confidence", result.OverallConfidence),
		zap.Int("verifications", len(result.Verifications)),
		zap.Int("failed_analyzers", len(result.FailedAnalyzers)),
		zap.Int("changes", len(changes)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}

// analyzerOutcome is one analyzer's verification or its error.
type analyzerOutcome struct {
	field        model.Field
	verification model.FieldVerification
	err          error
}

// Analyze runs every applicable analyzer concurrently and aggregates the
// results. Analyzer errors and panics are recorded as failures and never
// abort the others. It writes nothing.
func (s *Scanner) Analyze(ctx context.Context, target model.Target) *model.ScanResult {
	applicable := analyzer.Applicable(s.analyzers(target.Type), target)
	outcomes := make([]analyzerOutcome, len(applicable))

	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, a := range applicable {
		g.Go(func() error {
			outcomes[i] = runAnalyzer(ctx, a, target)
			return nil
		})
	}
	_ = g.Wait()

	result := &model.ScanResult{
		TargetID:       target.ID(),
		TargetType:     target.Type,
		Verifications:  []model.FieldVerification{},
		SourcesChecked: append([]string{}, s.sources...),
	}
	for _, o := range outcomes {
		if o.err != nil {
			zap.L().Warn("scan: analyzer failed",
				zap.String("target_id", target.ID()),
				zap.String("field", string(o.field)),
				zap.Error(o.err),
			)
			result.FailedAnalyzers = append(result.FailedAnalyzers, model.AnalyzerFailure{Field: o.field, Error: o.err.Error()})
			continue
		}
		result.Verifications = append(result.Verifications, o.verification)
	}
	result.OverallConfidence = OverallConfidence(result.Verifications)
	result.Status = DeriveStatus(result.Verifications, result.OverallConfidence, s.thresholds)
	return result
}

func runAnalyzer(ctx context.Context, a analyzer.Analyzer, target model.Target) (out analyzerOutcome) {
	out.field = a.Field()
	defer func() {
		if r := recover(); r != nil {
			out.err = eris.Errorf("scan: analyzer %s panicked: %v", a.Field(), r)
		}
	}()
	out.verification, out.err = a.Analyze(ctx, target)
	return out
}

// OverallConfidence is the mean confidence of the verifications, or 0 when
// there are none.
func OverallConfidence(vs []model.FieldVerification) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v.Confidence
	}
	return sum / float64(len(vs))
}

// DeriveStatus is disputed when any proposed correction scores below the
// dispute threshold, verified when overall confidence reaches the verified
// threshold, and unverified otherwise.
func DeriveStatus(vs []model.FieldVerification, overall float64, t Thresholds) model.VerificationStatus {
	for _, v := range vs {
		if v.NeedsUpdate && v.Confidence < t.Dispute {
			return model.VerificationDisputed
		}
	}
	if overall >= t.Verified {
		return model.VerificationVerified
	}
	return model.VerificationUnverified
}

// commit applies updates and records the ledger, inside one transaction when
// configured.
func (s *Scanner) commit(ctx context.Context, logID string, result *model.ScanResult) ([]model.FieldChange, error) {
	var changes []model.FieldChange
	write := func(st store.Store) error {
		var err error
		changes, err = ApplyUpdates(ctx, st, result, s.thresholds.AutoApply)
		if err != nil {
			return err
		}
		return RecordVerification(ctx, st, logID, result, changes, s.now())
	}
	var err error
	if s.transactional {
		err = s.store.InTx(ctx, write)
	} else {
		err = write(s.store)
	}
	if err != nil {
		return nil, err
	}
	return changes, nil
}
