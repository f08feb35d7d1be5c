package scan

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetTarget(ctx context.Context, tt model.TargetType, id string) (*model.Target, error) {
	args := m.Called(ctx, tt, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Target), args.Error(1)
}

func (m *mockStore) SaveTarget(ctx context.Context, t model.Target) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockStore) UpdateTarget(ctx context.Context, tt model.TargetType, id string, updates map[model.Field]string) error {
	args := m.Called(ctx, tt, id, updates)
	return args.Error(0)
}

func (m *mockStore) UpsertVerification(ctx context.Context, e model.LedgerEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) GetVerification(ctx context.Context, tt model.TargetType, id string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, tt, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *mockStore) CreateScanLog(ctx context.Context, e *model.ScanLogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) CompleteScanLog(ctx context.Context, id string, score float64, sources []string, changes []model.FieldChange, completedAt time.Time) error {
	args := m.Called(ctx, id, score, sources, changes, completedAt)
	return args.Error(0)
}

func (m *mockStore) GetScanLog(ctx context.Context, id string) (*model.ScanLogEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanLogEntry), args.Error(1)
}

func (m *mockStore) ListScanLogs(ctx context.Context, filter store.ScanLogFilter) ([]model.ScanLogEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScanLogEntry), args.Error(1)
}

func (m *mockStore) FailStaleScanLogs(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	args := m.Called(ctx, olderThan, reason)
	return args.Get(0).(int64), args.Error(1)
}

// InTx runs fn against the mock itself unless the expectation returns an
// error.
func (m *mockStore) InTx(ctx context.Context, fn func(store.Store) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Analyzer Fake ---

type fakeAnalyzer struct {
	field   model.Field
	v       model.FieldVerification
	err     error
	panics  bool
	applies func(model.Target) bool
}

func (f *fakeAnalyzer) Field() model.Field { return f.field }

func (f *fakeAnalyzer) Applies(t model.Target) bool {
	if f.applies != nil {
		return f.applies(t)
	}
	return t.Has(f.field)
}

func (f *fakeAnalyzer) Analyze(_ context.Context, t model.Target) (model.FieldVerification, error) {
	if f.panics {
		panic("index out of range")
	}
	if f.err != nil {
		return model.FieldVerification{}, f.err
	}
	v := f.v
	v.Field = f.field
	if v.CurrentValue == "" {
		v.CurrentValue = t.Value(f.field)
	}
	if v.FoundValue == "" {
		v.FoundValue = v.CurrentValue
	}
	return v, nil
}

// confirms returns a fake that echoes the stored value at the given
// confidence.
func confirms(f model.Field, conf float64) *fakeAnalyzer {
	return &fakeAnalyzer{field: f, v: model.FieldVerification{Confidence: conf}}
}
