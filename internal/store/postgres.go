package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/db"
	"github.com/politica-cm/politica-scanner/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	tx      db.Querier
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// q returns the transaction when inside InTx, else the pool.
func (s *PostgresStore) q() db.Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS politicians (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name              TEXT NOT NULL,
	role_title        TEXT,
	region            TEXT,
	party             TEXT,
	birth_date        TEXT,
	profile_image_url TEXT,
	education         TEXT,
	bio               TEXT,
	status            TEXT NOT NULL DEFAULT 'Active',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS political_parties (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                 TEXT NOT NULL,
	party_president      TEXT,
	founding_date        TEXT,
	headquarters_address TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS politician_ai_verification (
	politician_id        TEXT PRIMARY KEY REFERENCES politicians(id) ON DELETE CASCADE,
	last_verified_at     TIMESTAMPTZ NOT NULL,
	verification_status  TEXT NOT NULL,
	verification_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	sources_count        INTEGER NOT NULL DEFAULT 0,
	last_sources_checked JSONB NOT NULL DEFAULT '[]',
	outdated_fields      JSONB NOT NULL DEFAULT '[]',
	disputed_fields      JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS party_ai_verification (
	party_id             TEXT PRIMARY KEY REFERENCES political_parties(id) ON DELETE CASCADE,
	last_verified_at     TIMESTAMPTZ NOT NULL,
	verification_status  TEXT NOT NULL,
	verification_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	sources_count        INTEGER NOT NULL DEFAULT 0,
	last_sources_checked JSONB NOT NULL DEFAULT '[]',
	outdated_fields      JSONB NOT NULL DEFAULT '[]',
	disputed_fields      JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS politica_ai_logs (
	id                  TEXT PRIMARY KEY,
	target_type         TEXT NOT NULL,
	target_id           TEXT NOT NULL,
	action_type         TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	ai_confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	sources_verified    JSONB NOT NULL DEFAULT '[]',
	changes_made        JSONB NOT NULL DEFAULT '[]',
	error               TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_politica_ai_logs_status_created ON politica_ai_logs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_politica_ai_logs_target ON politica_ai_logs(target_type, target_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, tx: tx})
	})
}

func (s *PostgresStore) GetTarget(ctx context.Context, tt model.TargetType, id string) (*model.Target, error) {
	if _, err := tablesFor(tt); err != nil {
		return nil, err
	}
	t, err := scanTarget(tt, s.q().QueryRow(ctx, selectTargetSQL(tt), id))
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: %s %s", tt, id)
		}
		return nil, eris.Wrapf(err, "postgres: get %s %s", tt, id)
	}
	return t, nil
}

func (s *PostgresStore) SaveTarget(ctx context.Context, t model.Target) error {
	query, args, err := upsertTargetSQL(t, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = s.q().Exec(ctx, query, args...)
	return eris.Wrapf(err, "postgres: save %s %s", t.Type, t.ID())
}

func (s *PostgresStore) UpdateTarget(ctx context.Context, tt model.TargetType, id string, updates map[model.Field]string) error {
	tbl, err := tablesFor(tt)
	if err != nil {
		return err
	}
	cols, vals, err := updateColumns(tt, updates)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	args := append(vals, time.Now().UTC(), id)
	tag, err := s.q().Exec(ctx, updateTargetSQL(tbl.entity, cols), args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %s", tt, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update %s %s", tt, id)
	}
	return nil
}

func (s *PostgresStore) UpsertVerification(ctx context.Context, e model.LedgerEntry) error {
	tbl, err := tablesFor(e.TargetType)
	if err != nil {
		return err
	}
	j, err := encodeLedger(e)
	if err != nil {
		return err
	}
	_, err = s.q().Exec(ctx, upsertVerificationSQL(tbl),
		e.TargetID, e.LastVerifiedAt, string(e.VerificationStatus), e.VerificationScore, e.SourcesCount,
		j.sources, j.outdated, j.disputed,
	)
	return eris.Wrapf(err, "postgres: upsert verification %s", e.TargetID)
}

func (s *PostgresStore) GetVerification(ctx context.Context, tt model.TargetType, id string) (*model.LedgerEntry, error) {
	tbl, err := tablesFor(tt)
	if err != nil {
		return nil, err
	}
	e, err := scanLedger(tt, s.q().QueryRow(ctx, selectVerificationSQL(tbl), id))
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: verification %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get verification %s", id)
	}
	return e, nil
}

func (s *PostgresStore) CreateScanLog(ctx context.Context, e *model.ScanLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	j, err := encodeLog(e.SourcesVerified, e.ChangesMade)
	if err != nil {
		return err
	}
	_, err = s.q().Exec(ctx, insertScanLog,
		e.ID, string(e.TargetType), e.TargetID, e.ActionType, string(e.Status), e.AIConfidenceScore,
		j.sources, j.changes, e.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert scan log %s", e.ID)
}

func (s *PostgresStore) CompleteScanLog(ctx context.Context, id string, score float64, sources []string, changes []model.FieldChange, completedAt time.Time) error {
	j, err := encodeLog(sources, changes)
	if err != nil {
		return err
	}
	tag, err := s.q().Exec(ctx, completeScanLog,
		string(model.ScanLogCompleted), score, j.sources, j.changes, completedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete scan log %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: scan log %s", id)
	}
	return nil
}

func (s *PostgresStore) GetScanLog(ctx context.Context, id string) (*model.ScanLogEntry, error) {
	e, err := scanLogEntry(s.q().QueryRow(ctx, selectScanLogs+` WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: scan log %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get scan log %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]model.ScanLogEntry, error) {
	query, args := listScanLogsSQL(filter)
	rows, err := s.q().Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scan logs")
	}
	defer rows.Close()

	var out []model.ScanLogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan log row")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scan logs iterate")
}

func (s *PostgresStore) FailStaleScanLogs(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	tag, err := s.q().Exec(ctx, failStaleScanLogs,
		string(model.ScanLogFailed), reason, time.Now().UTC(), string(model.ScanLogPending), olderThan,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: fail stale scan logs")
	}
	return tag.RowsAffected(), nil
}
