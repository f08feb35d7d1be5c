package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/politica-cm/politica-scanner/internal/analyzer"
	"github.com/politica-cm/politica-scanner/internal/config"
	"github.com/politica-cm/politica-scanner/internal/fetcher"
	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/resilience"
	"github.com/politica-cm/politica-scanner/internal/scan"
	"github.com/politica-cm/politica-scanner/internal/store"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "politica.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newScanner wires the fetcher, analyzers and store into a Scanner.
func newScanner(st store.Store, c *config.Config) *scan.Scanner {
	sources := fetcher.NewTrustedSources(c.Fetch.TrustedDomains)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.Fetch.Retry.MaxAttempts
	retry.InitialBackoff = time.Duration(c.Fetch.Retry.InitialBackoffMs) * time.Millisecond
	retry.MaxBackoff = time.Duration(c.Fetch.Retry.MaxBackoffMs) * time.Millisecond

	httpFetcher := fetcher.NewHTTPFetcher(sources, fetcher.HTTPOptions{
		UserAgent:    c.Fetch.UserAgent,
		Timeout:      c.Fetch.FetchTimeout(),
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		RatePerHost:  rate.Limit(c.Fetch.RatePerHost),
		Retry:        retry,
	})

	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: c.Fetch.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(c.Fetch.Breaker.ResetTimeoutSecs) * time.Second,
	})

	searcher := fetcher.NewSourceSearcher(httpFetcher, sources,
		fetcher.WithSearchURLTemplate(c.Fetch.SearchURLTemplate),
		fetcher.WithMaxSentences(c.Fetch.MaxRelevantSentences),
		fetcher.WithBreakers(breakers),
	)

	zap.L().Debug("scanner configured",
		zap.Strings("trusted_domains", sources.Domains()),
		zap.Bool("transactional_commit", c.Scan.TransactionalCommit),
	)

	return scan.New(st,
		func(tt model.TargetType) []analyzer.Analyzer {
			return analyzer.ForTarget(tt, searcher, sources)
		},
		scan.WithThresholds(scan.Thresholds{
			AutoApply: c.Scan.AutoApplyThreshold,
			Dispute:   c.Scan.DisputeThreshold,
			Verified:  c.Scan.VerifiedThreshold,
		}),
		scan.WithTransactionalCommit(c.Scan.TransactionalCommit),
		scan.WithConcurrency(c.Scan.MaxConcurrent),
		scan.WithSources(sources.URLs()),
	)
}
