package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fixedincome/marketdata/internal/cache"
	"github.com/fixedincome/marketdata/internal/httpclient"
	"github.com/fixedincome/marketdata/internal/provider"
	"github.com/fixedincome/marketdata/internal/resolver"
	"github.com/fixedincome/marketdata/internal/store"
)

// serviceEnv holds the wired pipeline for a command invocation.
type serviceEnv struct {
	Store    store.Store
	Resolver *resolver.Service
}

func (e *serviceEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// initService wires config into the full resolution pipeline:
// store (migrated) -> http client -> providers -> orchestrator -> caches.
func initService(ctx context.Context) (*serviceEnv, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	client := httpclient.New(httpclient.Options{
		Timeout:      time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.HTTP.MaxRetries,
		RateLimiters: httpclient.DefaultRateLimiters(),
	})

	primary := provider.NewFRED(cfg.FRED, client)
	var secondary provider.Provider
	if cfg.Alternative.Enabled {
		secondary = provider.NewAlternative(cfg.Alternative, client)
	}
	orch := provider.NewOrchestrator(primary, secondary)

	pools := cache.NewPools(cache.Config{
		CurveTTL:          time.Duration(cfg.Cache.CurveTTLHours) * time.Hour,
		CurveMaxEntries:   cfg.Cache.CurveMaxEntries,
		TimeSeriesTTL:     time.Duration(cfg.Cache.TimeSeriesTTLHours) * time.Hour,
		TimeSeriesMax:     cfg.Cache.TimeSeriesMaxEntries,
		DefaultTTL:        time.Duration(cfg.Cache.DefaultTTLHours) * time.Hour,
		DefaultMaxEntries: cfg.Cache.DefaultMaxEntries,
	})

	return &serviceEnv{
		Store:    st,
		Resolver: resolver.NewService(st, orch, pools),
	}, nil
}
