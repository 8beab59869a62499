// Package scheduler keeps configured accounts' snapshots warm on an
// interval and serves the Prometheus scrape endpoint.
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karttaio/kartta/config"
	"github.com/karttaio/kartta/engine"
	"github.com/karttaio/kartta/service"
	"github.com/karttaio/kartta/telemetry"
)

// Scheduler refreshes each configured account on every tick. Refreshes
// always force a fresh run; serving stale data is the cache's job, not
// the refresher's.
type Scheduler struct {
	svc      *service.Service
	accounts []config.Account
	interval time.Duration
	addr     string
	logger   *telemetry.Logger
}

func New(svc *service.Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		svc:      svc,
		accounts: cfg.Accounts,
		interval: cfg.RefreshInterval,
		addr:     fmt.Sprintf(":%d", cfg.MetricsPort),
		logger:   telemetry.NewLogger("scheduler"),
	}
}

// Run blocks until ctx is cancelled or an actor fails. It refreshes all
// accounts once at startup so a restart never serves an empty cache.
func (s *Scheduler) Run(ctx context.Context) error {
	var group run.Group

	runCtx, cancel := context.WithCancel(ctx)
	group.Add(func() error {
		s.refreshAll(runCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.refreshAll(runCtx)
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
	}, func(error) {
		cancel()
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	group.Add(func() error {
		s.logger.Info().Str("addr", s.addr).Msg("metrics server starting")
		return server.ListenAndServe()
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	})

	return group.Run()
}

func (s *Scheduler) refreshAll(ctx context.Context) {
	for _, account := range s.accounts {
		if ctx.Err() != nil {
			return
		}
		req := engine.Request{
			AccountRef: account.AccountRef,
			RoleRef:    account.RoleRef,
			ExternalID: account.ExternalID,
			Regions:    account.Regions,
		}

		_, err := s.svc.Snapshot(ctx, req, true)
		if err != nil {
			// Keep refreshing the other accounts; the stale snapshot
			// stays served until its TTL runs out.
			s.logger.WithContext(ctx).Error().
				Err(err).
				Str("account_ref", account.AccountRef).
				Msg("scheduled refresh failed")
			continue
		}
		s.logger.WithContext(ctx).Info().
			Str("account_ref", account.AccountRef).
			Msg("scheduled refresh complete")
	}
}
