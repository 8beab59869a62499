// Package service is the query surface over the discovery engine and the
// snapshot cache: summaries, cost views, exports and invalidation.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/karttaio/kartta/engine"
	"github.com/karttaio/kartta/snapcache"
	"github.com/karttaio/kartta/telemetry"
	"github.com/karttaio/kartta/types"
)

// Discoverer runs one discovery request end to end. Satisfied by
// *engine.Engine.
type Discoverer interface {
	Discover(ctx context.Context, req engine.Request) (*types.Snapshot, error)
}

// Service answers inventory and cost queries, reading from the cache and
// falling back to a fresh discovery run on miss.
type Service struct {
	engine Discoverer
	cache  *snapcache.Cache
	logger *telemetry.Logger
}

func New(d Discoverer, cache *snapcache.Cache) *Service {
	return &Service{
		engine: d,
		cache:  cache,
		logger: telemetry.NewLogger("service"),
	}
}

// Snapshot returns the account's snapshot, from cache when fresh. force
// bypasses the cache and always runs discovery.
func (s *Service) Snapshot(ctx context.Context, req engine.Request, force bool) (*types.Snapshot, error) {
	// Filtered runs bypass the cache both ways: a partial snapshot must
	// never stand in for the full account view.
	filtered := len(req.ServiceFilter) > 0 || req.SkipEmptyCost

	if !force && !filtered {
		if snap, ok := s.cache.Get(ctx, req.AccountRef); ok {
			return snap, nil
		}
	}

	snap, err := s.engine.Discover(ctx, req)
	if err != nil {
		return nil, err
	}
	if filtered {
		return snap, nil
	}
	if err := s.cache.Put(ctx, snap); err != nil {
		// A cache write failure must not lose a finished run.
		s.logger.WithContext(ctx).Warn().
			Err(err).
			Str("account_ref", req.AccountRef).
			Msg("snapshot cache write failed")
	}
	return snap, nil
}

// SummaryView is the headline answer for one account.
type SummaryView struct {
	AccountRef       string        `json:"account_ref"`
	TotalMonthlyCost float64       `json:"total_monthly_cost"`
	TotalRecords     int           `json:"total_records"`
	GeneratedAt      time.Time     `json:"generated_at"`
	Summary          types.Summary `json:"summary"`
}

// Summary returns the roll-up view for one account.
func (s *Service) Summary(ctx context.Context, req engine.Request) (*SummaryView, error) {
	snap, err := s.Snapshot(ctx, req, false)
	if err != nil {
		return nil, err
	}
	return &SummaryView{
		AccountRef:       snap.AccountRef,
		TotalMonthlyCost: snap.TotalMonthlyCost,
		TotalRecords:     snap.TotalRecords,
		GeneratedAt:      snap.FinishedAt,
		Summary:          snap.Summary,
	}, nil
}

// PaidResources returns every record with a nonzero estimate, most
// expensive first. An empty category means every family.
func (s *Service) PaidResources(ctx context.Context, req engine.Request, category types.Category) ([]types.ResourceRecord, error) {
	snap, err := s.Snapshot(ctx, req, false)
	if err != nil {
		return nil, err
	}

	var paid []types.ResourceRecord
	for _, rec := range snap.Records {
		if rec.EstimatedMonthlyCost <= 0 {
			continue
		}
		if category != "" && rec.ServiceType != category {
			continue
		}
		paid = append(paid, rec)
	}
	sort.SliceStable(paid, func(i, j int) bool {
		return paid[i].EstimatedMonthlyCost > paid[j].EstimatedMonthlyCost
	})
	return paid, nil
}

// CostReport is the cost-analysis answer: totals, breakdowns and the
// biggest line items.
type CostReport struct {
	AccountRef       string                       `json:"account_ref"`
	TotalMonthlyCost float64                      `json:"total_monthly_cost"`
	ByCategory       map[types.Category]float64   `json:"by_category"`
	ByRegion         map[string]float64           `json:"by_region"`
	Distribution     map[types.CostBucket]int     `json:"distribution"`
	TopResources     []types.ResourceRecord       `json:"top_resources"`
}

const topResourceCount = 10

// CostAnalysis builds the cost report for one account.
func (s *Service) CostAnalysis(ctx context.Context, req engine.Request) (*CostReport, error) {
	snap, err := s.Snapshot(ctx, req, false)
	if err != nil {
		return nil, err
	}

	top, err := s.PaidResources(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if len(top) > topResourceCount {
		top = top[:topResourceCount]
	}

	return &CostReport{
		AccountRef:       snap.AccountRef,
		TotalMonthlyCost: snap.TotalMonthlyCost,
		ByCategory:       snap.Summary.CostByCategory,
		ByRegion:         snap.Summary.CostByRegion,
		Distribution:     snap.Summary.CostDistribution,
		TopResources:     top,
	}, nil
}

// ResourcesByCategory groups the account's records by service family.
// A nonempty category restricts the view to that family alone.
func (s *Service) ResourcesByCategory(ctx context.Context, req engine.Request, category types.Category) (map[types.Category][]types.ResourceRecord, error) {
	snap, err := s.Snapshot(ctx, req, false)
	if err != nil {
		return nil, err
	}

	grouped := make(map[types.Category][]types.ResourceRecord)
	for _, rec := range snap.Records {
		if category != "" && rec.ServiceType != category {
			continue
		}
		grouped[rec.ServiceType] = append(grouped[rec.ServiceType], rec)
	}
	return grouped, nil
}

// Invalidate drops one account's cached snapshot.
func (s *Service) Invalidate(ctx context.Context, accountRef string) error {
	return s.cache.Invalidate(ctx, accountRef)
}

// InvalidateAll drops every cached snapshot.
func (s *Service) InvalidateAll(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}
