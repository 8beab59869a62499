package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karttaio/kartta/types"
)

// Assemble freezes one run's records and outcomes into an immutable
// snapshot: canonical record order, cost totals and roll-ups.
func Assemble(accountRef string, records []types.ResourceRecord, outcomes []types.ProbeOutcome, regionList []string, started, finished time.Time, truncated bool) *types.Snapshot {
	types.SortRecords(records)
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Probe != outcomes[j].Probe {
			return outcomes[i].Probe < outcomes[j].Probe
		}
		return outcomes[i].Region < outcomes[j].Region
	})

	summary := types.Summary{
		CountsByService:  make(map[string]int),
		CountsByCategory: make(map[types.Category]int),
		CostByCategory:   make(map[types.Category]float64),
		CostByRegion:     make(map[string]float64),
		CostDistribution: make(map[types.CostBucket]int),
	}

	total := decimal.Zero
	byCategory := make(map[types.Category]decimal.Decimal)
	byRegion := make(map[string]decimal.Decimal)

	for i := range records {
		rec := &records[i]
		cost := decimal.NewFromFloat(rec.EstimatedMonthlyCost)

		total = total.Add(cost)
		byCategory[rec.ServiceType] = byCategory[rec.ServiceType].Add(cost)
		byRegion[rec.Region] = byRegion[rec.Region].Add(cost)

		summary.CountsByService[rec.ServiceID]++
		summary.CountsByCategory[rec.ServiceType]++
		summary.CostDistribution[types.BucketFor(rec.EstimatedMonthlyCost)]++
	}

	for cat, cost := range byCategory {
		summary.CostByCategory[cat] = cost.RoundBank(2).InexactFloat64()
	}
	for region, cost := range byRegion {
		summary.CostByRegion[region] = cost.RoundBank(2).InexactFloat64()
	}
	summary.DistinctServices = len(summary.CountsByService)
	summary.PermissionsIssues = permissionsIssues(outcomes)

	// Deadline truncation also shows when any outcome died on the clock.
	if !truncated {
		for _, outcome := range outcomes {
			if outcome.ErrorKind == types.ErrDeadline {
				truncated = true
				break
			}
		}
	}

	return &types.Snapshot{
		AccountRef:          accountRef,
		Records:             records,
		RegionsScanned:      regionList,
		ProbeOutcomes:       outcomes,
		TotalMonthlyCost:    total.RoundBank(2).InexactFloat64(),
		TotalRecords:        len(records),
		TruncatedByDeadline: truncated,
		StartedAt:           started,
		FinishedAt:          finished,
		Summary:             summary,
	}
}

// permissionsIssues lists the (probe, region) pairs that were refused, in
// outcome order, so an operator knows which role statements are missing.
func permissionsIssues(outcomes []types.ProbeOutcome) []string {
	var issues []string
	for _, outcome := range outcomes {
		if outcome.ErrorKind == types.ErrAccessDenied {
			issues = append(issues, fmt.Sprintf("%s/%s: access denied", outcome.Probe, outcome.Region))
		}
	}
	return issues
}
