// Package normalize turns raw probe output into priced, deduplicated,
// stamped records. It is the only place a cost ever gets attached.
package normalize

import (
	"time"

	"github.com/karttaio/kartta/catalog"
	"github.com/karttaio/kartta/telemetry"
	"github.com/karttaio/kartta/types"
)

// Normalizer validates, stamps and prices records for one discovery run.
// It keeps the dedupe set for the whole run, so it must be fed from a
// single goroutine; the orchestrator's collector loop does exactly that.
type Normalizer struct {
	catalog *catalog.Catalog
	allowed map[string]struct{}
	seen    map[types.RecordKey]struct{}
	now     func() time.Time
	logger  *telemetry.Logger

	unpriced int
}

// New builds a normalizer for one run. regions is the set scanned this
// run; records pinned anywhere else get clamped back to the global
// pseudo-region so every surviving record sits inside the scanned set.
func New(cat *catalog.Catalog, regions []string) *Normalizer {
	allowed := make(map[string]struct{}, len(regions)+1)
	for _, r := range regions {
		allowed[r] = struct{}{}
	}
	allowed[types.GlobalRegion] = struct{}{}
	return &Normalizer{
		catalog: cat,
		allowed: allowed,
		seen:    make(map[types.RecordKey]struct{}),
		now:     time.Now,
		logger:  telemetry.NewLogger("normalize"),
	}
}

// Normalize processes one probe's output for one region. It returns the
// records that survive and the number rejected as malformed. Records the
// probe already pinned to a region keep their pin; everything else is
// stamped with the probed region. Duplicate keys lose to the first
// sighting.
func (n *Normalizer) Normalize(region string, raw []types.ResourceRecord) (kept []types.ResourceRecord, rejected int) {
	stamp := n.now().UTC()

	for _, rec := range raw {
		if rec.ServiceID == "" || rec.ResourceID == "" {
			rejected++
			continue
		}
		if rec.Region == "" {
			rec.Region = region
		}
		if _, ok := n.allowed[rec.Region]; !ok {
			rec.Region = types.GlobalRegion
		}
		if rec.ResourceName == "" {
			rec.ResourceName = rec.ResourceID
		}
		if rec.Count <= 0 {
			rec.Count = 1
		}
		if rec.Details == nil {
			rec.Details = map[string]any{}
		}
		rec.DiscoveredAt = stamp

		if _, dup := n.seen[rec.Key()]; dup {
			continue
		}
		n.seen[rec.Key()] = struct{}{}

		cost, priced := n.catalog.Estimate(rec.ServiceID, rec.Usage)
		if !priced {
			n.unpriced++
			rec.Details["unpriced"] = true
			n.logger.Warn().
				Str("service_id", rec.ServiceID).
				Str("resource_id", rec.ResourceID).
				Msg("no price formula, recording at zero")
		}
		rec.EstimatedMonthlyCost = cost.RoundBank(2).InexactFloat64()

		kept = append(kept, rec)
	}
	return kept, rejected
}

// UnpricedCount reports how many records had no pricing formula.
func (n *Normalizer) UnpricedCount() int { return n.unpriced }
