package types

import (
	"sort"
	"time"
)

// CostBucket labels one band of the snapshot cost distribution.
type CostBucket string

const (
	BucketFree   CostBucket = "free"
	BucketUnder1 CostBucket = "<$1"
	Bucket1To10  CostBucket = "$1-$10"
	Bucket10To   CostBucket = "$10-$100"
	Bucket100To  CostBucket = "$100-$1000"
	BucketOver1K CostBucket = ">$1000"
)

// BucketFor places a monthly cost into its distribution band.
func BucketFor(cost float64) CostBucket {
	switch {
	case cost <= 0:
		return BucketFree
	case cost < 1:
		return BucketUnder1
	case cost < 10:
		return Bucket1To10
	case cost < 100:
		return Bucket10To
	case cost < 1000:
		return Bucket100To
	default:
		return BucketOver1K
	}
}

// Summary holds the roll-ups frozen into a snapshot at assembly time.
type Summary struct {
	CountsByService   map[string]int         `json:"counts_by_service"`
	CountsByCategory  map[Category]int       `json:"counts_by_category"`
	CostByCategory    map[Category]float64   `json:"cost_by_category"`
	CostByRegion      map[string]float64     `json:"cost_by_region"`
	CostDistribution  map[CostBucket]int     `json:"cost_distribution"`
	DistinctServices  int                    `json:"distinct_services"`
	PermissionsIssues []string               `json:"permissions_issues,omitempty"`
}

// Snapshot is the atomic, immutable result of one discovery run.
type Snapshot struct {
	AccountRef          string         `json:"account_ref"`
	Records             []ResourceRecord `json:"records"`
	RegionsScanned      []string       `json:"regions_scanned"`
	ProbeOutcomes       []ProbeOutcome `json:"probe_outcomes"`
	TotalMonthlyCost    float64        `json:"total_monthly_cost"`
	TotalRecords        int            `json:"total_records"`
	TruncatedByDeadline bool           `json:"truncated_by_deadline,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	Summary             Summary        `json:"summary"`
}

// Duration is the wall-clock length of the run.
func (s *Snapshot) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// SortRecords imposes the canonical record order in place.
func SortRecords(records []ResourceRecord) {
	sort.Slice(records, func(i, j int) bool {
		return Less(&records[i], &records[j])
	})
}
