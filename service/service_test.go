package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/engine"
	"github.com/karttaio/kartta/snapcache"
	"github.com/karttaio/kartta/types"
)

// countingEngine serves a canned snapshot and counts discovery runs, so
// tests can assert cache hits never reach the provider.
type countingEngine struct {
	snap  *types.Snapshot
	err   error
	calls int
}

func (c *countingEngine) Discover(ctx context.Context, req engine.Request) (*types.Snapshot, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.snap, nil
}

func testSnapshot() *types.Snapshot {
	now := time.Now().UTC()
	return &types.Snapshot{
		AccountRef: "acct-1",
		Records: []types.ResourceRecord{
			{
				ServiceID:            "ec2_instance",
				ResourceID:           "i-1",
				Region:               "us-east-1",
				ServiceType:          types.CategoryCompute,
				EstimatedMonthlyCost: 70.08,
				Count:                1,
				Details:              map[string]any{"instance_type": "m5.large"},
				DiscoveredAt:         now,
			},
			{
				ServiceID:            "sqs_queue",
				ResourceID:           "q-1",
				Region:               "us-east-1",
				ServiceType:          types.CategoryIntegration,
				EstimatedMonthlyCost: 0,
				Count:                1,
				Details:              map[string]any{},
				DiscoveredAt:         now,
			},
			{
				ServiceID:            "nat_gateway",
				ResourceID:           "nat-1",
				Region:               "eu-north-1",
				ServiceType:          types.CategoryNetworking,
				EstimatedMonthlyCost: 32.85,
				Count:                1,
				Details:              map[string]any{},
				DiscoveredAt:         now,
			},
		},
		TotalMonthlyCost: 102.93,
		TotalRecords:     3,
		StartedAt:        now.Add(-time.Minute),
		FinishedAt:       now,
		Summary: types.Summary{
			CountsByService:  map[string]int{"ec2_instance": 1, "sqs_queue": 1, "nat_gateway": 1},
			CountsByCategory: map[types.Category]int{types.CategoryCompute: 1, types.CategoryIntegration: 1, types.CategoryNetworking: 1},
			CostByCategory:   map[types.Category]float64{types.CategoryCompute: 70.08, types.CategoryNetworking: 32.85},
			CostByRegion:     map[string]float64{"us-east-1": 70.08, "eu-north-1": 32.85},
			CostDistribution: map[types.CostBucket]int{types.BucketFree: 1, types.Bucket10To: 2},
			DistinctServices: 3,
		},
	}
}

func newTestService(t *testing.T) (*Service, *countingEngine) {
	t.Helper()
	store, err := snapcache.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := &countingEngine{snap: testSnapshot()}
	return New(eng, snapcache.NewCache(store, time.Hour, nil)), eng
}

func testRequest() engine.Request {
	return engine.Request{
		AccountRef: "acct-1",
		RoleRef:    "arn:aws:iam::123456789012:role/kartta",
		ExternalID: "ext-1",
	}
}

func TestSnapshotCachesSecondRead(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, testRequest(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.calls)

	second, err := svc.Snapshot(ctx, testRequest(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.calls, "cache hit must not reach the provider")
	assert.Equal(t, first.TotalMonthlyCost, second.TotalMonthlyCost)
}

func TestSnapshotForceBypassesCache(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, testRequest(), false)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx, testRequest(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, eng.calls)
}

func TestInvalidateForcesRediscovery(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, testRequest(), false)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, "acct-1"))

	_, err = svc.Snapshot(ctx, testRequest(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, eng.calls)
}

func TestFilteredSnapshotBypassesCache(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	req := testRequest()
	req.ServiceFilter = []string{"ec2_"}

	_, err := svc.Snapshot(ctx, req, false)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, 2, eng.calls, "filtered runs never hit the cache")

	_, err = svc.Snapshot(ctx, testRequest(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, eng.calls, "filtered runs never fill the cache")
}

func TestPaidResourcesSortedByCost(t *testing.T) {
	svc, _ := newTestService(t)

	paid, err := svc.PaidResources(context.Background(), testRequest(), "")
	require.NoError(t, err)

	require.Len(t, paid, 2)
	assert.Equal(t, "i-1", paid[0].ResourceID)
	assert.Equal(t, "nat-1", paid[1].ResourceID)
}

func TestPaidResourcesCategoryFilter(t *testing.T) {
	svc, _ := newTestService(t)

	paid, err := svc.PaidResources(context.Background(), testRequest(), types.CategoryNetworking)
	require.NoError(t, err)

	require.Len(t, paid, 1)
	assert.Equal(t, "nat-1", paid[0].ResourceID)
}

func TestSummaryView(t *testing.T) {
	svc, _ := newTestService(t)

	view, err := svc.Summary(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "acct-1", view.AccountRef)
	assert.Equal(t, 102.93, view.TotalMonthlyCost)
	assert.Equal(t, 3, view.TotalRecords)
	assert.Equal(t, 3, view.Summary.DistinctServices)
}

func TestCostAnalysis(t *testing.T) {
	svc, _ := newTestService(t)

	report, err := svc.CostAnalysis(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 102.93, report.TotalMonthlyCost)
	assert.Equal(t, 70.08, report.ByCategory[types.CategoryCompute])
	require.Len(t, report.TopResources, 2)
	assert.Equal(t, "i-1", report.TopResources[0].ResourceID)
}

func TestResourcesByCategory(t *testing.T) {
	svc, _ := newTestService(t)

	grouped, err := svc.ResourcesByCategory(context.Background(), testRequest(), "")
	require.NoError(t, err)

	assert.Len(t, grouped[types.CategoryCompute], 1)
	assert.Len(t, grouped[types.CategoryIntegration], 1)
	assert.Len(t, grouped[types.CategoryNetworking], 1)
}

func TestResourcesByCategorySingleFamily(t *testing.T) {
	svc, _ := newTestService(t)

	grouped, err := svc.ResourcesByCategory(context.Background(), testRequest(), types.CategoryCompute)
	require.NoError(t, err)

	require.Len(t, grouped, 1)
	assert.Len(t, grouped[types.CategoryCompute], 1)
}

func TestExportCSV(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), testRequest(), &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4) // header + 3 records
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "ec2_instance", rows[1][0])
	assert.Equal(t, "70.08", rows[1][5])

	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[1][7]), &details))
	assert.Equal(t, "m5.large", details["instance_type"])
}

func TestExportJSON(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportJSON(context.Background(), testRequest(), &buf))

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snap))
	assert.Equal(t, "acct-1", snap.AccountRef)
	assert.Len(t, snap.Records, 3)
}

func TestDiscoveryErrorPropagates(t *testing.T) {
	store, err := snapcache.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	eng := &countingEngine{err: &types.CredentialsError{RoleRef: "r", Err: assert.AnError}}
	svc := New(eng, snapcache.NewCache(store, time.Hour, nil))

	_, err = svc.Snapshot(context.Background(), testRequest(), false)
	require.Error(t, err)

	var credErr *types.CredentialsError
	assert.ErrorAs(t, err, &credErr)
}
