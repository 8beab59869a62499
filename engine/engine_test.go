package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/broker"
	"github.com/karttaio/kartta/catalog"
	"github.com/karttaio/kartta/config"
	"github.com/karttaio/kartta/probes"
	"github.com/karttaio/kartta/types"
)

type mockSTS struct {
	err error
}

func (m *mockSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	expires := time.Now().Add(time.Hour)
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("AKIATEST"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      &expires,
		},
	}, nil
}

// stubProbe emits canned records in whatever region it is scheduled.
type stubProbe struct {
	name    string
	global  bool
	records []types.ResourceRecord
	err     error
	delay   time.Duration
}

func (s *stubProbe) Name() string { return s.name }
func (s *stubProbe) Global() bool { return s.global }

func (s *stubProbe) Discover(ctx context.Context, _ *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	// hand out copies so runs do not share backing arrays
	records := make([]types.ResourceRecord, len(s.records))
	copy(records, s.records)
	return records, s.err
}

// capSensingProbe pages records one at a time until the run's item cap
// tells it to stop, the way real probes do.
type capSensingProbe struct{}

func (c *capSensingProbe) Name() string { return "messaging" }
func (c *capSensingProbe) Global() bool { return false }

func (c *capSensingProbe) Discover(ctx context.Context, _ *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	for i := 0; i < 100; i++ {
		records = append(records, types.ResourceRecord{
			ServiceID:  "sqs_queue",
			ResourceID: fmt.Sprintf("q-%d", i),
		})
		if probes.CapHit(ctx, len(records)) {
			break
		}
	}
	return records, nil
}

func stubClients(cfg aws.Config) *awsclients.ClientSet {
	return &awsclients.ClientSet{}
}

func newTestEngine(t *testing.T, cfg *config.Config, fleet []probes.Probe) *Engine {
	t.Helper()
	return New(
		broker.NewWithClient(&mockSTS{}),
		catalog.New(catalog.DefaultRates()),
		cfg,
		WithProbes(fleet),
		WithClientBuilder(stubClients),
	)
}

func testRequest() Request {
	return Request{
		AccountRef: "acct-1",
		RoleRef:    "arn:aws:iam::123456789012:role/kartta",
		ExternalID: "ext-1",
		Regions:    []string{"us-east-1"},
	}
}

func TestDiscoverEmptyAccount(t *testing.T) {
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "compute"},
		&stubProbe{name: "database"},
	})

	req := testRequest()
	req.Regions = []string{"us-east-1", "eu-north-1", "us-west-2"}

	snap, err := e.Discover(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, snap.Records)
	assert.Zero(t, snap.TotalRecords)
	assert.Zero(t, snap.TotalMonthlyCost)
	assert.False(t, snap.TruncatedByDeadline)
	assert.Len(t, snap.RegionsScanned, 3)
	require.Len(t, snap.ProbeOutcomes, 6)
	for _, outcome := range snap.ProbeOutcomes {
		assert.Equal(t, types.ProbeOK, outcome.Status)
		assert.Zero(t, outcome.ItemsEmitted)
	}
}

func TestDiscoverSingleInstanceTotal(t *testing.T) {
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "compute", records: []types.ResourceRecord{{
			ServiceID:   "ec2_instance",
			ResourceID:  "i-1",
			ServiceType: types.CategoryCompute,
			Usage:       types.UsageVector{"instance_type": "m5.large"},
		}}},
	})

	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, 1, snap.TotalRecords)
	assert.Equal(t, 70.08, snap.TotalMonthlyCost)
	assert.Equal(t, 70.08, snap.Records[0].EstimatedMonthlyCost)
	assert.Equal(t, "us-east-1", snap.Records[0].Region)
	assert.Equal(t, 70.08, snap.Summary.CostByCategory[types.CategoryCompute])
	assert.Equal(t, 1, snap.Summary.CostDistribution[types.Bucket10To])
}

func TestDiscoverPartialFailureKeepsGoing(t *testing.T) {
	denied := &smithyAPIError{code: "AccessDenied"}
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "compute", records: []types.ResourceRecord{{
			ServiceID:   "nat_gateway",
			ResourceID:  "nat-1",
			ServiceType: types.CategoryNetworking,
		}}},
		&stubProbe{name: "security", err: denied},
	})

	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, snap.TotalRecords)

	var failed *types.ProbeOutcome
	for i := range snap.ProbeOutcomes {
		if snap.ProbeOutcomes[i].Probe == "security" {
			failed = &snap.ProbeOutcomes[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, types.ProbeFailed, failed.Status)
	assert.Equal(t, types.ErrAccessDenied, failed.ErrorKind)
	assert.Equal(t, []string{"security/us-east-1: access denied"}, snap.Summary.PermissionsIssues)
}

func TestDiscoverCredentialsErrorAborts(t *testing.T) {
	e := New(
		broker.NewWithClient(&mockSTS{err: errors.New("AccessDenied")}),
		catalog.New(catalog.DefaultRates()),
		config.Default(),
		WithProbes([]probes.Probe{&stubProbe{name: "compute"}}),
		WithClientBuilder(stubClients),
	)

	snap, err := e.Discover(context.Background(), testRequest())
	assert.Nil(t, snap)

	var credErr *types.CredentialsError
	require.ErrorAs(t, err, &credErr)
}

func TestDiscoverDeadlineTruncates(t *testing.T) {
	cfg := config.Default()
	cfg.RunDeadline = 20 * time.Millisecond

	e := newTestEngine(t, cfg, []probes.Probe{
		&stubProbe{name: "fast", records: []types.ResourceRecord{{
			ServiceID:  "nat_gateway",
			ResourceID: "nat-1",
		}}},
		&stubProbe{name: "slow", delay: 500 * time.Millisecond},
	})

	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, snap.TruncatedByDeadline)
	assert.Equal(t, 1, snap.TotalRecords, "fast probe records survive")

	for _, outcome := range snap.ProbeOutcomes {
		if outcome.Probe == "slow" {
			assert.Equal(t, types.ProbeFailed, outcome.Status)
			assert.Equal(t, types.ErrDeadline, outcome.ErrorKind)
		}
	}
}

func TestDiscoverUnpricedServiceFlagged(t *testing.T) {
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "compute", records: []types.ResourceRecord{{
			ServiceID:   "quantum_annealer",
			ResourceID:  "q-1",
			ServiceType: types.CategoryCompute,
		}}},
	})

	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, 1, snap.TotalRecords)
	assert.Equal(t, 0.00, snap.Records[0].EstimatedMonthlyCost)
	assert.Equal(t, true, snap.Records[0].Details["unpriced"])
	assert.Zero(t, snap.TotalMonthlyCost)
}

func TestDiscoverGlobalProbeRunsOnce(t *testing.T) {
	global := &stubProbe{name: "edge", global: true, records: []types.ResourceRecord{{
		ServiceID:   "route53_hosted_zone",
		ResourceID:  "Z1",
		ServiceType: types.CategoryNetworking,
	}}}

	req := testRequest()
	req.Regions = []string{"us-east-1", "eu-north-1", "us-west-2"}

	e := newTestEngine(t, config.Default(), []probes.Probe{global})
	snap, err := e.Discover(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, snap.ProbeOutcomes, 1)
	assert.Equal(t, types.GlobalRegion, snap.ProbeOutcomes[0].Region)
	require.Equal(t, 1, snap.TotalRecords)
	assert.Equal(t, types.GlobalRegion, snap.Records[0].Region)
}

func TestDiscoverClampsPinnedRegionOutsideScan(t *testing.T) {
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "object_storage", global: true, records: []types.ResourceRecord{{
			ServiceID:  "s3_bucket",
			ResourceID: "assets",
			Region:     "ap-southeast-2",
		}}},
	})

	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	// bucket pinned outside the scanned set lands on the global row
	require.Equal(t, 1, snap.TotalRecords)
	assert.Equal(t, types.GlobalRegion, snap.Records[0].Region)
}

func TestDiscoverSafetyCapTruncatesProbe(t *testing.T) {
	cfg := config.Default()
	cfg.SafetyCapItems = 3

	var records []types.ResourceRecord
	for i := 0; i < 10; i++ {
		records = append(records, types.ResourceRecord{
			ServiceID:  "sqs_queue",
			ResourceID: string(rune('a' + i)),
		})
	}

	e := newTestEngine(t, cfg, []probes.Probe{&stubProbe{name: "messaging", records: records}})
	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, snap.TotalRecords)
	require.Len(t, snap.ProbeOutcomes, 1)
	assert.True(t, snap.ProbeOutcomes[0].Truncated)
	assert.Equal(t, types.ProbePartial, snap.ProbeOutcomes[0].Status)
	assert.Empty(t, snap.ProbeOutcomes[0].Error)
}

func TestDiscoverCapAwareProbeSeesLimit(t *testing.T) {
	cfg := config.Default()
	cfg.SafetyCapItems = 2

	e := newTestEngine(t, cfg, []probes.Probe{&capSensingProbe{}})
	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	// the probe stopped listing at the cap instead of paging everything in
	assert.Equal(t, 2, snap.TotalRecords)
	require.Len(t, snap.ProbeOutcomes, 1)
	assert.True(t, snap.ProbeOutcomes[0].Truncated)
	assert.Equal(t, types.ProbePartial, snap.ProbeOutcomes[0].Status)
}

func TestDiscoverRejectionsMarkProbePartial(t *testing.T) {
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "compute", records: []types.ResourceRecord{
			{ServiceID: "ec2_instance", ResourceID: "i-1"},
			{ServiceID: "ec2_instance", ResourceID: ""},
		}},
	})

	snap, err := e.Discover(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, snap.TotalRecords)
	require.Len(t, snap.ProbeOutcomes, 1)
	outcome := snap.ProbeOutcomes[0]
	assert.Equal(t, types.ProbePartial, outcome.Status)
	assert.Equal(t, 1, outcome.ItemsRejected)
	assert.False(t, outcome.Truncated)
	assert.Empty(t, outcome.Error)
}

func TestDiscoverServiceFilterSkipsProbes(t *testing.T) {
	compute := &stubProbe{name: "compute", records: []types.ResourceRecord{{
		ServiceID:   "ec2_instance",
		ResourceID:  "i-1",
		ServiceType: types.CategoryCompute,
		Usage:       types.UsageVector{"instance_type": "m5.large"},
	}}}
	messaging := &stubProbe{name: "messaging", records: []types.ResourceRecord{{
		ServiceID:  "sqs_queue",
		ResourceID: "q-1",
	}}}

	req := testRequest()
	req.ServiceFilter = []string{"ec2_"}

	e := newTestEngine(t, config.Default(), []probes.Probe{compute, messaging})
	snap, err := e.Discover(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, snap.TotalRecords)
	assert.Equal(t, "ec2_instance", snap.Records[0].ServiceID)
	require.Len(t, snap.ProbeOutcomes, 1, "filtered-out probe is never scheduled")
	assert.Equal(t, "compute", snap.ProbeOutcomes[0].Probe)
}

func TestDiscoverSkipEmptyCost(t *testing.T) {
	e := newTestEngine(t, config.Default(), []probes.Probe{
		&stubProbe{name: "compute", records: []types.ResourceRecord{
			{
				ServiceID:   "ec2_instance",
				ResourceID:  "i-1",
				ServiceType: types.CategoryCompute,
				Usage:       types.UsageVector{"instance_type": "m5.large"},
			},
			{
				ServiceID:   "ec2_launch_template",
				ResourceID:  "lt-1",
				ServiceType: types.CategoryCompute,
			},
		}},
	})

	req := testRequest()
	req.SkipEmptyCost = true

	snap, err := e.Discover(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, snap.TotalRecords)
	assert.Equal(t, "ec2_instance", snap.Records[0].ServiceID)
	assert.Equal(t, 70.08, snap.TotalMonthlyCost)
}

func TestDiscoverConcurrencyOverride(t *testing.T) {
	// One worker forces the two delayed probes to run back to back.
	fleet := []probes.Probe{
		&stubProbe{name: "compute", delay: 10 * time.Millisecond},
		&stubProbe{name: "database", delay: 10 * time.Millisecond},
	}

	req := testRequest()
	req.Concurrency = 1

	start := time.Now()
	e := newTestEngine(t, config.Default(), fleet)
	snap, err := e.Discover(context.Background(), req)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Len(t, snap.ProbeOutcomes, 2)
}

// smithyAPIError is a minimal smithy.APIError for classification tests.
type smithyAPIError struct {
	code string
}

func (e *smithyAPIError) Error() string                  { return e.code }
func (e *smithyAPIError) ErrorCode() string              { return e.code }
func (e *smithyAPIError) ErrorMessage() string           { return e.code }
func (e *smithyAPIError) ErrorFault() smithy.ErrorFault  { return smithy.FaultClient }
