package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/types"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return New(DefaultRates())
}

func estimate(t *testing.T, c *Catalog, serviceID string, usage types.UsageVector) float64 {
	t.Helper()
	cost, priced := c.Estimate(serviceID, usage)
	require.True(t, priced, "expected %s to be priced", serviceID)
	return cost.RoundBank(2).InexactFloat64()
}

func TestEC2InstanceMonthly(t *testing.T) {
	c := newTestCatalog(t)

	// m5.large: 0.096/h * 730h
	got := estimate(t, c, "ec2_instance", types.UsageVector{"instance_type": "m5.large"})
	assert.Equal(t, 70.08, got)
}

func TestEC2UnknownTypeUsesDefaultRate(t *testing.T) {
	c := newTestCatalog(t)

	got := estimate(t, c, "ec2_instance", types.UsageVector{"instance_type": "z9.metal"})
	assert.Equal(t, 36.50, got) // 0.05 * 730
}

func TestEC2WindowsUplift(t *testing.T) {
	c := newTestCatalog(t)

	got := estimate(t, c, "ec2_instance", types.UsageVector{
		"instance_type": "t3.medium",
		"platform":      "windows",
	})
	assert.Equal(t, 59.57, got) // (0.0416 + 0.04) * 730 = 59.568, banker's to 59.57
}

func TestEBSVolumeGp3IOPSOverFreeTier(t *testing.T) {
	c := newTestCatalog(t)

	free := estimate(t, c, "ebs_volume_gp3", types.UsageVector{"size_gb": 100.0, "iops": 3000.0})
	assert.Equal(t, 8.00, free)

	extra := estimate(t, c, "ebs_volume_gp3", types.UsageVector{"size_gb": 100.0, "iops": 4000.0})
	assert.Equal(t, 13.00, extra) // 8.00 + 1000 * 0.005
}

func TestEBSVolumeIo1ChargesAllIOPS(t *testing.T) {
	c := newTestCatalog(t)

	got := estimate(t, c, "ebs_volume_io1", types.UsageVector{"size_gb": 100.0, "iops": 1000.0})
	assert.Equal(t, 77.50, got) // 100*0.125 + 1000*0.065
}

func TestRDSMultiAZDoubles(t *testing.T) {
	c := newTestCatalog(t)

	usage := types.UsageVector{
		"instance_class": "db.m5.large",
		"storage_type":   "gp2",
		"storage_gb":     100.0,
	}
	single := estimate(t, c, "rds_db_instance", usage)

	usage["multi_az"] = true
	double := estimate(t, c, "rds_db_instance", usage)

	assert.Equal(t, single*2, double)
}

func TestLambdaArmDiscount(t *testing.T) {
	c := newTestCatalog(t)

	usage := types.UsageVector{
		"requests_per_month":   1_000_000.0,
		"gb_seconds_per_month": 100_000.0,
	}
	x86 := estimate(t, c, "lambda_execution", usage)

	usage["architecture"] = "arm64"
	arm := estimate(t, c, "lambda_execution", usage)

	assert.InDelta(t, x86*0.8, arm, 0.01)
}

func TestFargateTaskScalesWithDesiredCount(t *testing.T) {
	c := newTestCatalog(t)

	one := estimate(t, c, "ecs_fargate_task", types.UsageVector{
		"vcpu": 1.0, "memory_gb": 2.0, "desired_count": 1.0,
	})
	three := estimate(t, c, "ecs_fargate_task", types.UsageVector{
		"vcpu": 1.0, "memory_gb": 2.0, "desired_count": 3.0,
	})
	assert.InDelta(t, one*3, three, 0.02)
}

func TestUnknownServiceIsUnpriced(t *testing.T) {
	c := newTestCatalog(t)

	cost, priced := c.Estimate("quantum_annealer", types.UsageVector{})
	assert.False(t, priced)
	assert.True(t, cost.Equal(decimal.Zero))
}

func TestFreeResourcesPriceToZero(t *testing.T) {
	c := newTestCatalog(t)

	for _, id := range []string{"placement_group", "ecs_cluster", "sns_topic", "target_group", "cloudformation_stack", "vpc", "subnet", "internet_gateway", "security_group", "route_table"} {
		cost, priced := c.Estimate(id, types.UsageVector{})
		assert.True(t, priced, id)
		assert.True(t, cost.IsZero(), id)
	}
}

func TestAWSManagedKMSKeyIsFree(t *testing.T) {
	c := newTestCatalog(t)

	aws := estimate(t, c, "kms_key", types.UsageVector{"key_manager": "AWS"})
	assert.Equal(t, 0.00, aws)

	customer := estimate(t, c, "kms_key", types.UsageVector{"key_manager": "CUSTOMER"})
	assert.Equal(t, 1.00, customer)
}

func TestNATGatewayMonthly(t *testing.T) {
	c := newTestCatalog(t)

	got := estimate(t, c, "nat_gateway", types.UsageVector{})
	assert.Equal(t, 32.85, got) // 0.045 * 730
}

func TestEKSControlPlaneMonthly(t *testing.T) {
	c := newTestCatalog(t)

	got := estimate(t, c, "eks_control_plane", types.UsageVector{})
	assert.Equal(t, 73.00, got)
}

func TestRatesOverrideFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nat_gateway_hourly: 0.10\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	got := estimate(t, c, "nat_gateway", types.UsageVector{})
	assert.Equal(t, 73.00, got) // 0.10 * 730

	// untouched rates keep their defaults
	assert.Equal(t, 70.08, estimate(t, c, "ec2_instance", types.UsageVector{"instance_type": "m5.large"}))
}

func TestLoadRejectsBadHours(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hours_per_month: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
