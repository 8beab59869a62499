package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/catalog"
	"github.com/karttaio/kartta/types"
)

func newNormalizer() *Normalizer {
	return New(catalog.New(catalog.DefaultRates()), []string{"us-east-1", "eu-north-1"})
}

func TestNormalizeStampsAndPrices(t *testing.T) {
	n := newNormalizer()

	kept, rejected := n.Normalize("us-east-1", []types.ResourceRecord{{
		ServiceID:   "ec2_instance",
		ResourceID:  "i-1",
		ServiceType: types.CategoryCompute,
		Usage:       types.UsageVector{"instance_type": "m5.large"},
	}})

	require.Len(t, kept, 1)
	assert.Zero(t, rejected)
	assert.Equal(t, "us-east-1", kept[0].Region)
	assert.Equal(t, 70.08, kept[0].EstimatedMonthlyCost)
	assert.Equal(t, 1, kept[0].Count)
	assert.False(t, kept[0].DiscoveredAt.IsZero())
}

func TestNormalizeKeepsProbePinnedRegion(t *testing.T) {
	n := newNormalizer()

	kept, _ := n.Normalize("global", []types.ResourceRecord{{
		ServiceID:  "s3_bucket",
		ResourceID: "assets",
		Region:     "eu-north-1",
	}})

	require.Len(t, kept, 1)
	assert.Equal(t, "eu-north-1", kept[0].Region)
}

func TestNormalizeClampsUnscannedPinnedRegion(t *testing.T) {
	n := New(catalog.New(catalog.DefaultRates()), []string{"us-east-1"})

	kept, _ := n.Normalize("global", []types.ResourceRecord{{
		ServiceID:  "s3_bucket",
		ResourceID: "assets",
		Region:     "eu-west-3",
	}})

	require.Len(t, kept, 1)
	assert.Equal(t, types.GlobalRegion, kept[0].Region)
}

func TestNormalizeEveryRegionInScannedSet(t *testing.T) {
	scanned := []string{"us-east-1"}
	n := New(catalog.New(catalog.DefaultRates()), scanned)

	kept, _ := n.Normalize("us-east-1", []types.ResourceRecord{
		{ServiceID: "ec2_instance", ResourceID: "i-1"},
		{ServiceID: "s3_bucket", ResourceID: "a", Region: "ap-southeast-2"},
		{ServiceID: "route53_hosted_zone", ResourceID: "Z1", Region: types.GlobalRegion},
	})

	require.Len(t, kept, 3)
	allowed := map[string]bool{types.GlobalRegion: true}
	for _, r := range scanned {
		allowed[r] = true
	}
	for _, rec := range kept {
		assert.True(t, allowed[rec.Region], "record %s/%s pinned outside scanned set: %s", rec.ServiceID, rec.ResourceID, rec.Region)
	}
}

func TestNormalizeFallsBackNameToID(t *testing.T) {
	n := newNormalizer()

	kept, _ := n.Normalize("us-east-1", []types.ResourceRecord{{
		ServiceID:  "ec2_instance",
		ResourceID: "i-0abc",
	}})

	require.Len(t, kept, 1)
	assert.Equal(t, "i-0abc", kept[0].ResourceName)
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	n := newNormalizer()

	kept, rejected := n.Normalize("us-east-1", []types.ResourceRecord{
		{ServiceID: "", ResourceID: "i-1"},
		{ServiceID: "ec2_instance", ResourceID: ""},
		{ServiceID: "ec2_instance", ResourceID: "i-2"},
	})

	assert.Len(t, kept, 1)
	assert.Equal(t, 2, rejected)
}

func TestNormalizeDedupesFirstWins(t *testing.T) {
	n := newNormalizer()

	first, _ := n.Normalize("us-east-1", []types.ResourceRecord{{
		ServiceID:  "ec2_instance",
		ResourceID: "i-1",
		Usage:      types.UsageVector{"instance_type": "m5.large"},
	}})
	second, _ := n.Normalize("us-east-1", []types.ResourceRecord{{
		ServiceID:  "ec2_instance",
		ResourceID: "i-1",
		Usage:      types.UsageVector{"instance_type": "t3.micro"},
	}})

	require.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, 70.08, first[0].EstimatedMonthlyCost)
}

func TestNormalizeSameResourceDifferentRegionsBothSurvive(t *testing.T) {
	n := newNormalizer()

	a, _ := n.Normalize("us-east-1", []types.ResourceRecord{{ServiceID: "nat_gateway", ResourceID: "nat-1"}})
	b, _ := n.Normalize("eu-north-1", []types.ResourceRecord{{ServiceID: "nat_gateway", ResourceID: "nat-1"}})

	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

func TestNormalizeFlagsUnpriced(t *testing.T) {
	n := newNormalizer()

	kept, _ := n.Normalize("us-east-1", []types.ResourceRecord{{
		ServiceID:  "quantum_annealer",
		ResourceID: "q-1",
	}})

	require.Len(t, kept, 1)
	assert.Equal(t, 0.00, kept[0].EstimatedMonthlyCost)
	assert.Equal(t, true, kept[0].Details["unpriced"])
	assert.Equal(t, 1, n.UnpricedCount())
}
