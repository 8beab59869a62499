package awsclients

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/types"
)

func anonCreds() aws.CredentialsProvider {
	return aws.AnonymousCredentials{}
}

func TestForRegionCachesPerRegion(t *testing.T) {
	builds := 0
	f := NewFactoryWithBuilder(anonCreds(), 20*time.Second, func(cfg aws.Config) *ClientSet {
		builds++
		return &ClientSet{}
	})

	a := f.ForRegion("us-east-1")
	b := f.ForRegion("us-east-1")
	c := f.ForRegion("eu-north-1")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, builds)
}

func TestGlobalSentinelMapsToUSEast1(t *testing.T) {
	var seen []string
	f := NewFactoryWithBuilder(anonCreds(), 20*time.Second, func(cfg aws.Config) *ClientSet {
		seen = append(seen, cfg.Region)
		return &ClientSet{}
	})

	global := f.ForRegion(types.GlobalRegion)
	useast := f.ForRegion("us-east-1")

	require.Equal(t, []string{"us-east-1"}, seen)
	assert.Same(t, global, useast)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := expBackoff{base: 500 * time.Millisecond, cap: 8 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
		{6, 8 * time.Second},
	}
	for _, tc := range cases {
		got, err := b.BackoffDelay(tc.attempt, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "attempt %d", tc.attempt)
	}
}
