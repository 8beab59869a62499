// Package regions decides which regions a discovery run fans out to.
package regions

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/telemetry"
)

// Resolver enumerates the regions enabled for the tenant account, falling
// back to a configured default list when enumeration is not permitted.
type Resolver struct {
	ec2      awsclients.EC2API
	defaults []string
	logger   *telemetry.Logger
}

func NewResolver(ec2Client awsclients.EC2API, defaults []string) *Resolver {
	return &Resolver{
		ec2:      ec2Client,
		defaults: defaults,
		logger:   telemetry.NewLogger("regions"),
	}
}

// Resolve returns the region list for a run. An explicit request wins
// outright. Otherwise the account's enabled regions are enumerated; if
// that call is refused the defaults are used so a run still produces a
// snapshot instead of nothing.
func (r *Resolver) Resolve(ctx context.Context, requested []string) []string {
	if len(requested) > 0 {
		return dedupe(requested)
	}

	out, err := r.ec2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		r.logger.WithContext(ctx).Warn().
			Err(err).
			Strs("defaults", r.defaults).
			Msg("region enumeration refused, using defaults")
		return dedupe(r.defaults)
	}

	names := make([]string, 0, len(out.Regions))
	for _, region := range out.Regions {
		if region.RegionName != nil {
			names = append(names, *region.RegionName)
		}
	}
	if len(names) == 0 {
		return dedupe(r.defaults)
	}
	sort.Strings(names)
	return names
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
