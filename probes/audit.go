package probes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// AuditProbe lists CloudTrail trails registered in the region.
type AuditProbe struct{}

func (p *AuditProbe) Name() string { return "audit" }
func (p *AuditProbe) Global() bool { return false }

func (p *AuditProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	out, err := clients.CloudTrail.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return nil, err
	}

	var records []types.ResourceRecord
	for _, trail := range out.TrailList {
		rec := types.ResourceRecord{
			ServiceID:    "cloudtrail_trail",
			ResourceID:   aws.ToString(trail.TrailARN),
			ResourceName: aws.ToString(trail.Name),
			ServiceType:  types.CategoryManagement,
			Count:        1,
			Details: map[string]any{
				"multi_region": aws.ToBool(trail.IsMultiRegionTrail),
				"home_region":  aws.ToString(trail.HomeRegion),
			},
		}
		// Multi-region trails show up in every region. Pinning them to
		// their home region gives every sighting the same dedupe key,
		// so only one row survives.
		if aws.ToBool(trail.IsMultiRegionTrail) && aws.ToString(trail.HomeRegion) != "" {
			rec.Region = aws.ToString(trail.HomeRegion)
		}
		records = append(records, rec)
	}
	return records, nil
}
