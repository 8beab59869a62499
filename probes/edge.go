package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/shield"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// EdgeProbe covers the globally-scoped edge services: Route 53 hosted
// zones, CloudFront distributions and the Shield Advanced subscription.
// It runs once per account against the global endpoint.
type EdgeProbe struct{}

func (p *EdgeProbe) Name() string { return "edge" }
func (p *EdgeProbe) Global() bool { return true }

func (p *EdgeProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.hostedZones(ctx, clients.Route53)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.distributions(ctx, clients.CloudFront)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.shieldSubscription(ctx, clients.Shield)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *EdgeProbe) hostedZones(ctx context.Context, client awsclients.Route53API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.ListHostedZones(ctx, &route53.ListHostedZonesInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, zone := range out.HostedZones {
			records = append(records, types.ResourceRecord{
				ServiceID:    "route53_hosted_zone",
				ResourceID:   aws.ToString(zone.Id),
				ResourceName: aws.ToString(zone.Name),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"record_count": aws.ToInt64(zone.ResourceRecordSetCount),
				},
			})
		}
		if !out.IsTruncated || CapHit(ctx, len(records)) {
			return records, nil
		}
		marker = out.NextMarker
	}
}

func (p *EdgeProbe) distributions(ctx context.Context, client awsclients.CloudFrontAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.ListDistributions(ctx, &cloudfront.ListDistributionsInput{Marker: marker})
		if err != nil {
			return records, err
		}
		list := out.DistributionList
		if list == nil {
			return records, nil
		}
		for _, dist := range list.Items {
			records = append(records, types.ResourceRecord{
				ServiceID:    "cloudfront_distribution",
				ResourceID:   aws.ToString(dist.Id),
				ResourceName: aws.ToString(dist.DomainName),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"enabled": aws.ToBool(dist.Enabled),
					"status":  aws.ToString(dist.Status),
				},
			})
		}
		if !aws.ToBool(list.IsTruncated) || CapHit(ctx, len(records)) {
			return records, nil
		}
		marker = list.NextMarker
	}
}

func (p *EdgeProbe) shieldSubscription(ctx context.Context, client awsclients.ShieldAPI) ([]types.ResourceRecord, error) {
	out, err := client.GetSubscriptionState(ctx, &shield.GetSubscriptionStateInput{})
	if err != nil {
		return nil, err
	}
	subscribed := string(out.SubscriptionState) == "ACTIVE"
	if !subscribed {
		return nil, nil
	}
	return []types.ResourceRecord{{
		ServiceID:    "shield_advanced",
		ResourceID:   "shield-advanced",
		ResourceName: "Shield Advanced",
		ServiceType:  types.CategorySecurity,
		Count:        1,
		Usage:        types.UsageVector{"subscribed": true},
	}}, nil
}
