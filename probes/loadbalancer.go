package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// LoadBalancerProbe lists ELBv2 load balancers and target groups.
type LoadBalancerProbe struct{}

func (p *LoadBalancerProbe) Name() string { return "load_balancer" }
func (p *LoadBalancerProbe) Global() bool { return false }

func (p *LoadBalancerProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.loadBalancers(ctx, clients.ELBV2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.targetGroups(ctx, clients.ELBV2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *LoadBalancerProbe) loadBalancers(ctx context.Context, client awsclients.ELBV2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, lb := range out.LoadBalancers {
			lbType := string(lb.Type)
			records = append(records, types.ResourceRecord{
				ServiceID:    "load_balancer",
				ResourceID:   aws.ToString(lb.LoadBalancerArn),
				ResourceName: aws.ToString(lb.LoadBalancerName),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"type":   lbType,
					"scheme": string(lb.Scheme),
					"vpc_id": aws.ToString(lb.VpcId),
				},
				Usage: types.UsageVector{"lb_type": lbType},
			})
		}
		marker = out.NextMarker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *LoadBalancerProbe) targetGroups(ctx context.Context, client awsclients.ELBV2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, tg := range out.TargetGroups {
			records = append(records, types.ResourceRecord{
				ServiceID:    "target_group",
				ResourceID:   aws.ToString(tg.TargetGroupArn),
				ResourceName: aws.ToString(tg.TargetGroupName),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"protocol": string(tg.Protocol),
					"port":     aws.ToInt32(tg.Port),
				},
			})
		}
		marker = out.NextMarker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
