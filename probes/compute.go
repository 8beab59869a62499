package probes

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// ComputeProbe lists EC2 instances, dedicated hosts, placement groups,
// capacity reservations, launch templates and auto scaling groups.
type ComputeProbe struct{}

func (p *ComputeProbe) Name() string { return "compute" }
func (p *ComputeProbe) Global() bool { return false }

func (p *ComputeProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	collect := func(recs []types.ResourceRecord, err error) {
		records = append(records, recs...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(p.instances(ctx, clients.EC2))
	collect(p.hosts(ctx, clients.EC2))
	collect(p.placementGroups(ctx, clients.EC2))
	collect(p.capacityReservations(ctx, clients.EC2))
	collect(p.launchTemplates(ctx, clients.EC2))
	collect(p.autoScalingGroups(ctx, clients.AutoScaling))

	return records, errors.Join(errs...)
}

func (p *ComputeProbe) instances(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				platform := "linux"
				if inst.Platform == ec2types.PlatformValuesWindows {
					platform = "windows"
				}
				rec := types.ResourceRecord{
					ServiceID:    "ec2_instance",
					ResourceID:   aws.ToString(inst.InstanceId),
					ResourceName: nameTag(inst.Tags),
					ServiceType:  types.CategoryCompute,
					Count:        1,
					Details: map[string]any{
						"instance_type": string(inst.InstanceType),
						"state":         stateName(inst.State),
						"platform":      platform,
					},
					Usage: types.UsageVector{
						"instance_type": string(inst.InstanceType),
						"platform":      platform,
					},
				}
				if inst.Placement != nil {
					rec.Details["availability_zone"] = aws.ToString(inst.Placement.AvailabilityZone)
				}
				records = append(records, rec)
			}
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ComputeProbe) hosts(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeHosts(ctx, &ec2.DescribeHostsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, host := range out.Hosts {
			family := ""
			if host.HostProperties != nil {
				family = aws.ToString(host.HostProperties.InstanceFamily)
			}
			records = append(records, types.ResourceRecord{
				ServiceID:    "dedicated_host",
				ResourceID:   aws.ToString(host.HostId),
				ResourceName: nameTag(host.Tags),
				ServiceType:  types.CategoryCompute,
				Count:        1,
				Details: map[string]any{
					"instance_family": family,
					"state":           string(host.State),
				},
				Usage: types.UsageVector{"instance_family": family},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ComputeProbe) placementGroups(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	out, err := client.DescribePlacementGroups(ctx, &ec2.DescribePlacementGroupsInput{})
	if err != nil {
		return nil, err
	}
	var records []types.ResourceRecord
	for _, group := range out.PlacementGroups {
		records = append(records, types.ResourceRecord{
			ServiceID:    "placement_group",
			ResourceID:   aws.ToString(group.GroupId),
			ResourceName: aws.ToString(group.GroupName),
			ServiceType:  types.CategoryCompute,
			Count:        1,
			Details: map[string]any{
				"strategy": string(group.Strategy),
				"state":    string(group.State),
			},
		})
	}
	return records, nil
}

func (p *ComputeProbe) capacityReservations(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeCapacityReservations(ctx, &ec2.DescribeCapacityReservationsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, res := range out.CapacityReservations {
			if res.State != ec2types.CapacityReservationStateActive {
				continue
			}
			count := int(aws.ToInt32(res.TotalInstanceCount))
			records = append(records, types.ResourceRecord{
				ServiceID:    "capacity_reservation",
				ResourceID:   aws.ToString(res.CapacityReservationId),
				ResourceName: nameTag(res.Tags),
				ServiceType:  types.CategoryCompute,
				Count:        1,
				Details: map[string]any{
					"instance_type":  aws.ToString(res.InstanceType),
					"instance_count": count,
				},
				Usage: types.UsageVector{
					"instance_type":  aws.ToString(res.InstanceType),
					"instance_count": float64(count),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ComputeProbe) launchTemplates(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, tpl := range out.LaunchTemplates {
			records = append(records, types.ResourceRecord{
				ServiceID:    "ec2_launch_template",
				ResourceID:   aws.ToString(tpl.LaunchTemplateId),
				ResourceName: aws.ToString(tpl.LaunchTemplateName),
				ServiceType:  types.CategoryCompute,
				Count:        1,
				Details: map[string]any{
					"default_version": aws.ToInt64(tpl.DefaultVersionNumber),
					"latest_version":  aws.ToInt64(tpl.LatestVersionNumber),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ComputeProbe) autoScalingGroups(ctx context.Context, client awsclients.AutoScalingAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, group := range out.AutoScalingGroups {
			records = append(records, types.ResourceRecord{
				ServiceID:    "autoscaling_group",
				ResourceID:   aws.ToString(group.AutoScalingGroupName),
				ResourceName: aws.ToString(group.AutoScalingGroupName),
				ServiceType:  types.CategoryCompute,
				Count:        1,
				Details: map[string]any{
					"desired_capacity": aws.ToInt32(group.DesiredCapacity),
					"min_size":         aws.ToInt32(group.MinSize),
					"max_size":         aws.ToInt32(group.MaxSize),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func nameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if strings.EqualFold(aws.ToString(tag.Key), "Name") {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

func stateName(state *ec2types.InstanceState) string {
	if state == nil {
		return ""
	}
	return string(state.Name)
}
