package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// NetworkProbe lists NAT gateways, elastic IPs and VPC endpoints, plus
// the free VPC fabric around them: VPCs, subnets, internet gateways,
// security groups and route tables. The free resources price to zero
// but still show up in the inventory.
type NetworkProbe struct{}

func (p *NetworkProbe) Name() string { return "network" }
func (p *NetworkProbe) Global() bool { return false }

func (p *NetworkProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	listings := []func(context.Context, awsclients.EC2API) ([]types.ResourceRecord, error){
		p.natGateways,
		p.elasticIPs,
		p.vpcEndpoints,
		p.vpcs,
		p.subnets,
		p.internetGateways,
		p.securityGroups,
		p.routeTables,
	}
	for _, list := range listings {
		recs, err := list(ctx, clients.EC2)
		records = append(records, recs...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return records, errors.Join(errs...)
}

func (p *NetworkProbe) natGateways(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, gw := range out.NatGateways {
			state := string(gw.State)
			if state == "deleted" {
				continue
			}
			records = append(records, types.ResourceRecord{
				ServiceID:    "nat_gateway",
				ResourceID:   aws.ToString(gw.NatGatewayId),
				ResourceName: nameTag(gw.Tags),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"vpc_id": aws.ToString(gw.VpcId),
					"state":  state,
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *NetworkProbe) elasticIPs(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	out, err := client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, err
	}
	var records []types.ResourceRecord
	for _, addr := range out.Addresses {
		attached := addr.AssociationId != nil
		records = append(records, types.ResourceRecord{
			ServiceID:    "elastic_ip",
			ResourceID:   aws.ToString(addr.AllocationId),
			ResourceName: nameTag(addr.Tags),
			ServiceType:  types.CategoryNetworking,
			Count:        1,
			Details: map[string]any{
				"public_ip": aws.ToString(addr.PublicIp),
				"attached":  attached,
			},
			Usage: types.UsageVector{"attached": attached},
		})
	}
	return records, nil
}

func (p *NetworkProbe) vpcEndpoints(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, endpoint := range out.VpcEndpoints {
			endpointType := string(endpoint.VpcEndpointType)
			records = append(records, types.ResourceRecord{
				ServiceID:    "vpc_endpoint",
				ResourceID:   aws.ToString(endpoint.VpcEndpointId),
				ResourceName: nameTag(endpoint.Tags),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"service_name":  aws.ToString(endpoint.ServiceName),
					"endpoint_type": endpointType,
				},
				Usage: types.UsageVector{"endpoint_type": endpointType},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *NetworkProbe) vpcs(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, vpc := range out.Vpcs {
			records = append(records, types.ResourceRecord{
				ServiceID:    "vpc",
				ResourceID:   aws.ToString(vpc.VpcId),
				ResourceName: nameTag(vpc.Tags),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"cidr_block": aws.ToString(vpc.CidrBlock),
					"is_default": aws.ToBool(vpc.IsDefault),
					"state":      string(vpc.State),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *NetworkProbe) subnets(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, subnet := range out.Subnets {
			records = append(records, types.ResourceRecord{
				ServiceID:    "subnet",
				ResourceID:   aws.ToString(subnet.SubnetId),
				ResourceName: nameTag(subnet.Tags),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"vpc_id":            aws.ToString(subnet.VpcId),
					"cidr_block":        aws.ToString(subnet.CidrBlock),
					"availability_zone": aws.ToString(subnet.AvailabilityZone),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *NetworkProbe) internetGateways(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, gw := range out.InternetGateways {
			var vpcID string
			if len(gw.Attachments) > 0 {
				vpcID = aws.ToString(gw.Attachments[0].VpcId)
			}
			records = append(records, types.ResourceRecord{
				ServiceID:    "internet_gateway",
				ResourceID:   aws.ToString(gw.InternetGatewayId),
				ResourceName: nameTag(gw.Tags),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"vpc_id":   vpcID,
					"attached": len(gw.Attachments) > 0,
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *NetworkProbe) securityGroups(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, group := range out.SecurityGroups {
			records = append(records, types.ResourceRecord{
				ServiceID:    "security_group",
				ResourceID:   aws.ToString(group.GroupId),
				ResourceName: aws.ToString(group.GroupName),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"vpc_id":        aws.ToString(group.VpcId),
					"ingress_rules": len(group.IpPermissions),
					"egress_rules":  len(group.IpPermissionsEgress),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *NetworkProbe) routeTables(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, table := range out.RouteTables {
			main := false
			for _, assoc := range table.Associations {
				if aws.ToBool(assoc.Main) {
					main = true
					break
				}
			}
			records = append(records, types.ResourceRecord{
				ServiceID:    "route_table",
				ResourceID:   aws.ToString(table.RouteTableId),
				ResourceName: nameTag(table.Tags),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"vpc_id": aws.ToString(table.VpcId),
					"routes": len(table.Routes),
					"main":   main,
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
