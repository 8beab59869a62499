package probes

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

func TestNetworkProbeListsVpcFabric(t *testing.T) {
	ec2Mock := &mockEC2{
		vpcs: []ec2types.Vpc{{
			VpcId:     aws.String("vpc-1"),
			CidrBlock: aws.String("10.0.0.0/16"),
			IsDefault: aws.Bool(true),
			State:     ec2types.VpcStateAvailable,
			Tags:      []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("main")}},
		}},
		subnets: []ec2types.Subnet{{
			SubnetId:         aws.String("subnet-1"),
			VpcId:            aws.String("vpc-1"),
			CidrBlock:        aws.String("10.0.1.0/24"),
			AvailabilityZone: aws.String("us-east-1a"),
		}},
		securityGroups: []ec2types.SecurityGroup{{
			GroupId:   aws.String("sg-1"),
			GroupName: aws.String("default"),
			VpcId:     aws.String("vpc-1"),
			IpPermissions: []ec2types.IpPermission{
				{}, {},
			},
		}},
	}
	clients := &awsclients.ClientSet{EC2: ec2Mock}

	probe := &NetworkProbe{}
	records, err := probe.Discover(context.Background(), clients)
	require.NoError(t, err)

	byID := map[string]types.ResourceRecord{}
	for _, rec := range records {
		byID[rec.ServiceID] = rec
		assert.Equal(t, types.CategoryNetworking, rec.ServiceType)
	}

	vpc := byID["vpc"]
	assert.Equal(t, "vpc-1", vpc.ResourceID)
	assert.Equal(t, "main", vpc.ResourceName)
	assert.Equal(t, "10.0.0.0/16", vpc.Details["cidr_block"])
	assert.Equal(t, true, vpc.Details["is_default"])

	subnet := byID["subnet"]
	assert.Equal(t, "subnet-1", subnet.ResourceID)
	assert.Equal(t, "us-east-1a", subnet.Details["availability_zone"])

	group := byID["security_group"]
	assert.Equal(t, "sg-1", group.ResourceID)
	assert.Equal(t, "default", group.ResourceName)
	assert.Equal(t, 2, group.Details["ingress_rules"])
	assert.Equal(t, 0, group.Details["egress_rules"])
}

func TestNetworkProbeFabricIsUnmetered(t *testing.T) {
	ec2Mock := &mockEC2{vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-1")}}}
	clients := &awsclients.ClientSet{EC2: ec2Mock}

	probe := &NetworkProbe{}
	records, err := probe.Discover(context.Background(), clients)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// fabric records carry no usage vector; the catalog prices them at zero
	assert.Empty(t, records[0].Usage)
}
