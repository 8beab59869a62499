package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// ContainerProbe lists ECS clusters with their Fargate services and EKS
// clusters with their managed node groups.
type ContainerProbe struct{}

func (p *ContainerProbe) Name() string { return "container" }
func (p *ContainerProbe) Global() bool { return false }

func (p *ContainerProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.ecsClusters(ctx, clients.ECS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.eksClusters(ctx, clients.EKS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *ContainerProbe) ecsClusters(ctx context.Context, client awsclients.ECSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	var arns []string
	for {
		out, err := client.ListClusters(ctx, &ecs.ListClustersInput{NextToken: token})
		if err != nil {
			return nil, err
		}
		arns = append(arns, out.ClusterArns...)
		token = out.NextToken
		if token == nil || CapHit(ctx, len(arns)) {
			break
		}
	}
	if len(arns) == 0 {
		return nil, nil
	}

	desc, err := client.DescribeClusters(ctx, &ecs.DescribeClustersInput{Clusters: arns})
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, cluster := range desc.Clusters {
		name := aws.ToString(cluster.ClusterName)
		records = append(records, types.ResourceRecord{
			ServiceID:    "ecs_cluster",
			ResourceID:   name,
			ResourceName: name,
			ServiceType:  types.CategoryCompute,
			Count:        1,
			Details: map[string]any{
				"status":           aws.ToString(cluster.Status),
				"active_services":  cluster.ActiveServicesCount,
				"running_tasks":    cluster.RunningTasksCount,
				"registered_nodes": cluster.RegisteredContainerInstancesCount,
			},
		})

		svcRecords, err := p.fargateServices(ctx, client, aws.ToString(cluster.ClusterArn), name)
		records = append(records, svcRecords...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return records, errors.Join(errs...)
}

func (p *ContainerProbe) fargateServices(ctx context.Context, client awsclients.ECSAPI, clusterArn, clusterName string) ([]types.ResourceRecord, error) {
	var serviceArns []string
	var token *string
	for {
		out, err := client.ListServices(ctx, &ecs.ListServicesInput{Cluster: aws.String(clusterArn), NextToken: token})
		if err != nil {
			return nil, err
		}
		serviceArns = append(serviceArns, out.ServiceArns...)
		token = out.NextToken
		if token == nil || CapHit(ctx, len(serviceArns)) {
			break
		}
	}
	if len(serviceArns) == 0 {
		return nil, nil
	}

	var records []types.ResourceRecord
	// DescribeServices accepts at most ten services per call.
	for start := 0; start < len(serviceArns); start += 10 {
		end := min(start+10, len(serviceArns))
		desc, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(clusterArn),
			Services: serviceArns[start:end],
		})
		if err != nil {
			return records, err
		}
		for _, svc := range desc.Services {
			if svc.LaunchType != ecstypes.LaunchTypeFargate {
				continue
			}
			desired := float64(svc.DesiredCount)
			records = append(records, types.ResourceRecord{
				ServiceID:    "ecs_fargate_task",
				ResourceID:   aws.ToString(svc.ServiceArn),
				ResourceName: aws.ToString(svc.ServiceName),
				ServiceType:  types.CategoryCompute,
				Count:        int(svc.DesiredCount),
				Details: map[string]any{
					"cluster":       clusterName,
					"desired_count": svc.DesiredCount,
					"running_count": svc.RunningCount,
				},
				Usage: types.UsageVector{
					"vcpu":          0.25,
					"memory_gb":     0.5,
					"desired_count": desired,
				},
			})
		}
	}
	return records, nil
}

func (p *ContainerProbe) eksClusters(ctx context.Context, client awsclients.EKSAPI) ([]types.ResourceRecord, error) {
	var names []string
	var token *string
	for {
		out, err := client.ListClusters(ctx, &eks.ListClustersInput{NextToken: token})
		if err != nil {
			return nil, err
		}
		names = append(names, out.Clusters...)
		token = out.NextToken
		if token == nil || CapHit(ctx, len(names)) {
			break
		}
	}

	var records []types.ResourceRecord
	var errs []error
	for _, name := range names {
		desc, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		details := map[string]any{}
		if desc.Cluster != nil {
			details["version"] = aws.ToString(desc.Cluster.Version)
			details["status"] = string(desc.Cluster.Status)
		}
		records = append(records, types.ResourceRecord{
			ServiceID:    "eks_control_plane",
			ResourceID:   name,
			ResourceName: name,
			ServiceType:  types.CategoryCompute,
			Count:        1,
			Details:      details,
		})

		ngRecords, err := p.nodegroups(ctx, client, name)
		records = append(records, ngRecords...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return records, errors.Join(errs...)
}

func (p *ContainerProbe) nodegroups(ctx context.Context, client awsclients.EKSAPI, cluster string) ([]types.ResourceRecord, error) {
	var names []string
	var token *string
	for {
		out, err := client.ListNodegroups(ctx, &eks.ListNodegroupsInput{ClusterName: aws.String(cluster), NextToken: token})
		if err != nil {
			return nil, err
		}
		names = append(names, out.Nodegroups...)
		token = out.NextToken
		if token == nil || CapHit(ctx, len(names)) {
			break
		}
	}

	var records []types.ResourceRecord
	var errs []error
	for _, name := range names {
		desc, err := client.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(cluster),
			NodegroupName: aws.String(name),
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ng := desc.Nodegroup
		if ng == nil {
			continue
		}

		instanceType := ""
		if len(ng.InstanceTypes) > 0 {
			instanceType = ng.InstanceTypes[0]
		}
		desired := 1.0
		if ng.ScalingConfig != nil {
			desired = float64(aws.ToInt32(ng.ScalingConfig.DesiredSize))
		}
		records = append(records, types.ResourceRecord{
			ServiceID:    "eks_nodegroup",
			ResourceID:   aws.ToString(ng.NodegroupArn),
			ResourceName: name,
			ServiceType:  types.CategoryCompute,
			Count:        int(desired),
			Details: map[string]any{
				"cluster":       cluster,
				"instance_type": instanceType,
				"desired_size":  desired,
			},
			Usage: types.UsageVector{
				"instance_type": instanceType,
				"desired_count": desired,
			},
		})
	}
	return records, errors.Join(errs...)
}
