package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// CacheWarehouseProbe lists ElastiCache clusters and Redshift clusters.
type CacheWarehouseProbe struct{}

func (p *CacheWarehouseProbe) Name() string { return "cache_warehouse" }
func (p *CacheWarehouseProbe) Global() bool { return false }

func (p *CacheWarehouseProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.cacheClusters(ctx, clients.ElastiCache)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.warehouses(ctx, clients.Redshift)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *CacheWarehouseProbe) cacheClusters(ctx context.Context, client awsclients.ElastiCacheAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, cluster := range out.CacheClusters {
			nodes := float64(aws.ToInt32(cluster.NumCacheNodes))
			records = append(records, types.ResourceRecord{
				ServiceID:    "elasticache_cluster",
				ResourceID:   aws.ToString(cluster.CacheClusterId),
				ResourceName: aws.ToString(cluster.CacheClusterId),
				ServiceType:  types.CategoryDatabase,
				Count:        int(nodes),
				Details: map[string]any{
					"engine":    aws.ToString(cluster.Engine),
					"node_type": aws.ToString(cluster.CacheNodeType),
					"nodes":     int(nodes),
					"status":    aws.ToString(cluster.CacheClusterStatus),
				},
				Usage: types.UsageVector{
					"node_type":  aws.ToString(cluster.CacheNodeType),
					"node_count": nodes,
				},
			})
		}
		marker = out.Marker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *CacheWarehouseProbe) warehouses(ctx context.Context, client awsclients.RedshiftAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeClusters(ctx, &redshift.DescribeClustersInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, cluster := range out.Clusters {
			nodes := float64(aws.ToInt32(cluster.NumberOfNodes))
			records = append(records, types.ResourceRecord{
				ServiceID:    "redshift_cluster",
				ResourceID:   aws.ToString(cluster.ClusterIdentifier),
				ResourceName: aws.ToString(cluster.ClusterIdentifier),
				ServiceType:  types.CategoryDatabase,
				Count:        int(nodes),
				Details: map[string]any{
					"node_type": aws.ToString(cluster.NodeType),
					"nodes":     int(nodes),
					"status":    aws.ToString(cluster.ClusterStatus),
				},
				Usage: types.UsageVector{
					"node_type":  aws.ToString(cluster.NodeType),
					"node_count": nodes,
				},
			})
		}
		marker = out.Marker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
