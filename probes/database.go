package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// DatabaseProbe lists RDS instances, Aurora clusters and manual snapshots.
type DatabaseProbe struct{}

func (p *DatabaseProbe) Name() string { return "database" }
func (p *DatabaseProbe) Global() bool { return false }

func (p *DatabaseProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.instances(ctx, clients.RDS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.clusters(ctx, clients.RDS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.snapshots(ctx, clients.RDS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *DatabaseProbe) instances(ctx context.Context, client awsclients.RDSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, db := range out.DBInstances {
			storageGB := float64(aws.ToInt32(db.AllocatedStorage))
			multiAZ := aws.ToBool(db.MultiAZ)
			rec := types.ResourceRecord{
				ServiceID:    "rds_db_instance",
				ResourceID:   aws.ToString(db.DBInstanceIdentifier),
				ResourceName: aws.ToString(db.DBInstanceIdentifier),
				ServiceType:  types.CategoryDatabase,
				Count:        1,
				Details: map[string]any{
					"engine":         aws.ToString(db.Engine),
					"instance_class": aws.ToString(db.DBInstanceClass),
					"storage_gb":     storageGB,
					"storage_type":   aws.ToString(db.StorageType),
					"multi_az":       multiAZ,
					"status":         aws.ToString(db.DBInstanceStatus),
				},
				Usage: types.UsageVector{
					"instance_class": aws.ToString(db.DBInstanceClass),
					"storage_gb":     storageGB,
					"storage_type":   aws.ToString(db.StorageType),
					"multi_az":       multiAZ,
				},
			}
			if db.Iops != nil {
				rec.Usage["iops"] = float64(aws.ToInt32(db.Iops))
			}
			records = append(records, rec)
		}
		marker = out.Marker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *DatabaseProbe) clusters(ctx context.Context, client awsclients.RDSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, cluster := range out.DBClusters {
			records = append(records, types.ResourceRecord{
				ServiceID:    "rds_db_cluster",
				ResourceID:   aws.ToString(cluster.DBClusterIdentifier),
				ResourceName: aws.ToString(cluster.DBClusterIdentifier),
				ServiceType:  types.CategoryDatabase,
				Count:        1,
				Details: map[string]any{
					"engine":  aws.ToString(cluster.Engine),
					"members": len(cluster.DBClusterMembers),
					"status":  aws.ToString(cluster.Status),
				},
			})
		}
		marker = out.Marker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *DatabaseProbe) snapshots(ctx context.Context, client awsclients.RDSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeDBSnapshots(ctx, &rds.DescribeDBSnapshotsInput{
			SnapshotType: aws.String("manual"),
			Marker:       marker,
		})
		if err != nil {
			return records, err
		}
		for _, snap := range out.DBSnapshots {
			size := float64(aws.ToInt32(snap.AllocatedStorage))
			records = append(records, types.ResourceRecord{
				ServiceID:    "rds_db_snapshot",
				ResourceID:   aws.ToString(snap.DBSnapshotIdentifier),
				ResourceName: aws.ToString(snap.DBSnapshotIdentifier),
				ServiceType:  types.CategoryDatabase,
				Count:        1,
				Details: map[string]any{
					"instance": aws.ToString(snap.DBInstanceIdentifier),
					"size_gb":  size,
				},
				Usage: types.UsageVector{"size_gb": size},
			})
		}
		marker = out.Marker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
