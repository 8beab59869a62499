package probes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	dms "github.com/aws/aws-sdk-go-v2/service/databasemigrationservice"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// MigrationProbe lists DMS replication instances.
type MigrationProbe struct{}

func (p *MigrationProbe) Name() string { return "migration" }
func (p *MigrationProbe) Global() bool { return false }

func (p *MigrationProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := clients.DMS.DescribeReplicationInstances(ctx, &dms.DescribeReplicationInstancesInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, inst := range out.ReplicationInstances {
			multiAZ := inst.MultiAZ
			records = append(records, types.ResourceRecord{
				ServiceID:    "dms_replication_instance",
				ResourceID:   aws.ToString(inst.ReplicationInstanceIdentifier),
				ResourceName: aws.ToString(inst.ReplicationInstanceIdentifier),
				ServiceType:  types.CategoryMigration,
				Count:        1,
				Details: map[string]any{
					"instance_class": aws.ToString(inst.ReplicationInstanceClass),
					"multi_az":       multiAZ,
					"status":         aws.ToString(inst.ReplicationInstanceStatus),
				},
				Usage: types.UsageVector{
					"instance_class": aws.ToString(inst.ReplicationInstanceClass),
					"multi_az":       multiAZ,
				},
			})
		}
		marker = out.Marker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
