package probes

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// BlockStorageProbe lists EBS volumes, snapshots owned by the account and
// registered AMIs. Volume records carry the volume type in their service
// id so each type prices on its own rate.
type BlockStorageProbe struct{}

func (p *BlockStorageProbe) Name() string { return "block_storage" }
func (p *BlockStorageProbe) Global() bool { return false }

func (p *BlockStorageProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.volumes(ctx, clients.EC2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.snapshots(ctx, clients.EC2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.images(ctx, clients.EC2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *BlockStorageProbe) volumes(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, vol := range out.Volumes {
			volType := string(vol.VolumeType)
			if volType == "" {
				volType = "standard"
			}
			size := float64(aws.ToInt32(vol.Size))
			rec := types.ResourceRecord{
				ServiceID:    fmt.Sprintf("ebs_volume_%s", volType),
				ResourceID:   aws.ToString(vol.VolumeId),
				ResourceName: nameTag(vol.Tags),
				ServiceType:  types.CategoryStorage,
				Count:        1,
				Details: map[string]any{
					"volume_type": volType,
					"size_gb":     size,
					"state":       string(vol.State),
					"attached":    len(vol.Attachments) > 0,
				},
				Usage: types.UsageVector{"size_gb": size},
			}
			if vol.Iops != nil {
				rec.Details["iops"] = aws.ToInt32(vol.Iops)
				rec.Usage["iops"] = float64(aws.ToInt32(vol.Iops))
			}
			records = append(records, rec)
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *BlockStorageProbe) snapshots(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
			OwnerIds:  []string{"self"},
			NextToken: token,
		})
		if err != nil {
			return records, err
		}
		for _, snap := range out.Snapshots {
			size := float64(aws.ToInt32(snap.VolumeSize))
			records = append(records, types.ResourceRecord{
				ServiceID:    "ebs_snapshot",
				ResourceID:   aws.ToString(snap.SnapshotId),
				ResourceName: nameTag(snap.Tags),
				ServiceType:  types.CategoryStorage,
				Count:        1,
				Details: map[string]any{
					"volume_id": aws.ToString(snap.VolumeId),
					"size_gb":   size,
					"state":     string(snap.State),
				},
				Usage: types.UsageVector{"size_gb": size},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *BlockStorageProbe) images(ctx context.Context, client awsclients.EC2API) ([]types.ResourceRecord, error) {
	out, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{Owners: []string{"self"}})
	if err != nil {
		return nil, err
	}
	var records []types.ResourceRecord
	for _, image := range out.Images {
		// AMI storage bills for the backing snapshots.
		var size float64
		for _, mapping := range image.BlockDeviceMappings {
			if mapping.Ebs != nil {
				size += float64(aws.ToInt32(mapping.Ebs.VolumeSize))
			}
		}
		records = append(records, types.ResourceRecord{
			ServiceID:    "ami_storage",
			ResourceID:   aws.ToString(image.ImageId),
			ResourceName: aws.ToString(image.Name),
			ServiceType:  types.CategoryStorage,
			Count:        1,
			Details: map[string]any{
				"size_gb": size,
				"state":   string(image.State),
			},
			Usage: types.UsageVector{"size_gb": size},
		})
	}
	return records, nil
}
