package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/efs"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

const bytesPerGB = 1024 * 1024 * 1024

// FileStoreProbe lists EFS file systems and ECR repositories.
type FileStoreProbe struct{}

func (p *FileStoreProbe) Name() string { return "file_store" }
func (p *FileStoreProbe) Global() bool { return false }

func (p *FileStoreProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.fileSystems(ctx, clients.EFS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.repositories(ctx, clients.ECR)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *FileStoreProbe) fileSystems(ctx context.Context, client awsclients.EFSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, fs := range out.FileSystems {
			var sizeGB float64
			if fs.SizeInBytes != nil {
				sizeGB = float64(fs.SizeInBytes.Value) / bytesPerGB
			}
			records = append(records, types.ResourceRecord{
				ServiceID:    "efs_filesystem",
				ResourceID:   aws.ToString(fs.FileSystemId),
				ResourceName: aws.ToString(fs.Name),
				ServiceType:  types.CategoryStorage,
				Count:        1,
				Details: map[string]any{
					"size_gb": sizeGB,
					"state":   string(fs.LifeCycleState),
				},
				Usage: types.UsageVector{"size_gb": sizeGB},
			})
		}
		marker = out.NextMarker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *FileStoreProbe) repositories(ctx context.Context, client awsclients.ECRAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, repo := range out.Repositories {
			records = append(records, types.ResourceRecord{
				ServiceID:    "ecr_repository",
				ResourceID:   aws.ToString(repo.RepositoryName),
				ResourceName: aws.ToString(repo.RepositoryName),
				ServiceType:  types.CategoryStorage,
				Count:        1,
				Details: map[string]any{
					"uri": aws.ToString(repo.RepositoryUri),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
