package probes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// ObjectStorageProbe lists S3 buckets. Bucket listing is account-wide, so
// the probe runs once per run; each record is pinned to the bucket's own
// region via GetBucketLocation.
type ObjectStorageProbe struct{}

func (p *ObjectStorageProbe) Name() string { return "object_storage" }
func (p *ObjectStorageProbe) Global() bool { return true }

func (p *ObjectStorageProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	out, err := clients.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}

	var records []types.ResourceRecord
	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)
		rec := types.ResourceRecord{
			ServiceID:    "s3_bucket",
			ResourceID:   name,
			ResourceName: name,
			ServiceType:  types.CategoryStorage,
			Count:        1,
			Details:      map[string]any{},
		}
		if bucket.CreationDate != nil {
			rec.Details["created_at"] = bucket.CreationDate.UTC()
		}

		// Location lookups can be refused per bucket without sinking
		// the listing; an unlocatable bucket stays on the global row.
		loc, err := clients.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: bucket.Name})
		if err == nil {
			region := string(loc.LocationConstraint)
			if region == "" {
				region = "us-east-1"
			}
			rec.Region = region
		}

		p.configFlags(ctx, clients.S3, bucket.Name, rec.Details)
		records = append(records, rec)
	}
	return records, nil
}

// configFlags annotates a bucket with its versioning, encryption and
// lifecycle state. Each lookup is best effort: a refusal or a missing
// configuration leaves that flag out rather than dropping the bucket.
func (p *ObjectStorageProbe) configFlags(ctx context.Context, client awsclients.S3API, bucket *string, details map[string]any) {
	if ver, err := client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: bucket}); err == nil {
		details["versioning"] = string(ver.Status) == "Enabled"
	}
	if enc, err := client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: bucket}); err == nil {
		encrypted := false
		var algorithm string
		if enc.ServerSideEncryptionConfiguration != nil && len(enc.ServerSideEncryptionConfiguration.Rules) > 0 {
			rule := enc.ServerSideEncryptionConfiguration.Rules[0]
			if rule.ApplyServerSideEncryptionByDefault != nil {
				encrypted = true
				algorithm = string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm)
			}
		}
		details["encrypted"] = encrypted
		if algorithm != "" {
			details["encryption_algorithm"] = algorithm
		}
	}
	if lc, err := client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: bucket}); err == nil {
		details["lifecycle_rules"] = len(lc.Rules)
	}
}
