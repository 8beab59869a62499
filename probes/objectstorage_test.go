package probes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/awsclients"
)

type mockS3 struct {
	buckets     []string
	locations   map[string]s3types.BucketLocationConstraint
	locationErr map[string]error
	listErr     error
	versioned   map[string]bool
	encrypted   map[string]bool
	lifecycle   map[string]int
	configErr   error
}

func (m *mockS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := &s3.ListBucketsOutput{}
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, name := range m.buckets {
		out.Buckets = append(out.Buckets, s3types.Bucket{
			Name:         aws.String(name),
			CreationDate: &created,
		})
	}
	return out, nil
}

func (m *mockS3) GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	name := aws.ToString(params.Bucket)
	if err := m.locationErr[name]; err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: m.locations[name]}, nil
}

func (m *mockS3) GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	if m.configErr != nil {
		return nil, m.configErr
	}
	status := s3types.BucketVersioningStatusSuspended
	if m.versioned[aws.ToString(params.Bucket)] {
		status = s3types.BucketVersioningStatusEnabled
	}
	return &s3.GetBucketVersioningOutput{Status: status}, nil
}

func (m *mockS3) GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	if m.configErr != nil {
		return nil, m.configErr
	}
	if !m.encrypted[aws.ToString(params.Bucket)] {
		return nil, errors.New("ServerSideEncryptionConfigurationNotFoundError")
	}
	return &s3.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
					SSEAlgorithm: s3types.ServerSideEncryptionAes256,
				},
			}},
		},
	}, nil
}

func (m *mockS3) GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error) {
	if m.configErr != nil {
		return nil, m.configErr
	}
	n, ok := m.lifecycle[aws.ToString(params.Bucket)]
	if !ok {
		return nil, errors.New("NoSuchLifecycleConfiguration")
	}
	out := &s3.GetBucketLifecycleConfigurationOutput{}
	for i := 0; i < n; i++ {
		out.Rules = append(out.Rules, s3types.LifecycleRule{Status: s3types.ExpirationStatusEnabled})
	}
	return out, nil
}

func TestObjectStorageProbePinsBucketRegions(t *testing.T) {
	clients := &awsclients.ClientSet{S3: &mockS3{
		buckets: []string{"logs", "assets"},
		locations: map[string]s3types.BucketLocationConstraint{
			"logs":   s3types.BucketLocationConstraint("eu-north-1"),
			"assets": "", // empty constraint means us-east-1
		},
	}}

	probe := &ObjectStorageProbe{}
	records, err := probe.Discover(context.Background(), clients)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "eu-north-1", records[0].Region)
	assert.Equal(t, "us-east-1", records[1].Region)
	assert.Equal(t, "s3_bucket", records[0].ServiceID)
}

func TestObjectStorageProbeSurvivesLocationRefusal(t *testing.T) {
	clients := &awsclients.ClientSet{S3: &mockS3{
		buckets:     []string{"locked"},
		locationErr: map[string]error{"locked": errors.New("AccessDenied")},
	}}

	probe := &ObjectStorageProbe{}
	records, err := probe.Discover(context.Background(), clients)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// unlocatable bucket keeps the region blank for the normalizer
	assert.Empty(t, records[0].Region)
}

func TestObjectStorageProbeIsGlobal(t *testing.T) {
	assert.True(t, (&ObjectStorageProbe{}).Global())
	assert.False(t, (&ComputeProbe{}).Global())
}

func TestObjectStorageProbeReportsBucketConfig(t *testing.T) {
	clients := &awsclients.ClientSet{S3: &mockS3{
		buckets:   []string{"hardened", "plain"},
		versioned: map[string]bool{"hardened": true},
		encrypted: map[string]bool{"hardened": true},
		lifecycle: map[string]int{"hardened": 2},
	}}

	probe := &ObjectStorageProbe{}
	records, err := probe.Discover(context.Background(), clients)
	require.NoError(t, err)
	require.Len(t, records, 2)

	hardened := records[0].Details
	assert.Equal(t, true, hardened["versioning"])
	assert.Equal(t, true, hardened["encrypted"])
	assert.Equal(t, "AES256", hardened["encryption_algorithm"])
	assert.Equal(t, 2, hardened["lifecycle_rules"])

	plain := records[1].Details
	assert.Equal(t, false, plain["versioning"])
	assert.NotContains(t, plain, "encrypted")
	assert.NotContains(t, plain, "lifecycle_rules")
}

func TestObjectStorageProbeSurvivesConfigRefusal(t *testing.T) {
	clients := &awsclients.ClientSet{S3: &mockS3{
		buckets:   []string{"locked"},
		configErr: errors.New("AccessDenied"),
	}}

	probe := &ObjectStorageProbe{}
	records, err := probe.Discover(context.Background(), clients)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.NotContains(t, records[0].Details, "versioning")
	assert.NotContains(t, records[0].Details, "encrypted")
}
