package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/types"
)

type mockSTS struct {
	lastInput *sts.AssumeRoleInput
	output    *sts.AssumeRoleOutput
	err       error
}

func (m *mockSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	m.lastInput = params
	return m.output, m.err
}

func TestAcquireReturnsShortLivedCredentials(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC()
	mock := &mockSTS{
		output: &sts.AssumeRoleOutput{
			Credentials: &ststypes.Credentials{
				AccessKeyId:     aws.String("AKIATEST"),
				SecretAccessKey: aws.String("secret"),
				SessionToken:    aws.String("token"),
				Expiration:      &expires,
			},
		},
	}

	b := NewWithClient(mock)
	creds, err := b.Acquire(context.Background(), "arn:aws:iam::123456789012:role/kartta", "ext-42")
	require.NoError(t, err)

	assert.Equal(t, "AKIATEST", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
	assert.Equal(t, expires, creds.ExpiresAt)

	require.NotNil(t, mock.lastInput)
	assert.Equal(t, "arn:aws:iam::123456789012:role/kartta", aws.ToString(mock.lastInput.RoleArn))
	assert.Equal(t, "ext-42", aws.ToString(mock.lastInput.ExternalId))
	assert.Equal(t, sessionName, aws.ToString(mock.lastInput.RoleSessionName))
}

func TestAcquireRefusalIsCredentialsError(t *testing.T) {
	mock := &mockSTS{err: errors.New("AccessDenied: not authorized to assume role")}

	b := NewWithClient(mock)
	_, err := b.Acquire(context.Background(), "arn:aws:iam::123456789012:role/kartta", "ext-42")
	require.Error(t, err)

	var credErr *types.CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "arn:aws:iam::123456789012:role/kartta", credErr.RoleRef)
}

func TestAcquireEmptyCredentialsIsCredentialsError(t *testing.T) {
	mock := &mockSTS{output: &sts.AssumeRoleOutput{}}

	b := NewWithClient(mock)
	_, err := b.Acquire(context.Background(), "arn:aws:iam::123456789012:role/kartta", "ext-42")

	var credErr *types.CredentialsError
	require.ErrorAs(t, err, &credErr)
}

func TestCredentialsProvider(t *testing.T) {
	creds := Credentials{
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		ExpiresAt:       time.Now().Add(30 * time.Minute),
	}

	got, err := creds.Provider().Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIATEST", got.AccessKeyID)
	assert.True(t, got.CanExpire)
}
