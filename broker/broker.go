// Package broker exchanges a stored role reference plus external correlator
// for short-lived credentials scoped to one tenant account.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/karttaio/kartta/telemetry"
	"github.com/karttaio/kartta/types"
)

const sessionName = "KarttaDiscovery"

// Credentials are the short-lived keys for one discovery run. They are
// never persisted and never reused across accounts.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ExpiresAt       time.Time
}

// Provider converts the credentials into an SDK credentials provider.
func (c Credentials) Provider() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			SessionToken:    c.SessionToken,
			CanExpire:       true,
			Expires:         c.ExpiresAt,
		}, nil
	})
}

// AssumeRoleAPI is the subset of STS used by the broker.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Broker acquires credentials via STS AssumeRole with an external id.
type Broker struct {
	client AssumeRoleAPI
	logger *telemetry.Logger
}

// New builds a broker on the platform's own credential chain.
func New(ctx context.Context) (*Broker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform AWS config: %w", err)
	}
	return NewWithClient(sts.NewFromConfig(cfg)), nil
}

// NewWithClient builds a broker on an existing STS client. Used by tests.
func NewWithClient(client AssumeRoleAPI) *Broker {
	return &Broker{
		client: client,
		logger: telemetry.NewLogger("broker"),
	}
}

// Acquire assumes roleRef with the given external correlator and returns
// short-lived credentials. Any refusal is a CredentialsError, which aborts
// the whole discovery run.
func (b *Broker) Acquire(ctx context.Context, roleRef, externalID string) (Credentials, error) {
	out, err := b.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleRef),
		RoleSessionName: aws.String(sessionName),
		ExternalId:      aws.String(externalID),
	})
	if err != nil {
		b.logger.WithContext(ctx).Error().
			Err(err).
			Str("role_ref", roleRef).
			Msg("assume role refused")
		return Credentials{}, &types.CredentialsError{RoleRef: roleRef, Err: err}
	}

	c := out.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretAccessKey == nil {
		return Credentials{}, &types.CredentialsError{
			RoleRef: roleRef,
			Err:     fmt.Errorf("assume role returned no credentials"),
		}
	}

	creds := Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretAccessKey),
		SessionToken:    aws.ToString(c.SessionToken),
	}
	if c.Expiration != nil {
		creds.ExpiresAt = *c.Expiration
	}

	b.logger.WithContext(ctx).Debug().
		Str("role_ref", roleRef).
		Time("expires_at", creds.ExpiresAt).
		Msg("credentials acquired")

	return creds, nil
}
