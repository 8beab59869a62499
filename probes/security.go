package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	wafv2types "github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// SecurityProbe lists GuardDuty detectors, KMS keys and WAFv2 web ACLs.
type SecurityProbe struct{}

func (p *SecurityProbe) Name() string { return "security" }
func (p *SecurityProbe) Global() bool { return false }

func (p *SecurityProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.detectors(ctx, clients.GuardDuty)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.keys(ctx, clients.KMS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.webACLs(ctx, clients.WAFV2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *SecurityProbe) detectors(ctx context.Context, client awsclients.GuardDutyAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListDetectors(ctx, &guardduty.ListDetectorsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, id := range out.DetectorIds {
			records = append(records, types.ResourceRecord{
				ServiceID:    "guardduty_detector",
				ResourceID:   id,
				ResourceName: id,
				ServiceType:  types.CategorySecurity,
				Count:        1,
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *SecurityProbe) keys(ctx context.Context, client awsclients.KMSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error
	var marker *string
	for {
		out, err := client.ListKeys(ctx, &kms.ListKeysInput{Marker: marker})
		if err != nil {
			errs = append(errs, err)
			break
		}
		for _, key := range out.Keys {
			keyID := aws.ToString(key.KeyId)
			rec := types.ResourceRecord{
				ServiceID:    "kms_key",
				ResourceID:   keyID,
				ResourceName: keyID,
				ServiceType:  types.CategoryIdentity,
				Count:        1,
				Usage:        types.UsageVector{},
			}

			desc, err := client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: key.KeyId})
			if err != nil {
				errs = append(errs, err)
			} else if desc.KeyMetadata != nil {
				manager := string(desc.KeyMetadata.KeyManager)
				rec.Details = map[string]any{
					"key_manager": manager,
					"enabled":     desc.KeyMetadata.Enabled,
				}
				rec.Usage["key_manager"] = manager
			}
			records = append(records, rec)
		}
		if !out.Truncated || CapHit(ctx, len(records)) {
			break
		}
		marker = out.NextMarker
	}
	return records, errors.Join(errs...)
}

func (p *SecurityProbe) webACLs(ctx context.Context, client awsclients.WAFV2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.ListWebACLs(ctx, &wafv2.ListWebACLsInput{
			Scope:      wafv2types.ScopeRegional,
			NextMarker: marker,
		})
		if err != nil {
			return records, err
		}
		for _, acl := range out.WebACLs {
			records = append(records, types.ResourceRecord{
				ServiceID:    "wafv2_web_acl",
				ResourceID:   aws.ToString(acl.Id),
				ResourceName: aws.ToString(acl.Name),
				ServiceType:  types.CategorySecurity,
				Count:        1,
			})
		}
		marker = out.NextMarker
		if marker == nil || len(out.WebACLs) == 0 || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
