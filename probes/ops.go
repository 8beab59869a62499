package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// OpsProbe lists SSM parameters and CloudFormation stacks and stack sets.
type OpsProbe struct{}

func (p *OpsProbe) Name() string { return "ops" }
func (p *OpsProbe) Global() bool { return false }

func (p *OpsProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.parameters(ctx, clients.SSM)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.stacks(ctx, clients.CloudFormation)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.stackSets(ctx, clients.CloudFormation)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *OpsProbe) parameters(ctx context.Context, client awsclients.SSMAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeParameters(ctx, &ssm.DescribeParametersInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, param := range out.Parameters {
			tier := string(param.Tier)
			records = append(records, types.ResourceRecord{
				ServiceID:    "ssm_parameter",
				ResourceID:   aws.ToString(param.Name),
				ResourceName: aws.ToString(param.Name),
				ServiceType:  types.CategoryManagement,
				Count:        1,
				Details: map[string]any{
					"type": string(param.Type),
					"tier": tier,
				},
				Usage: types.UsageVector{"tier": tier},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *OpsProbe) stacks(ctx context.Context, client awsclients.CloudFormationAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, stack := range out.Stacks {
			if stack.StackStatus == cfntypes.StackStatusDeleteComplete {
				continue
			}
			records = append(records, types.ResourceRecord{
				ServiceID:    "cloudformation_stack",
				ResourceID:   aws.ToString(stack.StackId),
				ResourceName: aws.ToString(stack.StackName),
				ServiceType:  types.CategoryManagement,
				Count:        1,
				Details: map[string]any{
					"status": string(stack.StackStatus),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *OpsProbe) stackSets(ctx context.Context, client awsclients.CloudFormationAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListStackSets(ctx, &cloudformation.ListStackSetsInput{
			NextToken: token,
			Status:    cfntypes.StackSetStatusActive,
		})
		if err != nil {
			return records, err
		}
		for _, set := range out.Summaries {
			records = append(records, types.ResourceRecord{
				ServiceID:    "cloudformation_stack_set",
				ResourceID:   aws.ToString(set.StackSetId),
				ResourceName: aws.ToString(set.StackSetName),
				ServiceType:  types.CategoryManagement,
				Count:        1,
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
