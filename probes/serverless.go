package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// Monthly usage assumed for a function when no metering data is at hand:
// one million invocations at 200ms each, scaled by the memory size.
const (
	assumedInvocationsPerMonth = 1_000_000
	assumedDurationMS          = 200
)

// ServerlessProbe lists Lambda functions and Step Functions state
// machines. The Lambda usage vector carries an assumed invocation profile
// scaled by the function's memory size.
type ServerlessProbe struct{}

func (p *ServerlessProbe) Name() string { return "serverless" }
func (p *ServerlessProbe) Global() bool { return false }

func (p *ServerlessProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.functions(ctx, clients.Lambda)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.stateMachines(ctx, clients.SFN)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *ServerlessProbe) functions(ctx context.Context, client awsclients.LambdaAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var marker *string
	for {
		out, err := client.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		if err != nil {
			return records, err
		}
		for _, fn := range out.Functions {
			memoryMB := float64(aws.ToInt32(fn.MemorySize))
			if memoryMB == 0 {
				memoryMB = 128
			}
			arch := "x86_64"
			for _, a := range fn.Architectures {
				if a == lambdatypes.ArchitectureArm64 {
					arch = "arm64"
				}
			}

			gbSeconds := (memoryMB / 1024) * (assumedDurationMS / 1000.0) * assumedInvocationsPerMonth

			records = append(records, types.ResourceRecord{
				ServiceID:    "lambda_execution",
				ResourceID:   aws.ToString(fn.FunctionName),
				ResourceName: aws.ToString(fn.FunctionName),
				ServiceType:  types.CategoryCompute,
				Count:        1,
				Details: map[string]any{
					"runtime":      string(fn.Runtime),
					"memory_mb":    memoryMB,
					"architecture": arch,
				},
				Usage: types.UsageVector{
					"requests_per_month":   float64(assumedInvocationsPerMonth),
					"gb_seconds_per_month": gbSeconds,
					"architecture":         arch,
				},
			})
		}
		marker = out.NextMarker
		if marker == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ServerlessProbe) stateMachines(ctx context.Context, client awsclients.SFNAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListStateMachines(ctx, &sfn.ListStateMachinesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, sm := range out.StateMachines {
			records = append(records, types.ResourceRecord{
				ServiceID:    "sfn_state_machine",
				ResourceID:   aws.ToString(sm.StateMachineArn),
				ResourceName: aws.ToString(sm.Name),
				ServiceType:  types.CategoryIntegration,
				Count:        1,
				Details: map[string]any{
					"type": string(sm.Type),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
