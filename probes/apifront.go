package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// APIFrontProbe lists REST APIs (API Gateway v1) and HTTP/WebSocket APIs
// (API Gateway v2).
type APIFrontProbe struct{}

func (p *APIFrontProbe) Name() string { return "api_front" }
func (p *APIFrontProbe) Global() bool { return false }

func (p *APIFrontProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.restAPIs(ctx, clients.APIGateway)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.httpAPIs(ctx, clients.APIGatewayV2)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *APIFrontProbe) restAPIs(ctx context.Context, client awsclients.APIGatewayAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var position *string
	for {
		out, err := client.GetRestApis(ctx, &apigateway.GetRestApisInput{Position: position})
		if err != nil {
			return records, err
		}
		for _, api := range out.Items {
			records = append(records, types.ResourceRecord{
				ServiceID:    "apigw_rest_api",
				ResourceID:   aws.ToString(api.Id),
				ResourceName: aws.ToString(api.Name),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
			})
		}
		position = out.Position
		if position == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *APIFrontProbe) httpAPIs(ctx context.Context, client awsclients.APIGatewayV2API) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.GetApis(ctx, &apigatewayv2.GetApisInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, api := range out.Items {
			records = append(records, types.ResourceRecord{
				ServiceID:    "apigw_http_api",
				ResourceID:   aws.ToString(api.ApiId),
				ResourceName: aws.ToString(api.Name),
				ServiceType:  types.CategoryNetworking,
				Count:        1,
				Details: map[string]any{
					"protocol": string(api.ProtocolType),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
