package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// TableStoreProbe lists DynamoDB tables with their provisioned capacity.
type TableStoreProbe struct{}

func (p *TableStoreProbe) Name() string { return "table_store" }
func (p *TableStoreProbe) Global() bool { return false }

func (p *TableStoreProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	var start *string
	for {
		out, err := clients.DynamoDB.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: start})
		if err != nil {
			errs = append(errs, err)
			break
		}
		for _, name := range out.TableNames {
			rec, err := p.describe(ctx, clients.DynamoDB, name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			records = append(records, rec)
		}
		start = out.LastEvaluatedTableName
		if start == nil || CapHit(ctx, len(records)) {
			break
		}
	}

	return records, errors.Join(errs...)
}

func (p *TableStoreProbe) describe(ctx context.Context, client awsclients.DynamoDBAPI, name string) (types.ResourceRecord, error) {
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return types.ResourceRecord{}, err
	}

	table := out.Table
	rec := types.ResourceRecord{
		ServiceID:    "dynamodb_table",
		ResourceID:   name,
		ResourceName: name,
		ServiceType:  types.CategoryDatabase,
		Count:        1,
		Details:      map[string]any{},
		Usage:        types.UsageVector{},
	}
	if table == nil {
		return rec, nil
	}

	sizeGB := float64(aws.ToInt64(table.TableSizeBytes)) / bytesPerGB
	rec.Details["size_gb"] = sizeGB
	rec.Details["item_count"] = aws.ToInt64(table.ItemCount)
	rec.Usage["size_gb"] = sizeGB

	billing := "PROVISIONED"
	if table.BillingModeSummary != nil && table.BillingModeSummary.BillingMode == ddbtypes.BillingModePayPerRequest {
		billing = "PAY_PER_REQUEST"
	}
	rec.Details["billing_mode"] = billing

	// On-demand tables bill by request; only provisioned capacity has a
	// steady hourly price we can project.
	if billing == "PROVISIONED" && table.ProvisionedThroughput != nil {
		rcu := float64(aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits))
		wcu := float64(aws.ToInt64(table.ProvisionedThroughput.WriteCapacityUnits))
		rec.Details["rcu"] = rcu
		rec.Details["wcu"] = wcu
		rec.Usage["rcu"] = rcu
		rec.Usage["wcu"] = wcu
	}
	return rec, nil
}
