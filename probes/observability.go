package probes

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// ObservabilityProbe lists CloudWatch alarms, dashboards and log groups.
type ObservabilityProbe struct{}

func (p *ObservabilityProbe) Name() string { return "observability" }
func (p *ObservabilityProbe) Global() bool { return false }

func (p *ObservabilityProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.alarms(ctx, clients.CloudWatch)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.dashboards(ctx, clients.CloudWatch)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.logGroups(ctx, clients.CloudWatchLogs)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *ObservabilityProbe) alarms(ctx context.Context, client awsclients.CloudWatchAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, alarm := range out.MetricAlarms {
			records = append(records, types.ResourceRecord{
				ServiceID:    "cloudwatch_alarm",
				ResourceID:   aws.ToString(alarm.AlarmArn),
				ResourceName: aws.ToString(alarm.AlarmName),
				ServiceType:  types.CategoryMonitoring,
				Count:        1,
				Details: map[string]any{
					"state":  string(alarm.StateValue),
					"metric": aws.ToString(alarm.MetricName),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ObservabilityProbe) dashboards(ctx context.Context, client awsclients.CloudWatchAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListDashboards(ctx, &cloudwatch.ListDashboardsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, dash := range out.DashboardEntries {
			records = append(records, types.ResourceRecord{
				ServiceID:    "cloudwatch_dashboard",
				ResourceID:   aws.ToString(dash.DashboardArn),
				ResourceName: aws.ToString(dash.DashboardName),
				ServiceType:  types.CategoryMonitoring,
				Count:        1,
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *ObservabilityProbe) logGroups(ctx context.Context, client awsclients.CloudWatchLogsAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, group := range out.LogGroups {
			storedGB := float64(aws.ToInt64(group.StoredBytes)) / bytesPerGB
			records = append(records, types.ResourceRecord{
				ServiceID:    "cloudwatch_log_group",
				ResourceID:   aws.ToString(group.LogGroupName),
				ResourceName: aws.ToString(group.LogGroupName),
				ServiceType:  types.CategoryMonitoring,
				Count:        1,
				Details: map[string]any{
					"stored_gb":      storedGB,
					"retention_days": aws.ToInt32(group.RetentionInDays),
				},
				Usage: types.UsageVector{"stored_gb": storedGB},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}
