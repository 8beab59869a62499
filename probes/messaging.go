package probes

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// MessagingProbe lists SNS topics, SQS queues, event buses and rules.
type MessagingProbe struct{}

func (p *MessagingProbe) Name() string { return "messaging" }
func (p *MessagingProbe) Global() bool { return false }

func (p *MessagingProbe) Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var errs []error

	recs, err := p.topics(ctx, clients.SNS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.queues(ctx, clients.SQS)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.buses(ctx, clients.EventBridge)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	recs, err = p.rules(ctx, clients.EventBridge)
	records = append(records, recs...)
	if err != nil {
		errs = append(errs, err)
	}

	return records, errors.Join(errs...)
}

func (p *MessagingProbe) topics(ctx context.Context, client awsclients.SNSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListTopics(ctx, &sns.ListTopicsInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, topic := range out.Topics {
			arn := aws.ToString(topic.TopicArn)
			records = append(records, types.ResourceRecord{
				ServiceID:    "sns_topic",
				ResourceID:   arn,
				ResourceName: lastSegment(arn, ":"),
				ServiceType:  types.CategoryIntegration,
				Count:        1,
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *MessagingProbe) queues(ctx context.Context, client awsclients.SQSAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListQueues(ctx, &sqs.ListQueuesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, url := range out.QueueUrls {
			records = append(records, types.ResourceRecord{
				ServiceID:    "sqs_queue",
				ResourceID:   url,
				ResourceName: lastSegment(url, "/"),
				ServiceType:  types.CategoryIntegration,
				Count:        1,
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *MessagingProbe) buses(ctx context.Context, client awsclients.EventBridgeAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListEventBuses(ctx, &eventbridge.ListEventBusesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, bus := range out.EventBuses {
			records = append(records, types.ResourceRecord{
				ServiceID:    "eventbridge_bus",
				ResourceID:   aws.ToString(bus.Arn),
				ResourceName: aws.ToString(bus.Name),
				ServiceType:  types.CategoryIntegration,
				Count:        1,
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func (p *MessagingProbe) rules(ctx context.Context, client awsclients.EventBridgeAPI) ([]types.ResourceRecord, error) {
	var records []types.ResourceRecord
	var token *string
	for {
		out, err := client.ListRules(ctx, &eventbridge.ListRulesInput{NextToken: token})
		if err != nil {
			return records, err
		}
		for _, rule := range out.Rules {
			records = append(records, types.ResourceRecord{
				ServiceID:    "eventbridge_rule",
				ResourceID:   aws.ToString(rule.Arn),
				ResourceName: aws.ToString(rule.Name),
				ServiceType:  types.CategoryIntegration,
				Count:        1,
				Details: map[string]any{
					"state": string(rule.State),
				},
			})
		}
		token = out.NextToken
		if token == nil || CapHit(ctx, len(records)) {
			return records, nil
		}
	}
}

func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+1:]
	}
	return s
}
