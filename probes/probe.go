// Package probes holds one prober per service family. A probe lists what
// exists in one region and reports each resource's usage vector; it never
// prices anything itself.
package probes

import (
	"context"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/types"
)

// Probe discovers resources of one service family in one region.
//
// Discover may return records alongside an error; the orchestrator keeps
// the records and marks the probe partial. Probes leave Region,
// DiscoveredAt and cost fields blank; the normalizer stamps those.
type Probe interface {
	// Name identifies the probe in outcomes and logs.
	Name() string
	// Global reports whether the family has a single global endpoint.
	// Global probes run once per account, not once per region.
	Global() bool
	Discover(ctx context.Context, clients *awsclients.ClientSet) ([]types.ResourceRecord, error)
}

type capKey struct{}

// WithItemCap bounds how many records one probe pages in before it stops
// listing. The orchestrator sets it from configuration; zero means
// unbounded.
func WithItemCap(ctx context.Context, limit int) context.Context {
	return context.WithValue(ctx, capKey{}, limit)
}

// CapHit reports whether a probe holding n records should stop paging.
// Probes check it after each page against what they have accumulated.
func CapHit(ctx context.Context, n int) bool {
	limit, ok := ctx.Value(capKey{}).(int)
	return ok && limit > 0 && n >= limit
}

// serviceIDs maps each probe to the service ids it can emit. The
// orchestrator uses it to skip probes a service filter rules out
// entirely. Prefix ids (ebs_volume_) stand in for their variants.
var serviceIDs = map[string][]string{
	"compute": {
		"ec2_instance", "dedicated_host", "placement_group",
		"capacity_reservation", "ec2_launch_template", "autoscaling_group",
	},
	"block_storage": {"ebs_volume_", "ebs_snapshot", "ami_storage"},
	"network": {
		"nat_gateway", "elastic_ip", "vpc_endpoint", "vpc", "subnet",
		"internet_gateway", "security_group", "route_table",
	},
	"object_storage":  {"s3_bucket"},
	"file_store":      {"efs_filesystem", "ecr_repository"},
	"database":        {"rds_db_instance", "rds_db_cluster", "rds_db_snapshot"},
	"table_store":     {"dynamodb_table", "dax_cluster"},
	"cache_warehouse": {"elasticache_cluster", "redshift_cluster"},
	"load_balancer":   {"load_balancer", "target_group"},
	"serverless":      {"lambda_execution", "sfn_state_machine"},
	"container":       {"ecs_cluster", "ecs_fargate_task", "eks_control_plane", "eks_nodegroup"},
	"messaging":       {"sns_topic", "sqs_queue", "eventbridge_bus", "eventbridge_rule"},
	"edge":            {"route53_hosted_zone", "cloudfront_distribution", "shield_advanced"},
	"security":        {"guardduty_detector", "kms_key", "wafv2_web_acl"},
	"observability":   {"cloudwatch_alarm", "cloudwatch_dashboard", "cloudwatch_log_group"},
	"ops":             {"ssm_parameter", "cloudformation_stack", "cloudformation_stack_set"},
	"migration":       {"dms_replication_instance"},
	"audit":           {"cloudtrail_trail"},
	"api_front":       {"apigw_rest_api", "apigw_http_api"},
}

// ServiceIDs reports the service ids the named probe can emit. An
// unknown name returns nil, which callers treat as "could emit anything".
func ServiceIDs(probeName string) []string {
	return serviceIDs[probeName]
}

// All returns the full probe fleet in a stable order.
func All() []Probe {
	return []Probe{
		&ComputeProbe{},
		&BlockStorageProbe{},
		&NetworkProbe{},
		&ObjectStorageProbe{},
		&FileStoreProbe{},
		&DatabaseProbe{},
		&TableStoreProbe{},
		&CacheWarehouseProbe{},
		&LoadBalancerProbe{},
		&ServerlessProbe{},
		&ContainerProbe{},
		&MessagingProbe{},
		&EdgeProbe{},
		&SecurityProbe{},
		&ObservabilityProbe{},
		&OpsProbe{},
		&MigrationProbe{},
		&AuditProbe{},
		&APIFrontProbe{},
	}
}
