// Package catalog is the single pricing authority. Probes report what a
// resource IS (its usage vector); the catalog alone decides what it COSTS.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/karttaio/kartta/types"
)

// Catalog estimates monthly list-price cost for a discovered resource.
// All arithmetic runs on decimals; callers round once at the edge.
type Catalog struct {
	rates Rates
	hours decimal.Decimal
}

// New builds a catalog over the given price table.
func New(rates Rates) *Catalog {
	return &Catalog{
		rates: rates,
		hours: decimal.NewFromFloat(rates.HoursPerMonth),
	}
}

// Load builds a catalog from the defaults plus an optional YAML override.
func Load(path string) (*Catalog, error) {
	rates, err := LoadRates(path)
	if err != nil {
		return nil, err
	}
	return New(rates), nil
}

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// mapRate looks up key in table, falling back to def.
func mapRate(table map[string]float64, key string, def float64) decimal.Decimal {
	if rate, ok := table[key]; ok {
		return d(rate)
	}
	return d(def)
}

// Estimate returns the monthly cost for one unit of the given service id.
// The second return is false when the id is unknown to the catalog; the
// caller then records the resource at 0.00 and flags it unpriced.
func (c *Catalog) Estimate(serviceID string, usage types.UsageVector) (decimal.Decimal, bool) {
	if strings.HasPrefix(serviceID, "ebs_volume_") {
		return c.ebsVolume(strings.TrimPrefix(serviceID, "ebs_volume_"), usage), true
	}

	switch serviceID {
	case "ec2_instance":
		return c.ec2Instance(usage), true
	case "ebs_snapshot":
		return d(c.rates.SnapshotGBMonth).Mul(d(usage.Float("size_gb", 0))), true
	case "ami_storage":
		return d(c.rates.AMIStorageGBMonth).Mul(d(usage.Float("size_gb", 0))), true
	case "dedicated_host":
		family := usage.Str("instance_family")
		return c.monthly(mapRate(c.rates.DedicatedHostHourly, family, c.rates.DedicatedHostDefault)), true
	case "capacity_reservation":
		rate := mapRate(c.rates.EC2Hourly, usage.Str("instance_type"), c.rates.EC2HourlyDefault)
		return c.monthly(rate).Mul(d(usage.Float("instance_count", 1))), true
	case "elastic_ip":
		if usage.Bool("attached") {
			return decimal.Zero, true
		}
		return c.monthly(d(c.rates.ElasticIPHourly)), true
	case "nat_gateway":
		return c.monthly(d(c.rates.NATGatewayHourly)), true
	case "vpc_endpoint":
		if usage.Str("endpoint_type") == "Gateway" {
			return decimal.Zero, true
		}
		return c.monthly(d(c.rates.VPCEndpointHourly)), true
	case "placement_group", "ec2_launch_template", "autoscaling_group":
		return decimal.Zero, true

	case "s3_bucket":
		return d(c.rates.S3StandardGBMonth).Mul(d(usage.Float("size_gb", 0))), true
	case "efs_filesystem":
		return d(c.rates.EFSGBMonth).Mul(d(usage.Float("size_gb", 0))), true
	case "ecr_repository":
		return d(c.rates.ECRGBMonth).Mul(d(usage.Float("size_gb", 0))), true

	case "rds_db_instance":
		return c.rdsInstance(usage), true
	case "rds_db_cluster":
		return c.monthly(d(c.rates.AuroraClusterHourly)), true
	case "rds_db_snapshot":
		return d(c.rates.RDSSnapshotGBMonth).Mul(d(usage.Float("size_gb", 0))), true
	case "dynamodb_table":
		return c.dynamoTable(usage), true
	case "dax_cluster":
		return c.monthly(d(c.rates.DAXNodeHourly)).Mul(d(usage.Float("node_count", 1))), true
	case "elasticache_cluster":
		rate := mapRate(c.rates.ElastiCacheHourly, usage.Str("node_type"), c.rates.ElastiCacheDefault)
		return c.monthly(rate).Mul(d(usage.Float("node_count", 1))), true
	case "redshift_cluster":
		rate := mapRate(c.rates.RedshiftHourly, usage.Str("node_type"), c.rates.RedshiftDefault)
		return c.monthly(rate).Mul(d(usage.Float("node_count", 1))), true

	case "load_balancer":
		return c.loadBalancer(usage), true
	case "target_group":
		return decimal.Zero, true

	case "lambda_execution":
		return c.lambdaExecution(usage), true
	case "sfn_state_machine":
		per := d(c.rates.SFNPerThousandTransitions).Div(d(1000))
		return per.Mul(d(usage.Float("transitions_per_month", 0))), true

	case "ecs_cluster":
		return decimal.Zero, true
	case "ecs_fargate_task":
		return c.fargateTask(usage), true
	case "eks_control_plane":
		return c.monthly(d(c.rates.EKSControlPlaneHourly)), true
	case "eks_nodegroup":
		rate := mapRate(c.rates.EC2Hourly, usage.Str("instance_type"), c.rates.EC2HourlyDefault)
		return c.monthly(rate).Mul(d(usage.Float("desired_count", 1))), true

	case "sns_topic", "sqs_queue", "eventbridge_bus", "eventbridge_rule":
		return decimal.Zero, true

	case "route53_hosted_zone":
		return d(c.rates.HostedZoneMonthly), true
	case "cloudfront_distribution":
		return decimal.Zero, true

	case "guardduty_detector":
		return decimal.Zero, true
	case "kms_key":
		if usage.Str("key_manager") == "AWS" {
			return decimal.Zero, true
		}
		return d(c.rates.KMSKeyMonthly), true
	case "wafv2_web_acl":
		rules := d(c.rates.WAFRuleMonthly).Mul(d(usage.Float("rule_count", 0)))
		return d(c.rates.WAFWebACLMonthly).Add(rules), true
	case "shield_advanced":
		if !usage.Bool("subscribed") {
			return decimal.Zero, true
		}
		return d(c.rates.ShieldAdvancedMonthly), true

	case "cloudwatch_alarm":
		return d(c.rates.AlarmMonthly), true
	case "cloudwatch_dashboard":
		return d(c.rates.DashboardMonthly), true
	case "cloudwatch_log_group":
		ingest := d(c.rates.LogIngestGBMonth).Mul(d(usage.Float("ingest_gb", 0)))
		stored := d(c.rates.LogStorageGBMonth).Mul(d(usage.Float("stored_gb", 0)))
		return ingest.Add(stored), true
	case "ssm_parameter":
		if usage.Str("tier") == "Advanced" {
			return d(c.rates.SSMAdvancedParamMonthly), true
		}
		return decimal.Zero, true

	case "cloudformation_stack", "cloudformation_stack_set", "cloudtrail_trail":
		return decimal.Zero, true
	case "vpc", "subnet", "internet_gateway", "security_group", "route_table":
		return decimal.Zero, true
	case "dms_replication_instance":
		rate := mapRate(c.rates.DMSHourly, usage.Str("instance_class"), c.rates.DMSHourlyDefault)
		cost := c.monthly(rate)
		if usage.Bool("multi_az") {
			cost = cost.Mul(d(2))
		}
		return cost, true

	case "apigw_rest_api", "apigw_http_api":
		return decimal.Zero, true
	}

	return decimal.Zero, false
}

func (c *Catalog) monthly(hourly decimal.Decimal) decimal.Decimal {
	return hourly.Mul(c.hours)
}

func (c *Catalog) ec2Instance(usage types.UsageVector) decimal.Decimal {
	hourly := mapRate(c.rates.EC2Hourly, usage.Str("instance_type"), c.rates.EC2HourlyDefault)
	if strings.EqualFold(usage.Str("platform"), "windows") {
		hourly = hourly.Add(d(c.rates.WindowsHourlyUplift))
	}
	return c.monthly(hourly)
}

func (c *Catalog) ebsVolume(volType string, usage types.UsageVector) decimal.Decimal {
	perGB, ok := c.rates.EBSGBMonth[volType]
	if !ok {
		perGB = c.rates.EBSGBMonth["standard"]
	}
	cost := d(perGB).Mul(d(usage.Float("size_gb", 0)))

	iops := usage.Float("iops", 0)
	switch volType {
	case "gp3":
		if extra := iops - c.rates.Gp3FreeIOPS; extra > 0 {
			cost = cost.Add(d(c.rates.Gp3IOPSMonth).Mul(d(extra)))
		}
	case "io1", "io2":
		cost = cost.Add(d(c.rates.IoIOPSMonth).Mul(d(iops)))
	}
	return cost
}

func (c *Catalog) rdsInstance(usage types.UsageVector) decimal.Decimal {
	hourly := mapRate(c.rates.RDSHourly, usage.Str("instance_class"), c.rates.RDSHourlyDefault)
	cost := c.monthly(hourly)

	storageType := usage.Str("storage_type")
	perGB, ok := c.rates.RDSStorageGBMonth[storageType]
	if !ok {
		perGB = c.rates.RDSStorageGBMonth["gp2"]
	}
	cost = cost.Add(d(perGB).Mul(d(usage.Float("storage_gb", 0))))

	if storageType == "io1" {
		cost = cost.Add(d(c.rates.RDSIOPSMonth).Mul(d(usage.Float("iops", 0))))
	}

	// Multi-AZ runs a synchronized standby, billed as a second instance.
	if usage.Bool("multi_az") {
		cost = cost.Mul(d(2))
	}
	return cost
}

func (c *Catalog) dynamoTable(usage types.UsageVector) decimal.Decimal {
	rcu := d(c.rates.DynamoRCUHourly).Mul(d(usage.Float("rcu", 0)))
	wcu := d(c.rates.DynamoWCUHourly).Mul(d(usage.Float("wcu", 0)))
	cost := c.monthly(rcu.Add(wcu))

	if over := usage.Float("size_gb", 0) - c.rates.DynamoFreeStorageGB; over > 0 {
		cost = cost.Add(d(c.rates.DynamoStorageGBMonth).Mul(d(over)))
	}
	return cost
}

func (c *Catalog) loadBalancer(usage types.UsageVector) decimal.Decimal {
	lcus := d(usage.Float("capacity_units", 0))
	switch usage.Str("lb_type") {
	case "network":
		return c.monthly(d(c.rates.NLBHourly).Add(d(c.rates.NLBNCUHourly).Mul(lcus)))
	case "gateway":
		return c.monthly(d(c.rates.GWLBHourly).Add(d(c.rates.GWLBLCUHourly).Mul(lcus)))
	case "classic":
		return c.monthly(d(c.rates.ClassicLBHourly))
	default: // application
		return c.monthly(d(c.rates.ALBHourly).Add(d(c.rates.ALBLCUHourly).Mul(lcus)))
	}
}

func (c *Catalog) lambdaExecution(usage types.UsageVector) decimal.Decimal {
	requests := d(c.rates.LambdaPerMillionRequests).
		Mul(d(usage.Float("requests_per_month", 0))).
		Div(d(1_000_000))
	compute := d(c.rates.LambdaGBSecond).Mul(d(usage.Float("gb_seconds_per_month", 0)))
	provisioned := d(c.rates.LambdaProvisionedGBSecond).Mul(d(usage.Float("provisioned_gb_seconds", 0)))

	cost := requests.Add(compute).Add(provisioned)
	if usage.Str("architecture") == "arm64" {
		cost = cost.Mul(decimal.NewFromFloat(1).Sub(d(c.rates.ArmDiscount)))
	}
	return cost
}

func (c *Catalog) fargateTask(usage types.UsageVector) decimal.Decimal {
	vcpu := d(c.rates.FargateVCPUHourly).Mul(d(usage.Float("vcpu", 0.25)))
	mem := d(c.rates.FargateGBHourly).Mul(d(usage.Float("memory_gb", 0.5)))
	cost := c.monthly(vcpu.Add(mem)).Mul(d(usage.Float("desired_count", 1)))

	if usage.Str("architecture") == "arm64" {
		cost = cost.Mul(decimal.NewFromFloat(1).Sub(d(c.rates.ArmDiscount)))
	}
	return cost
}
