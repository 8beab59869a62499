package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rates is the full price table behind the catalog. Every number here is
// a list-price approximation in USD; an operator can override any of them
// with a YAML file without rebuilding.
type Rates struct {
	HoursPerMonth float64 `yaml:"hours_per_month"`

	// EC2
	EC2Hourly           map[string]float64 `yaml:"ec2_hourly"`
	EC2HourlyDefault    float64            `yaml:"ec2_hourly_default"`
	WindowsHourlyUplift float64            `yaml:"windows_hourly_uplift"`
	DedicatedHostHourly map[string]float64 `yaml:"dedicated_host_hourly"`
	DedicatedHostDefault float64           `yaml:"dedicated_host_hourly_default"`
	ElasticIPHourly     float64            `yaml:"elastic_ip_hourly"`
	NATGatewayHourly    float64            `yaml:"nat_gateway_hourly"`
	VPCEndpointHourly   float64            `yaml:"vpc_endpoint_hourly"`

	// EBS
	EBSGBMonth       map[string]float64 `yaml:"ebs_gb_month"`
	Gp3FreeIOPS      float64            `yaml:"gp3_free_iops"`
	Gp3IOPSMonth     float64            `yaml:"gp3_iops_month"`
	IoIOPSMonth      float64            `yaml:"io_iops_month"`
	SnapshotGBMonth  float64            `yaml:"snapshot_gb_month"`
	AMIStorageGBMonth float64           `yaml:"ami_storage_gb_month"`

	// Storage
	S3StandardGBMonth float64 `yaml:"s3_standard_gb_month"`
	EFSGBMonth        float64 `yaml:"efs_gb_month"`
	ECRGBMonth        float64 `yaml:"ecr_gb_month"`

	// Databases
	RDSHourly           map[string]float64 `yaml:"rds_hourly"`
	RDSHourlyDefault    float64            `yaml:"rds_hourly_default"`
	RDSStorageGBMonth   map[string]float64 `yaml:"rds_storage_gb_month"`
	RDSIOPSMonth        float64            `yaml:"rds_iops_month"`
	RDSSnapshotGBMonth  float64            `yaml:"rds_snapshot_gb_month"`
	AuroraClusterHourly float64            `yaml:"aurora_cluster_hourly"`
	DynamoRCUHourly     float64            `yaml:"dynamo_rcu_hourly"`
	DynamoWCUHourly     float64            `yaml:"dynamo_wcu_hourly"`
	DynamoStorageGBMonth float64           `yaml:"dynamo_storage_gb_month"`
	DynamoFreeStorageGB float64            `yaml:"dynamo_free_storage_gb"`
	ElastiCacheHourly   map[string]float64 `yaml:"elasticache_hourly"`
	ElastiCacheDefault  float64            `yaml:"elasticache_hourly_default"`
	RedshiftHourly      map[string]float64 `yaml:"redshift_hourly"`
	RedshiftDefault     float64            `yaml:"redshift_hourly_default"`
	DAXNodeHourly       float64            `yaml:"dax_node_hourly"`

	// Load balancing
	ALBHourly       float64 `yaml:"alb_hourly"`
	ALBLCUHourly    float64 `yaml:"alb_lcu_hourly"`
	NLBHourly       float64 `yaml:"nlb_hourly"`
	NLBNCUHourly    float64 `yaml:"nlb_ncu_hourly"`
	GWLBHourly      float64 `yaml:"gwlb_hourly"`
	GWLBLCUHourly   float64 `yaml:"gwlb_lcu_hourly"`
	ClassicLBHourly float64 `yaml:"classic_lb_hourly"`

	// Serverless and containers
	LambdaPerMillionRequests  float64 `yaml:"lambda_per_million_requests"`
	LambdaGBSecond            float64 `yaml:"lambda_gb_second"`
	LambdaProvisionedGBSecond float64 `yaml:"lambda_provisioned_gb_second"`
	ArmDiscount               float64 `yaml:"arm_discount"`
	EKSControlPlaneHourly     float64 `yaml:"eks_control_plane_hourly"`
	FargateVCPUHourly         float64 `yaml:"fargate_vcpu_hourly"`
	FargateGBHourly           float64 `yaml:"fargate_gb_hourly"`
	SFNPerThousandTransitions float64 `yaml:"sfn_per_thousand_transitions"`

	// Edge, security, ops
	HostedZoneMonthly     float64 `yaml:"hosted_zone_monthly"`
	KMSKeyMonthly         float64 `yaml:"kms_key_monthly"`
	WAFWebACLMonthly      float64 `yaml:"waf_web_acl_monthly"`
	WAFRuleMonthly        float64 `yaml:"waf_rule_monthly"`
	ShieldAdvancedMonthly float64 `yaml:"shield_advanced_monthly"`
	AlarmMonthly          float64 `yaml:"alarm_monthly"`
	DashboardMonthly      float64 `yaml:"dashboard_monthly"`
	LogIngestGBMonth      float64 `yaml:"log_ingest_gb_month"`
	LogStorageGBMonth     float64 `yaml:"log_storage_gb_month"`
	SSMAdvancedParamMonthly float64 `yaml:"ssm_advanced_param_monthly"`
	DMSHourly             map[string]float64 `yaml:"dms_hourly"`
	DMSHourlyDefault      float64            `yaml:"dms_hourly_default"`
}

// DefaultRates returns the built-in price table.
func DefaultRates() Rates {
	return Rates{
		HoursPerMonth: 730,

		EC2Hourly: map[string]float64{
			"t2.nano":    0.0058,
			"t2.micro":   0.0116,
			"t2.small":   0.023,
			"t2.medium":  0.0464,
			"t2.large":   0.0928,
			"t3.nano":    0.0052,
			"t3.micro":   0.0104,
			"t3.small":   0.0208,
			"t3.medium":  0.0416,
			"t3.large":   0.0832,
			"m5.large":   0.096,
			"m5.xlarge":  0.192,
			"m5.2xlarge": 0.384,
			"c5.large":   0.085,
			"c5.xlarge":  0.17,
			"c5.2xlarge": 0.34,
			"r5.large":   0.126,
			"r5.xlarge":  0.252,
			"r5.2xlarge": 0.504,
		},
		EC2HourlyDefault:    0.05,
		WindowsHourlyUplift: 0.04,
		DedicatedHostHourly: map[string]float64{
			"m5": 4.416,
			"c5": 3.264,
			"r5": 4.832,
		},
		DedicatedHostDefault: 4.0,
		ElasticIPHourly:    0.005,
		NATGatewayHourly:   0.045,
		VPCEndpointHourly:  0.01,

		EBSGBMonth: map[string]float64{
			"gp3":      0.08,
			"gp2":      0.10,
			"io1":      0.125,
			"io2":      0.125,
			"st1":      0.045,
			"sc1":      0.025,
			"standard": 0.05,
		},
		Gp3FreeIOPS:       3000,
		Gp3IOPSMonth:      0.005,
		IoIOPSMonth:       0.065,
		SnapshotGBMonth:   0.05,
		AMIStorageGBMonth: 0.05,

		S3StandardGBMonth: 0.023,
		EFSGBMonth:        0.30,
		ECRGBMonth:        0.10,

		RDSHourly: map[string]float64{
			"db.t3.micro":  0.017,
			"db.t3.small":  0.034,
			"db.t3.medium": 0.068,
			"db.t3.large":  0.136,
			"db.m5.large":  0.171,
			"db.m5.xlarge": 0.342,
			"db.r5.large":  0.24,
			"db.r5.xlarge": 0.48,
		},
		RDSHourlyDefault: 0.10,
		RDSStorageGBMonth: map[string]float64{
			"gp2": 0.115,
			"gp3": 0.108,
			"io1": 0.125,
		},
		RDSIOPSMonth:         0.10,
		RDSSnapshotGBMonth:   0.095,
		AuroraClusterHourly:  0.29,
		DynamoRCUHourly:      0.00013,
		DynamoWCUHourly:      0.00065,
		DynamoStorageGBMonth: 0.25,
		DynamoFreeStorageGB:  25,
		ElastiCacheHourly: map[string]float64{
			"cache.t3.micro":  0.017,
			"cache.t3.small":  0.034,
			"cache.t3.medium": 0.068,
			"cache.m5.large":  0.156,
			"cache.r5.large":  0.216,
		},
		ElastiCacheDefault: 0.068,
		RedshiftHourly: map[string]float64{
			"dc2.large":   0.25,
			"dc2.8xlarge": 4.80,
			"ra3.xlplus":  1.086,
			"ra3.4xlarge": 3.26,
		},
		RedshiftDefault: 0.25,
		DAXNodeHourly:   0.12,

		ALBHourly:       0.0225,
		ALBLCUHourly:    0.008,
		NLBHourly:       0.0225,
		NLBNCUHourly:    0.006,
		GWLBHourly:      0.0125,
		GWLBLCUHourly:   0.0035,
		ClassicLBHourly: 0.025,

		LambdaPerMillionRequests:  0.20,
		LambdaGBSecond:            0.0000166667,
		LambdaProvisionedGBSecond: 0.0000041667,
		ArmDiscount:               0.20,
		EKSControlPlaneHourly:     0.10,
		FargateVCPUHourly:         0.04048,
		FargateGBHourly:           0.0044452,
		SFNPerThousandTransitions: 0.025,

		HostedZoneMonthly:       0.50,
		KMSKeyMonthly:           1.00,
		WAFWebACLMonthly:        5.00,
		WAFRuleMonthly:          1.00,
		ShieldAdvancedMonthly:   3000.00,
		AlarmMonthly:            0.10,
		DashboardMonthly:        3.00,
		LogIngestGBMonth:        0.50,
		LogStorageGBMonth:       0.03,
		SSMAdvancedParamMonthly: 0.05,
		DMSHourly: map[string]float64{
			"dms.t3.micro":  0.018,
			"dms.t3.small":  0.036,
			"dms.t3.medium": 0.072,
			"dms.c5.large":  0.154,
		},
		DMSHourlyDefault: 0.154,
	}
}

// LoadRates reads a YAML override file on top of the defaults. Only keys
// present in the file are replaced; maps in the file replace the default
// map wholesale because partial price tables are more confusing than
// complete ones.
func LoadRates(path string) (Rates, error) {
	rates := DefaultRates()
	if path == "" {
		return rates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, fmt.Errorf("failed to read price table %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return Rates{}, fmt.Errorf("failed to parse price table %s: %w", path, err)
	}
	if rates.HoursPerMonth <= 0 {
		return Rates{}, fmt.Errorf("price table %s: hours_per_month must be positive", path)
	}
	return rates, nil
}
