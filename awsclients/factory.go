package awsclients

import (
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/databasemigrationservice"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/shield"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"

	"github.com/karttaio/kartta/types"
)

const (
	// Region used for services with a single global endpoint.
	globalEndpointRegion = "us-east-1"

	maxRetryAttempts = 5
	retryBaseDelay   = 500 * time.Millisecond
	retryMaxDelay    = 8 * time.Second
)

// expBackoff doubles the delay each attempt up to a ceiling. Attempt
// numbering starts at 1 for the first retry.
type expBackoff struct {
	base time.Duration
	cap  time.Duration
}

func (b expBackoff) BackoffDelay(attempt int, _ error) (time.Duration, error) {
	d := b.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.cap {
			return b.cap, nil
		}
	}
	if d > b.cap {
		d = b.cap
	}
	return d, nil
}

func newRetryer() aws.Retryer {
	return retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = maxRetryAttempts
		o.Backoff = expBackoff{base: retryBaseDelay, cap: retryMaxDelay}
	})
}

// BuildFunc turns a resolved aws.Config into a ClientSet. Tests swap this
// out to hand probes mock clients.
type BuildFunc func(cfg aws.Config) *ClientSet

// Factory hands out one ClientSet per region, built from the short-lived
// credentials of the current discovery run. Sets are cached for the life
// of the factory, which matches the life of the run.
type Factory struct {
	creds       aws.CredentialsProvider
	perCallWait time.Duration
	build       BuildFunc

	mu    sync.Mutex
	cache map[string]*ClientSet
}

// NewFactory builds a factory over the given credentials provider.
func NewFactory(creds aws.CredentialsProvider, perCallTimeout time.Duration) *Factory {
	return &Factory{
		creds:       creds,
		perCallWait: perCallTimeout,
		build:       buildClientSet,
		cache:       make(map[string]*ClientSet),
	}
}

// NewFactoryWithBuilder is like NewFactory but with a custom set builder.
func NewFactoryWithBuilder(creds aws.CredentialsProvider, perCallTimeout time.Duration, build BuildFunc) *Factory {
	f := NewFactory(creds, perCallTimeout)
	f.build = build
	return f
}

// ForRegion returns the ClientSet for region, building it on first use.
// The global sentinel maps to the us-east-1 endpoint.
func (f *Factory) ForRegion(region string) *ClientSet {
	endpoint := region
	if endpoint == types.GlobalRegion {
		endpoint = globalEndpointRegion
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if set, ok := f.cache[endpoint]; ok {
		return set
	}

	cfg := aws.Config{
		Region:      endpoint,
		Credentials: f.creds,
		Retryer:     newRetryer,
		HTTPClient:  awshttp.NewBuildableClient().WithTimeout(f.perCallWait),
	}
	set := f.build(cfg)
	f.cache[endpoint] = set
	return set
}

func buildClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{
		EC2:            ec2.NewFromConfig(cfg),
		AutoScaling:    autoscaling.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
		EFS:            efs.NewFromConfig(cfg),
		ECR:            ecr.NewFromConfig(cfg),
		RDS:            rds.NewFromConfig(cfg),
		DynamoDB:       dynamodb.NewFromConfig(cfg),
		ElastiCache:    elasticache.NewFromConfig(cfg),
		Redshift:       redshift.NewFromConfig(cfg),
		ELBV2:          elasticloadbalancingv2.NewFromConfig(cfg),
		Lambda:         lambda.NewFromConfig(cfg),
		SFN:            sfn.NewFromConfig(cfg),
		ECS:            ecs.NewFromConfig(cfg),
		EKS:            eks.NewFromConfig(cfg),
		SNS:            sns.NewFromConfig(cfg),
		SQS:            sqs.NewFromConfig(cfg),
		EventBridge:    eventbridge.NewFromConfig(cfg),
		Route53:        route53.NewFromConfig(cfg),
		CloudFront:     cloudfront.NewFromConfig(cfg),
		GuardDuty:      guardduty.NewFromConfig(cfg),
		KMS:            kms.NewFromConfig(cfg),
		WAFV2:          wafv2.NewFromConfig(cfg),
		Shield:         shield.NewFromConfig(cfg),
		CloudWatch:     cloudwatch.NewFromConfig(cfg),
		CloudWatchLogs: cloudwatchlogs.NewFromConfig(cfg),
		SSM:            ssm.NewFromConfig(cfg),
		CloudFormation: cloudformation.NewFromConfig(cfg),
		DMS:            databasemigrationservice.NewFromConfig(cfg),
		CloudTrail:     cloudtrail.NewFromConfig(cfg),
		APIGateway:     apigateway.NewFromConfig(cfg),
		APIGatewayV2:   apigatewayv2.NewFromConfig(cfg),
	}
}
