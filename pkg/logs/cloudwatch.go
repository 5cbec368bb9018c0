package logs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// CloudWatchSource reads log events from a CloudWatch Logs group.
type CloudWatchSource struct {
	client   cloudwatchlogs.FilterLogEventsAPIClient
	logGroup string
}

// NewCloudWatchSource creates a source using the default AWS credential chain.
func NewCloudWatchSource(ctx context.Context, cfg *config.CloudWatchConfig) (*CloudWatchSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newCloudWatchSource(cloudwatchlogs.NewFromConfig(awsCfg), cfg.LogGroup), nil
}

func newCloudWatchSource(client cloudwatchlogs.FilterLogEventsAPIClient, logGroup string) *CloudWatchSource {
	return &CloudWatchSource{client: client, logGroup: logGroup}
}

// Name implements Source.
func (*CloudWatchSource) Name() models.LogSource { return models.LogSourceCloudWatch }

// Fetch implements Source. The service's log query is used verbatim as the
// filter pattern; otherwise events are matched on the severity term.
func (c *CloudWatchSource) Fetch(ctx context.Context, q Query) (*Result, error) {
	if c.logGroup == "" {
		return nil, fmt.Errorf("cloudwatch log group is not configured")
	}
	pattern := q.Filter
	if pattern == "" {
		pattern = fmt.Sprintf("%q", q.Severity)
	}
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:  aws.String(c.logGroup),
		StartTime:     aws.Int64(q.Start.UnixMilli()),
		EndTime:       aws.Int64(q.End.UnixMilli()),
		FilterPattern: aws.String(pattern),
	}
	if q.MaxLines > 0 {
		input.Limit = aws.Int32(int32(min(q.MaxLines, 10000)))
	}

	var lines []string
	p := cloudwatchlogs.NewFilterLogEventsPaginator(c.client, input)
	for p.HasMorePages() && (q.MaxLines <= 0 || len(lines) < q.MaxLines) {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("filter log events in %s: %w", c.logGroup, err)
		}
		for _, ev := range page.Events {
			ts := time.UnixMilli(aws.ToInt64(ev.Timestamp)).UTC().Format(time.RFC3339)
			lines = append(lines, fmt.Sprintf("[%s] %s", ts, aws.ToString(ev.Message)))
		}
	}
	return buildResult(lines, ExtractStackTraces(strings.Join(lines, "\n")), q.MaxLines), nil
}
