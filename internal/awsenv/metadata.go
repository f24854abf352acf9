package awsenv

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"go.uber.org/zap"
)

const (
	instanceIDPath         = "instance-id"
	defaultMetadataTimeout = 2 * time.Second
)

// IMDSAPI is the subset of the instance metadata client used here.
type IMDSAPI interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

// MetadataClient reads the instance identifier from the instance metadata
// service. Any failure is reported as an empty identifier.
type MetadataClient struct {
	api     IMDSAPI
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics
}

// NewMetadataClient wraps api. A non-positive timeout selects the default.
func NewMetadataClient(api IMDSAPI, timeout time.Duration, logger *zap.Logger, metrics *Metrics) *MetadataClient {
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataClient{
		api:     api,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// CurrentInstanceID returns the instance identifier or "" off-instance.
func (c *MetadataClient) CurrentInstanceID(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	id, err := c.instanceID(ctx)
	c.metrics.observe(serviceIMDS, "GetMetadata", start, err)
	if err != nil {
		c.logger.Debug("instance metadata unavailable", zap.Error(err))
		return ""
	}

	c.logger.Info("instance identified", zap.String("instance_id", id))
	return id
}

func (c *MetadataClient) instanceID(ctx context.Context) (string, error) {
	out, err := c.api.GetMetadata(ctx, &imds.GetMetadataInput{Path: instanceIDPath})
	if err != nil {
		return "", err
	}
	defer out.Content.Close()

	body, err := io.ReadAll(out.Content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
