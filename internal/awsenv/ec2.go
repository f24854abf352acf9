package awsenv

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/secretorange/awsboot/internal/boot"
)

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// InstanceDescriber looks up instance tags through EC2 DescribeInstances.
type InstanceDescriber struct {
	api     EC2API
	metrics *Metrics
}

// NewInstanceDescriber wraps api.
func NewInstanceDescriber(api EC2API, metrics *Metrics) *InstanceDescriber {
	return &InstanceDescriber{api: api, metrics: metrics}
}

// DescribeInstance returns the first instance of the response, or nil when
// no reservation holds one.
func (d *InstanceDescriber) DescribeInstance(ctx context.Context, instanceID string) (*boot.InstanceRecord, error) {
	start := time.Now()
	out, err := d.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	d.metrics.observe(serviceEC2, "DescribeInstances", start, err)
	if err != nil {
		return nil, err
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			record := &boot.InstanceRecord{
				InstanceID: aws.ToString(instance.InstanceId),
				Tags:       make([]boot.Tag, 0, len(instance.Tags)),
			}
			for _, tag := range instance.Tags {
				record.Tags = append(record.Tags, boot.Tag{
					Key:   aws.ToString(tag.Key),
					Value: aws.ToString(tag.Value),
				})
			}
			return record, nil
		}
	}

	return nil, nil
}
