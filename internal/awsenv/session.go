package awsenv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrNoRegion is returned when no region is configured and the instance
// metadata service cannot provide one.
var ErrNoRegion = errors.New("aws region could not be determined")

// Session loads the SDK configuration the first time an EC2 or SSM call is
// made, so probing identity off-instance never touches credentials.
type Session struct {
	region string
	imds   IMDSAPI

	once sync.Once
	ec2  *ec2.Client
	ssm  *ssm.Client
	err  error
}

// NewSession creates a session. An empty region is resolved from instance metadata.
func NewSession(region string, metadata IMDSAPI) *Session {
	if metadata == nil {
		metadata = imds.New(imds.Options{})
	}
	return &Session{
		region: strings.TrimSpace(region),
		imds:   metadata,
	}
}

// IMDS returns the instance metadata client.
func (s *Session) IMDS() IMDSAPI {
	return s.imds
}

// EC2 returns a lazily initialized EC2 client.
func (s *Session) EC2() EC2API {
	return lazyEC2{session: s}
}

// SSM returns a lazily initialized SSM client.
func (s *Session) SSM() SSMAPI {
	return lazySSM{session: s}
}

func (s *Session) init(ctx context.Context) error {
	s.once.Do(func() {
		cfg, err := s.loadConfig(ctx)
		if err != nil {
			s.err = err
			return
		}
		s.ec2 = ec2.NewFromConfig(cfg)
		s.ssm = ssm.NewFromConfig(cfg)
	})
	return s.err
}

func (s *Session) loadConfig(ctx context.Context) (aws.Config, error) {
	region := s.region
	if region == "" {
		out, err := s.imds.GetRegion(ctx, &imds.GetRegionInput{})
		if err != nil {
			return aws.Config{}, fmt.Errorf("%w: %w", ErrNoRegion, err)
		}
		region = out.Region
	}
	if region == "" {
		return aws.Config{}, ErrNoRegion
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

type lazyEC2 struct {
	session *Session
}

func (l lazyEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if err := l.session.init(ctx); err != nil {
		return nil, err
	}
	return l.session.ec2.DescribeInstances(ctx, params, optFns...)
}

type lazySSM struct {
	session *Session
}

func (l lazySSM) GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if err := l.session.init(ctx); err != nil {
		return nil, err
	}
	return l.session.ssm.GetParametersByPath(ctx, params, optFns...)
}
