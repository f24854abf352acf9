package awsenv

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/secretorange/awsboot/internal/boot"
)

// maxPageSize is the largest page GetParametersByPath accepts.
const maxPageSize = 10

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// ParameterStore reads parameter pages from SSM Parameter Store.
type ParameterStore struct {
	api      SSMAPI
	pageSize int32
	metrics  *Metrics
}

// NewParameterStore wraps api. pageSize is clamped to 1..10.
func NewParameterStore(api SSMAPI, pageSize int, metrics *Metrics) *ParameterStore {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &ParameterStore{
		api:      api,
		pageSize: int32(pageSize),
		metrics:  metrics,
	}
}

// ParametersByPath fetches one page of parameters.
func (s *ParameterStore) ParametersByPath(ctx context.Context, query boot.PathQuery) (boot.ParameterPage, error) {
	input := &ssm.GetParametersByPathInput{
		Path:           aws.String(query.Path),
		Recursive:      aws.Bool(query.Recursive),
		WithDecryption: aws.Bool(query.WithDecryption),
		MaxResults:     aws.Int32(s.pageSize),
	}
	if query.NextToken != "" {
		input.NextToken = aws.String(query.NextToken)
	}

	start := time.Now()
	out, err := s.api.GetParametersByPath(ctx, input)
	s.metrics.observe(serviceSSM, "GetParametersByPath", start, err)
	if err != nil {
		return boot.ParameterPage{}, err
	}

	page := boot.ParameterPage{
		Parameters: make([]boot.Parameter, 0, len(out.Parameters)),
		NextToken:  aws.ToString(out.NextToken),
	}
	for _, p := range out.Parameters {
		page.Parameters = append(page.Parameters, boot.Parameter{
			Name:  aws.ToString(p.Name),
			Value: aws.ToString(p.Value),
		})
	}
	return page, nil
}
