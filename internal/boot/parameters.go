package boot

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// maxParameterPages bounds pagination against a store that keeps returning a
// continuation token.
const maxParameterPages = 10_000

// Parameter is a single entry of the hierarchical parameter store.
type Parameter struct {
	Name  string
	Value string
}

// PathQuery requests one page of parameters stored under Path.
type PathQuery struct {
	Path           string
	Recursive      bool
	WithDecryption bool
	NextToken      string
}

// ParameterPage is one page of a path query. An empty NextToken marks the
// last page.
type ParameterPage struct {
	Parameters []Parameter
	NextToken  string
}

// ParameterStore returns parameters stored under a path, one page per call.
type ParameterStore interface {
	ParametersByPath(ctx context.Context, query PathQuery) (ParameterPage, error)
}

// FetcherOption configures a ParameterFetcher.
type FetcherOption func(*ParameterFetcher)

// WithPageLimiter throttles page requests. Passing nil disables throttling.
func WithPageLimiter(limiter *rate.Limiter) FetcherOption {
	return func(f *ParameterFetcher) {
		f.limiter = limiter
	}
}

// ParameterFetcher collects every parameter under a prefix into a flat map
// keyed by the store's path names.
type ParameterFetcher struct {
	store   ParameterStore
	limiter *rate.Limiter
}

// NewParameterFetcher creates a fetcher reading from store.
func NewParameterFetcher(store ParameterStore, opts ...FetcherOption) *ParameterFetcher {
	f := &ParameterFetcher{store: store}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Parameters issues a recursive, decrypting query for prefix and follows
// continuation tokens until the store reports the last page.
func (f *ParameterFetcher) Parameters(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	query := PathQuery{
		Path:           prefix,
		Recursive:      true,
		WithDecryption: true,
	}

	for page := 0; ; page++ {
		if page >= maxParameterPages {
			return nil, fmt.Errorf("%w: %s", ErrTooManyPages, prefix)
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for parameter page: %w", err)
			}
		}

		result, err := f.store.ParametersByPath(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("get parameters by path %s: %w", prefix, err)
		}

		for _, p := range result.Parameters {
			out[p.Name] = p.Value
		}

		if result.NextToken == "" {
			return out, nil
		}
		query.NextToken = result.NextToken
	}
}
