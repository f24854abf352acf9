package boot

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultEnvironment is the environment used when not running on an instance.
	DefaultEnvironment = "LocalDevelopment"
	// KeyDelimiter separates path segments in flattened parameter keys.
	KeyDelimiter = ":"

	environmentTag = "environment"
	loggingTag     = "logging"
	loggingOff     = "off"
)

// Bundle is the configuration resolved at startup.
type Bundle struct {
	Environment    string            `yaml:"environment" json:"environment"`
	LoggingEnabled bool              `yaml:"logging_enabled" json:"loggingEnabled"`
	Parameters     map[string]string `yaml:"parameters" json:"parameters"`
}

// Keys returns the flattened parameter keys in sorted order.
func (b Bundle) Keys() []string {
	keys := make([]string, 0, len(b.Parameters))
	for k := range b.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LocalBundle returns the bundle used off-instance.
func LocalBundle() Bundle {
	return Bundle{
		Environment:    DefaultEnvironment,
		LoggingEnabled: true,
		Parameters:     map[string]string{},
	}
}

// TagReader exposes the instance tag lookups the resolver needs.
type TagReader interface {
	TagValue(ctx context.Context, key string) (string, error)
	HasTag(ctx context.Context, key, value string) (bool, error)
}

// ParameterReader returns the parameters stored under a prefix.
type ParameterReader interface {
	Parameters(ctx context.Context, prefix string) (map[string]string, error)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger attaches a logger to the resolver.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver assembles the startup Bundle.
type Resolver struct {
	identity Identity
	tags     TagReader
	params   ParameterReader
	logger   *zap.Logger
}

// NewResolver wires a resolver from its collaborators.
func NewResolver(identity Identity, tags TagReader, params ParameterReader, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		identity: identity,
		tags:     tags,
		params:   params,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the local bundle off-instance. On an instance it derives the
// environment and logging flag from the tags and loads the environment's
// parameters. Remote failures are returned as-is and no partial bundle is produced.
func (r *Resolver) Resolve(ctx context.Context) (Bundle, error) {
	if !r.identity.IsManagedInstance(ctx) {
		r.logger.Info("not running on a managed instance, using local environment",
			zap.String("environment", DefaultEnvironment))
		return LocalBundle(), nil
	}

	instanceID := r.identity.InstanceID(ctx)
	r.logger.Info("resolving instance configuration", zap.String("instance_id", instanceID))

	environment, err := r.tags.TagValue(ctx, environmentTag)
	if err != nil {
		return Bundle{}, err
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		return Bundle{}, ErrMissingEnvironmentTag
	}

	loggingDisabled, err := r.tags.HasTag(ctx, loggingTag, loggingOff)
	if err != nil {
		return Bundle{}, err
	}

	prefix := EnvironmentPrefix(environment)
	raw, err := r.params.Parameters(ctx, prefix)
	if err != nil {
		return Bundle{}, err
	}

	bundle := Bundle{
		Environment:    environment,
		LoggingEnabled: !loggingDisabled,
		Parameters:     FlattenParameters(prefix, raw),
	}

	r.logger.Info("instance configuration resolved",
		zap.String("environment", bundle.Environment),
		zap.Bool("logging_enabled", bundle.LoggingEnabled),
		zap.Int("parameters", len(bundle.Parameters)),
	)

	return bundle, nil
}

// EnvironmentPrefix returns the parameter path holding an environment's settings.
func EnvironmentPrefix(environment string) string {
	return "/" + strings.ToLower(environment) + "/"
}

// FlattenParameters strips prefix from every key and replaces the remaining
// path separators with KeyDelimiter. Keys are visited in lexicographic order,
// so when two paths flatten to the same key the lexicographically last wins.
func FlattenParameters(prefix string, params map[string]string) map[string]string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(params))
	for _, name := range names {
		key := strings.ReplaceAll(strings.TrimPrefix(name, prefix), "/", KeyDelimiter)
		out[key] = params[name]
	}
	return out
}
