package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "AWSBOOT"

	defaultPort              = "8080"
	defaultSettingsDir       = "settings"
	defaultRateLimitRPS      = 25.0
	defaultRateLimitBurst    = 50
	defaultMetadataTimeout   = 2 * time.Second
	defaultParameterRPS      = 10.0
	defaultParameterPageSize = 10
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	SettingsDir          string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	AWS                  AWSConfig
}

// AWSConfig holds the settings used while resolving the boot bundle.
type AWSConfig struct {
	// Region is resolved from instance metadata when empty.
	Region            string
	MetadataTimeout   time.Duration
	ParameterRPS      float64
	ParameterPageSize int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	SettingsDir          string        `yaml:"settings_dir"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	AWS                  yamlAWS       `yaml:"aws"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// yamlAWS represents the aws section in YAML.
type yamlAWS struct {
	Region            string   `yaml:"region"`
	MetadataTimeout   string   `yaml:"metadata_timeout"`
	ParameterRPS      *float64 `yaml:"parameter_rps"`
	ParameterPageSize *int     `yaml:"parameter_page_size"`
}

// envConfig lists the environment variables read with the AWSBOOT_ prefix.
// Unprefixed names are accepted as a fallback.
type envConfig struct {
	Port              string         `envconfig:"PORT"`
	SettingsDir       string         `envconfig:"SETTINGS_DIR"`
	RateLimitRPS      *float64       `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst    *int           `envconfig:"RATE_LIMIT_BURST"`
	Region            string         `envconfig:"AWS_REGION"`
	MetadataTimeout   *time.Duration `envconfig:"METADATA_TIMEOUT"`
	ParameterRPS      *float64       `envconfig:"PARAMETER_RPS"`
	ParameterPageSize *int           `envconfig:"PARAMETER_PAGE_SIZE"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	SettingsDir    *string
	Region         *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	// Load from YAML file if specified (overrides environment)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the configuration used when no source overrides anything.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		SettingsDir:          defaultSettingsDir,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		AWS: AWSConfig{
			MetadataTimeout:   defaultMetadataTimeout,
			ParameterRPS:      defaultParameterRPS,
			ParameterPageSize: defaultParameterPageSize,
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.SettingsDir != "" {
		cfg.SettingsDir = yamlCfg.SettingsDir
	}

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
		{"aws.metadata_timeout", yamlCfg.AWS.MetadataTimeout, &cfg.AWS.MetadataTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.field = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.AWS.Region != "" {
		cfg.AWS.Region = yamlCfg.AWS.Region
	}

	if yamlCfg.AWS.ParameterRPS != nil {
		cfg.AWS.ParameterRPS = *yamlCfg.AWS.ParameterRPS
	}

	if yamlCfg.AWS.ParameterPageSize != nil {
		cfg.AWS.ParameterPageSize = *yamlCfg.AWS.ParameterPageSize
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	var env envConfig
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}

	if port := strings.TrimSpace(env.Port); port != "" {
		cfg.Port = port
	}

	if dir := strings.TrimSpace(env.SettingsDir); dir != "" {
		cfg.SettingsDir = dir
	}

	if env.RateLimitRPS != nil {
		cfg.RateLimitRPS = *env.RateLimitRPS
	}

	if env.RateLimitBurst != nil {
		cfg.RateLimitBurst = *env.RateLimitBurst
	}

	if region := strings.TrimSpace(env.Region); region != "" {
		cfg.AWS.Region = region
	}

	if env.MetadataTimeout != nil {
		cfg.AWS.MetadataTimeout = *env.MetadataTimeout
	}

	if env.ParameterRPS != nil {
		cfg.AWS.ParameterRPS = *env.ParameterRPS
	}

	if env.ParameterPageSize != nil {
		cfg.AWS.ParameterPageSize = *env.ParameterPageSize
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.SettingsDir != nil && *overrides.SettingsDir != "" {
		cfg.SettingsDir = *overrides.SettingsDir
	}

	if overrides.Region != nil && *overrides.Region != "" {
		cfg.AWS.Region = *overrides.Region
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.AWS.ParameterRPS < 0 {
		return fmt.Errorf("PARAMETER_RPS must be >= 0")
	}
	if cfg.AWS.ParameterPageSize < 1 || cfg.AWS.ParameterPageSize > 10 {
		return fmt.Errorf("PARAMETER_PAGE_SIZE must be between 1 and 10")
	}
	if cfg.AWS.MetadataTimeout <= 0 {
		return fmt.Errorf("METADATA_TIMEOUT must be positive")
	}
	return nil
}
