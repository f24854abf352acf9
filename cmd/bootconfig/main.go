package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"

	"github.com/secretorange/awsboot/internal/application"
	"github.com/secretorange/awsboot/internal/awsenv"
	"github.com/secretorange/awsboot/internal/boot"
	"github.com/secretorange/awsboot/internal/config"
	"github.com/secretorange/awsboot/internal/logging"
)

const maskedValue = "********"

type report struct {
	Environment    string            `yaml:"environment"`
	LoggingEnabled bool              `yaml:"logging_enabled"`
	Managed        bool              `yaml:"managed"`
	InstanceID     string            `yaml:"instance_id,omitempty"`
	Parameters     map[string]string `yaml:"parameters"`
}

func main() {
	kingpinApp := kingpin.New("bootconfig", "Resolves the boot configuration for this host and prints it as YAML")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	region := kingpinApp.Flag("region", "AWS region (resolved from instance metadata when empty)").String()
	showValues := kingpinApp.Flag("show-values", "Print parameter values instead of masking them").Bool()
	verbose := kingpinApp.Flag("verbose", "Log resolution progress to stderr").Short('v').Bool()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{ConfigFile: *configFile}
	if *region != "" {
		overrides.Region = region
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		kingpinApp.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Options{Enabled: *verbose})
	if err != nil {
		kingpinApp.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	session := awsenv.NewSession(cfg.AWS.Region, nil)
	resolver, identity := application.NewResolver(cfg.AWS, session, nil, logger)

	bundle, err := resolver.Resolve(ctx)
	if err != nil {
		kingpinApp.Fatalf("failed to resolve boot configuration: %v", err)
	}

	if err := render(os.Stdout, bundle, identity, *showValues); err != nil {
		kingpinApp.Fatalf("failed to write report: %v", err)
	}
}

// render writes bundle as YAML. Parameter values are masked unless showValues is set.
func render(w io.Writer, bundle boot.Bundle, identity boot.Identity, showValues bool) error {
	ctx := context.Background()
	out := report{
		Environment:    bundle.Environment,
		LoggingEnabled: bundle.LoggingEnabled,
		Parameters:     make(map[string]string, len(bundle.Parameters)),
	}
	if identity != nil {
		out.Managed = identity.IsManagedInstance(ctx)
		out.InstanceID = identity.InstanceID(ctx)
	}
	for key, value := range bundle.Parameters {
		if !showValues {
			value = maskedValue
		}
		out.Parameters[key] = value
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
