package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/secretorange/awsboot/internal/application"
	"github.com/secretorange/awsboot/internal/awsenv"
	"github.com/secretorange/awsboot/internal/boot"
	"github.com/secretorange/awsboot/internal/config"
)

type instanceIMDS struct {
	id string
}

func (f instanceIMDS) GetMetadata(context.Context, *imds.GetMetadataInput, ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(f.id + "\n"))}, nil
}

func (f instanceIMDS) GetRegion(context.Context, *imds.GetRegionInput, ...func(*imds.Options)) (*imds.GetRegionOutput, error) {
	return &imds.GetRegionOutput{Region: "eu-west-1"}, nil
}

type taggedEC2 struct {
	calls atomic.Int32
	tags  map[string]string
}

func (f *taggedEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.calls.Add(1)
	instance := ec2types.Instance{InstanceId: aws.String(in.InstanceIds[0])}
	for k, v := range f.tags {
		instance.Tags = append(instance.Tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{instance}}},
	}, nil
}

type pagedSSM struct {
	paths []string
	pages [][]ssmtypes.Parameter
}

func (f *pagedSSM) GetParametersByPath(_ context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.paths = append(f.paths, aws.ToString(in.Path))
	idx := 0
	if in.NextToken != nil {
		idx = len(aws.ToString(in.NextToken))
	}
	out := &ssm.GetParametersByPathOutput{Parameters: f.pages[idx]}
	if idx+1 < len(f.pages) {
		out.NextToken = aws.String(strings.Repeat("n", idx+1))
	}
	return out, nil
}

func param(name, value string) ssmtypes.Parameter {
	return ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(value)}
}

func resolve(t *testing.T, registry *prometheus.Registry, ec2API *taggedEC2, ssmAPI *pagedSSM) (boot.Bundle, boot.Identity) {
	t.Helper()

	metrics := awsenv.NewMetrics(registry)
	metadata := awsenv.NewMetadataClient(instanceIMDS{id: "i-0abc"}, 0, zaptest.NewLogger(t), metrics)
	probe := boot.NewIdentityProbe(metadata)
	tags := boot.NewTagStore(probe, awsenv.NewInstanceDescriber(ec2API, metrics))
	fetcher := boot.NewParameterFetcher(awsenv.NewParameterStore(ssmAPI, 10, metrics))

	resolver := boot.NewResolver(probe, tags, fetcher, boot.WithLogger(zaptest.NewLogger(t)))
	bundle, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	return bundle, probe
}

func TestIntegrationFlow(t *testing.T) {
	registry := prometheus.NewRegistry()
	ec2API := &taggedEC2{tags: map[string]string{"Environment": "Staging", "LOGGING": "Off"}}
	ssmAPI := &pagedSSM{pages: [][]ssmtypes.Parameter{
		{param("/staging/Api/Key", "abc")},
		{param("/staging/Api/Timeout", "30"), param("/staging/Db/Host", "staging-db")},
	}}

	bundle, identity := resolve(t, registry, ec2API, ssmAPI)

	if bundle.Environment != "Staging" || bundle.LoggingEnabled {
		t.Fatalf("unexpected bundle: %+v", bundle)
	}
	want := map[string]string{"Api:Key": "abc", "Api:Timeout": "30", "Db:Host": "staging-db"}
	if len(bundle.Parameters) != len(want) {
		t.Fatalf("expected %v, got %v", want, bundle.Parameters)
	}
	for k, v := range want {
		if bundle.Parameters[k] != v {
			t.Fatalf("expected %s=%s, got %q", k, v, bundle.Parameters[k])
		}
	}
	for _, path := range ssmAPI.paths {
		if path != "/staging/" {
			t.Fatalf("expected lowercase environment prefix, got %s", path)
		}
	}
	if ec2API.calls.Load() != 1 {
		t.Fatalf("expected one describe call, got %d", ec2API.calls.Load())
	}
	if got := awsCalls(t, registry, "ssm"); got != 2 {
		t.Fatalf("expected two parameter pages recorded, got %v", got)
	}

	dir := t.TempDir()
	writeSettings(t, dir, "appsettings.yaml", "Db:\n  Host: localhost\n  Port: 5432\n")
	writeSettings(t, dir, "appsettings.Staging.yaml", "Db:\n  Port: 6432\n")

	cfg := config.Default()
	cfg.SettingsDir = dir
	cfg.RateLimitRPS = 0
	app, err := application.New(context.Background(), cfg, bundle, identity, registry, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("application.New returned error: %v", err)
	}
	handler := app.Server().Handler

	rec := get(handler, "/api/environment")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from environment, got %d", rec.Code)
	}
	var env map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode environment: %v", err)
	}
	if env["environment"] != "Staging" || env["loggingEnabled"] != false || env["instanceId"] != "i-0abc" {
		t.Fatalf("unexpected environment response: %v", env)
	}

	sources := map[string]string{
		"db:host": "parameter-store",
		"db:port": "appsettings.Staging.yaml",
		"api:key": "parameter-store",
	}
	for key, source := range sources {
		rec = get(handler, "/api/settings/"+key)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", key, rec.Code)
		}
		var entry map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&entry); err != nil {
			t.Fatalf("decode setting: %v", err)
		}
		if entry["source"] != source {
			t.Fatalf("expected %s from %s, got %s", key, source, entry["source"])
		}
	}

	rec = get(handler, "/api/settings")
	if strings.Contains(rec.Body.String(), "staging-db") || strings.Contains(rec.Body.String(), `"abc"`) {
		t.Fatalf("settings listing leaked values: %s", rec.Body.String())
	}

	rec = get(handler, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "awsboot_remote_calls_total") {
		t.Fatalf("expected remote call metrics to be exposed, got %d", rec.Code)
	}
}

func TestIntegrationMissingEnvironmentTag(t *testing.T) {
	ec2API := &taggedEC2{tags: map[string]string{"Name": "web-1"}}
	ssmAPI := &pagedSSM{}

	metadata := awsenv.NewMetadataClient(instanceIMDS{id: "i-0abc"}, 0, zaptest.NewLogger(t), nil)
	probe := boot.NewIdentityProbe(metadata)
	tags := boot.NewTagStore(probe, awsenv.NewInstanceDescriber(ec2API, nil))
	fetcher := boot.NewParameterFetcher(awsenv.NewParameterStore(ssmAPI, 10, nil))

	_, err := boot.NewResolver(probe, tags, fetcher).Resolve(context.Background())
	if !errors.Is(err, boot.ErrMissingEnvironmentTag) {
		t.Fatalf("expected ErrMissingEnvironmentTag, got %v", err)
	}
	if len(ssmAPI.paths) != 0 {
		t.Fatalf("expected no parameter fetch, got %v", ssmAPI.paths)
	}
}

func awsCalls(t *testing.T, registry *prometheus.Registry, service string) float64 {
	t.Helper()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != "awsboot_remote_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "service" && label.GetValue() == service {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func writeSettings(t *testing.T, dir, name, body string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
