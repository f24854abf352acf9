package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/secretorange/awsboot/internal/boot"
)

type staticIdentity struct {
	id string
}

func (s staticIdentity) InstanceID(context.Context) string { return s.id }

func (s staticIdentity) IsManagedInstance(context.Context) bool { return s.id != "" }

func TestRenderMasksValues(t *testing.T) {
	bundle := boot.Bundle{
		Environment:    "Staging",
		LoggingEnabled: false,
		Parameters:     map[string]string{"api:key": "abc", "db:password": "hunter2"},
	}

	var buf bytes.Buffer
	if err := render(&buf, bundle, staticIdentity{id: "i-0abc"}, false); err != nil {
		t.Fatalf("render returned error: %v", err)
	}

	var got report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}
	if got.Environment != "Staging" || got.LoggingEnabled || !got.Managed || got.InstanceID != "i-0abc" {
		t.Fatalf("unexpected report: %+v", got)
	}
	for key, value := range got.Parameters {
		if value != maskedValue {
			t.Fatalf("expected %s to be masked, got %q", key, value)
		}
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("secret value leaked into output:\n%s", buf.String())
	}
}

func TestRenderShowValues(t *testing.T) {
	bundle := boot.Bundle{
		Environment:    "Staging",
		LoggingEnabled: true,
		Parameters:     map[string]string{"api:key": "abc"},
	}

	var buf bytes.Buffer
	if err := render(&buf, bundle, nil, true); err != nil {
		t.Fatalf("render returned error: %v", err)
	}

	var got report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if got.Parameters["api:key"] != "abc" {
		t.Fatalf("expected value to be shown, got %+v", got.Parameters)
	}
	if got.Managed || got.InstanceID != "" {
		t.Fatalf("expected unmanaged report without identity, got %+v", got)
	}
}

func TestRenderLocalBundle(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, boot.LocalBundle(), staticIdentity{}, false); err != nil {
		t.Fatalf("render returned error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "environment: LocalDevelopment\n") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}
