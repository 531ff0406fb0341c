package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	p, err := Init(context.Background(), DefaultConfig("dashboard-api"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Enabled() {
		t.Fatal("no endpoint configured but an exporter was installed")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	fields := otel.GetTextMapPropagator().Fields()
	if !strings.Contains(strings.Join(fields, ","), "traceparent") {
		t.Fatalf("propagator fields = %v", fields)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := samplerFor(tt.rate).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+tt.want) {
			t.Errorf("samplerFor(%v) = %s", tt.rate, desc)
		}
	}
}

func TestServiceResource(t *testing.T) {
	cfg := DefaultConfig("dashboard-api")
	cfg.Environment = "staging"
	res, err := serviceResource(cfg)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	if found["service.name"] != "dashboard-api" || found["deployment.environment"] != "staging" {
		t.Fatalf("attributes = %v", found)
	}
}
