// Package otel wires OpenTelemetry metrics for the daemon: a Prometheus-exported meter
// provider plus the instruments the state store, SSE hub and HTTP layer record into.
package otel

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/kshoda-lgtm/vexum-management"

// Telemetry is an installed meter provider and the scrape handler for its registry.
type Telemetry struct {
	Handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// Setup installs a global MeterProvider exporting to a private Prometheus registry.
// The returned Handler serves that registry on /metrics.
func Setup(ctx context.Context, service, version string) (*Telemetry, error) {
	if service == "" {
		service = "vexum"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(service)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersion(version))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(provider)
	return &Telemetry{
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		provider: provider,
	}, nil
}

// Shutdown flushes and stops the provider. Recording after Shutdown is a no-op.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return errors.New("otel: telemetry not set up")
	}
	return t.provider.Shutdown(ctx)
}

// Attribute keys shared by the instruments.
var (
	AttrKind      = attribute.Key("kind")
	AttrOperation = attribute.Key("operation")
	AttrOutcome   = attribute.Key("outcome")
	AttrStatus    = attribute.Key("status")
)
