package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry owns the meter provider and the Prometheus scrape handler
type Telemetry struct {
	serviceName   string
	meterProvider *metric.MeterProvider
	handler       http.Handler
}

// InitTelemetry initializes OpenTelemetry metrics exported in Prometheus format.
// Go runtime and process collectors are registered alongside.
func InitTelemetry(serviceName string) (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	return &Telemetry{
		serviceName:   serviceName,
		meterProvider: meterProvider,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}, nil
}

// Meter returns the meter application instruments are created on
func (t *Telemetry) Meter() otelmetric.Meter {
	return t.meterProvider.Meter(t.serviceName)
}

func (t *Telemetry) MeterProvider() *metric.MeterProvider {
	return t.meterProvider
}

// Handler serves the Prometheus scrape endpoint
func (t *Telemetry) Handler() http.Handler {
	return t.handler
}

// Shutdown flushes and stops the meter provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
