package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the counters emitted by the session engine
type Metrics struct {
	logins        metric.Int64Counter
	refreshes     metric.Int64Counter
	revocations   metric.Int64Counter
	registrations metric.Int64Counter
}

// NewMetrics creates the counters on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	logins, err := meter.Int64Counter("aths_logins_total",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	refreshes, err := meter.Int64Counter("aths_token_refresh_total",
		metric.WithDescription("Refresh token exchanges by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh counter: %w", err)
	}

	revocations, err := meter.Int64Counter("aths_token_revocations_total",
		metric.WithDescription("Refresh tokens revoked by reason"))
	if err != nil {
		return nil, fmt.Errorf("failed to create revocations counter: %w", err)
	}

	registrations, err := meter.Int64Counter("aths_registrations_total",
		metric.WithDescription("Completed registrations"))
	if err != nil {
		return nil, fmt.Errorf("failed to create registrations counter: %w", err)
	}

	return &Metrics{
		logins:        logins,
		refreshes:     refreshes,
		revocations:   revocations,
		registrations: registrations,
	}, nil
}

// NoopMetrics returns counters that record nothing
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *Metrics) login(ctx context.Context, outcome string) {
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) refresh(ctx context.Context, outcome string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) revoked(ctx context.Context, reason string, n int64) {
	if n <= 0 {
		return
	}
	m.revocations.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) registered(ctx context.Context) {
	m.registrations.Add(ctx, 1)
}
