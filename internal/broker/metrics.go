package broker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments the broker's token lifecycle. A nil *Metrics is a
// valid no-op receiver so tests and tools can run without a meter provider.
type Metrics struct {
	tokensIssued metric.Int64Counter
	rejections   metric.Int64Counter
	heartbeats   metric.Int64Counter
}

// NewMetrics registers the broker instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("poscli/broker")

	tokensIssued, err := meter.Int64Counter("trust_tokens_issued_total",
		metric.WithDescription("Connection tokens issued to client terminals"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens_issued counter: %w", err)
	}

	rejections, err := meter.Int64Counter("trust_token_rejections_total",
		metric.WithDescription("Token requests rejected, by reason"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rejections counter: %w", err)
	}

	heartbeats, err := meter.Int64Counter("trust_heartbeats_total",
		metric.WithDescription("Client heartbeats received"))
	if err != nil {
		return nil, fmt.Errorf("failed to create heartbeats counter: %w", err)
	}

	return &Metrics{
		tokensIssued: tokensIssued,
		rejections:   rejections,
		heartbeats:   heartbeats,
	}, nil
}

// Issued records a successful token issue.
func (m *Metrics) Issued(ctx context.Context) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1)
}

// Rejected records a rejected token request with its reason.
func (m *Metrics) Rejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Heartbeat records one received heartbeat.
func (m *Metrics) Heartbeat(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeats.Add(ctx, 1)
}
