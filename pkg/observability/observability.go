// Package observability wires OpenTelemetry tracing and metrics for the
// Turn Controller: one span per handle() call, plus counters/histograms
// for verb latency, deny-reason counts, and budget consumption. Exporter
// errors are logged, never fatal (spec.md §5 failure recovery).
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
	BatchTimeout time.Duration
	Enabled      bool
	Insecure     bool
}

// DefaultConfig returns development-friendly defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "turnctl",
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
		Enabled:      true,
		Insecure:     true,
	}
}

// Provider manages the tracer/meter and the Turn Controller's instruments.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	verbCounter      metric.Int64Counter
	denyCounter      metric.Int64Counter
	verbDurationHist metric.Float64Histogram
	budgetUsedHist   metric.Int64Histogram
}

// New creates a Provider. When config.Enabled is false, every method is a
// safe no-op (turnctl must run with telemetry off in environments without
// a collector).
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{config: config, logger: slog.Default().With("component", "observability")}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("observability: init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("observability: init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("turnctl.dispatcher")
	p.meter = otel.Meter("turnctl.dispatcher")

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("observability: init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized", "service", config.ServiceName, "endpoint", config.OTLPEndpoint)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error
	if p.verbCounter, err = p.meter.Int64Counter("turnctl.verbs.total",
		metric.WithDescription("Total number of verb invocations"), metric.WithUnit("{verb}")); err != nil {
		return err
	}
	if p.denyCounter, err = p.meter.Int64Counter("turnctl.deny_reasons.total",
		metric.WithDescription("Total number of deny reasons issued"), metric.WithUnit("{reason}")); err != nil {
		return err
	}
	if p.verbDurationHist, err = p.meter.Float64Histogram("turnctl.verb.duration",
		metric.WithDescription("Verb handler duration in seconds"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0)); err != nil {
		return err
	}
	if p.budgetUsedHist, err = p.meter.Int64Histogram("turnctl.budget.used_tokens",
		metric.WithDescription("Used-token count recorded per turn"), metric.WithUnit("{token}")); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and closes the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown trace provider failed", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown metric provider failed", "error", err)
		}
	}
	return nil
}

// StartHandleSpan starts the per-handle() span for a verb invocation.
func (p *Provider) StartHandleSpan(ctx context.Context, verb, runSessionID string) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, "turnctl.handle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("turnctl.verb", verb),
			attribute.String("turnctl.run_session_id", runSessionID),
		),
	)
}

// RecordVerb increments the verb counter and records its duration.
func (p *Provider) RecordVerb(ctx context.Context, verb string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("turnctl.verb", verb))
	if p.verbCounter != nil {
		p.verbCounter.Add(ctx, 1, attrs)
	}
	if p.verbDurationHist != nil {
		p.verbDurationHist.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordDenyReasons increments the deny-reason counter once per code.
func (p *Provider) RecordDenyReasons(ctx context.Context, verb string, codes []string) {
	if p.denyCounter == nil {
		return
	}
	for _, code := range codes {
		p.denyCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("turnctl.verb", verb),
			attribute.String("turnctl.deny_code", code),
		))
	}
}

// RecordBudgetUsage records the session's used-token count after a turn.
func (p *Provider) RecordBudgetUsage(ctx context.Context, usedTokens int64) {
	if p.budgetUsedHist != nil {
		p.budgetUsedHist.Record(ctx, usedTokens)
	}
}
