package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"herald/internal/config"
)

const (
	serviceNamespace = "herald"

	// TopicKey tags the resource with the user-created topic the service reads or writes.
	TopicKey = attribute.Key("herald.topic")
)

type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.tp.Tracer(name)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

// Init installs the global tracer provider and the W3C propagator used on
// broker headers. With tracing disabled a local no-export provider is returned
// and the globals are left alone.
func Init(cfg *config.Config, serviceName string) (*TracerProvider, error) {
	if !cfg.Tracing.Enabled {
		return &TracerProvider{tp: sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Tracing.OTLP.Endpoint),
	}
	if cfg.Tracing.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg, serviceName)),
		sdktrace.WithSampler(createSampler(cfg.Tracing.Sampler)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// newResource describes the emitting service. tracing.service_name overrides
// the binary's own name so several replicas can report under one service.
func newResource(cfg *config.Config, serviceName string) *resource.Resource {
	name := cfg.Tracing.ServiceName
	if name == "" {
		name = serviceName
	}
	if name == "" {
		name = serviceNamespace
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceNamespace(serviceNamespace),
	}
	if cfg.Tracing.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Tracing.Environment))
	}
	if cfg.Broker.Type != "" {
		attrs = append(attrs, semconv.MessagingSystemKey.String(cfg.Broker.Type))
	}
	if cfg.Broker.Kafka.Topic != "" {
		attrs = append(attrs, TopicKey.String(cfg.Broker.Kafka.Topic))
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func createSampler(cfg config.SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.Param)
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param))
	default:
		return sdktrace.AlwaysSample()
	}
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
