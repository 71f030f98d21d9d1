package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/groceryplus/admin-console/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "groceryplus-admin-console"

type AppMetrics struct {
	authLoginCounter     metric.Int64Counter
	authLogoutCounter    metric.Int64Counter
	recoveryCounter      metric.Int64Counter
	clientFailureCounter metric.Int64Counter
	cacheReadCounter     metric.Int64Counter
	invalidationCounter  metric.Int64Counter
	repositoryCounter    metric.Int64Counter
	rateLimitCounter     metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	counters := []struct {
		name string
		dest *metric.Int64Counter
	}{
		{"auth.login.attempts", &m.authLoginCounter},
		{"auth.logout.attempts", &m.authLogoutCounter},
		{"session.recovery.events", &m.recoveryCounter},
		{"http.client.failures", &m.clientFailureCounter},
		{"cache.read.events", &m.cacheReadCounter},
		{"cache.invalidations", &m.invalidationCounter},
		{"repository.operations", &m.repositoryCounter},
		{"gateway.rate_limit.decisions", &m.rateLimitCounter},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dest = counter
	}
	return m, nil
}

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

// UseMeterProvider installs counters on an explicit provider. Tests use it
// with a manual reader.
func UseMeterProvider(mp metric.MeterProvider) error {
	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	return nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSessionRecovery counts interceptor decisions: "started" for the one
// recovery per failure window, "suppressed" for concurrent failures.
func RecordSessionRecovery(ctx context.Context, reason, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.recoveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("outcome", outcome),
	))
}

func RecordClientFailure(ctx context.Context, client, kind string) {
	m := current()
	if m == nil {
		return
	}
	m.clientFailureCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client", client),
		attribute.String("kind", kind),
	))
}

func RecordCacheRead(ctx context.Context, family, result string) {
	m := current()
	if m == nil {
		return
	}
	m.cacheReadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("family", family),
		attribute.String("result", result),
	))
}

func RecordCacheInvalidation(ctx context.Context, family, scope string) {
	m := current()
	if m == nil {
		return
	}
	m.invalidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("family", family),
		attribute.String("scope", scope),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}
