package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/groceryplus/admin-console/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the OTel providers of one console process. Providers exist even
// when export is disabled so instruments never need nil checks.
type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
	exporting      []string
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, mp.Shutdown(ctx))
	}
	rt := &Runtime{MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp}
	if cfg.OTELMetricsEnabled {
		rt.exporting = append(rt.exporting, "metrics")
	}
	if cfg.OTELTracingEnabled {
		rt.exporting = append(rt.exporting, "traces")
	}
	if cfg.OTELLogsEnabled && lp != nil {
		rt.exporting = append(rt.exporting, "logs")
	}
	if len(rt.exporting) > 0 {
		logger.Info("otel export enabled", "signals", rt.exporting, "endpoint", cfg.OTELExporterOTLPEndpoint)
	}
	return rt, nil
}

// Exporting reports whether any signal leaves the process.
func (r *Runtime) Exporting() bool {
	return r != nil && len(r.exporting) > 0
}

// Shutdown flushes metrics, then traces, then logs.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.MeterProvider != nil {
		if err := r.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics provider: %w", err))
		}
	}
	if r.TracerProvider != nil {
		if err := r.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown traces provider: %w", err))
		}
	}
	if r.LoggerProvider != nil {
		if err := r.LoggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown logs provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
