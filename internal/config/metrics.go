package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordLoad counts configuration loads by storage backend and failure class.
// The meter is resolved lazily so a provider installed after the first load
// still receives later events.
func recordLoad(ctx context.Context, cfg *Config, err error) {
	loadMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("groceryplus-admin-console").Int64Counter("config.load.events")
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	backend := "unknown"
	if cfg != nil {
		backend = storageLabel(cfg.StorageBackend)
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("storage_backend", backend),
		attribute.String("outcome", outcome),
		attribute.String("error_class", classifyLoadError(err)),
	))
}

// storageLabel keeps the backend attribute to a closed set.
func storageLabel(backend string) string {
	switch v := strings.TrimSpace(strings.ToLower(backend)); v {
	case "memory", "bolt", "redis", "sqlite", "postgres":
		return v
	case "":
		return "unknown"
	default:
		return "other"
	}
}

func classifyLoadError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMissingConfig):
		return "missing"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.HasPrefix(msg, "load env file:"):
		return "env_file"
	case strings.HasPrefix(msg, "validate config:"):
		return "validation"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
