package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingConfig = errors.New("missing required configuration")

const minCMSTokenLength = 30

type Config struct {
	Env string

	NodeURL     string
	CMSURL      string
	CMSToken    string
	AppOpco     string
	NodeTimeout time.Duration
	CMSTimeout  time.Duration

	LoginRoute        string
	ProfileClearDelay time.Duration

	StorageBackend   string
	StoragePath      string
	StorageNamespace string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	DatabaseURL      string

	CacheStaleTime         time.Duration
	CacheGCTime            time.Duration
	CacheNegativeTTL       time.Duration
	CacheRetry             int
	CachePersistedFamilies []string
	CacheFamilyStaleTimes  map[string]time.Duration
	CacheSweepInterval     time.Duration

	GatewayAddr              string
	GatewayLoginRateLimitRPM int

	LogLevel  string
	LogFormat string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
}

// Load reads an optional env file and then the process environment.
// Existing environment variables always win over the file.
func Load(envFile string) (*Config, error) {
	cfg, err := load(envFile)
	recordLoad(context.Background(), cfg, err)
	return cfg, err
}

func load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		NodeURL:                  getEnv("NODE_URL", "http://localhost:3000/api"),
		CMSURL:                   getEnv("CMS_URL", "http://localhost:3005/api"),
		CMSToken:                 strings.TrimSpace(os.Getenv("CMS_TOKEN")),
		AppOpco:                  getEnv("APP_OPCO", "INDIA"),
		LoginRoute:               getEnv("LOGIN_ROUTE", "/login"),
		StorageBackend:           strings.ToLower(getEnv("STORAGE_BACKEND", "bolt")),
		StoragePath:              getEnv("STORAGE_PATH", defaultStoragePath()),
		StorageNamespace:         getEnv("STORAGE_NAMESPACE", "groceryplus-admin"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		CachePersistedFamilies:   splitList(getEnv("CACHE_PERSISTED_FAMILIES", "categories,products,banners")),
		GatewayAddr:              getEnv("GATEWAY_ADDR", "127.0.0.1:8088"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "text"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "groceryplus-admin-console"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"NODE_TIMEOUT", 30 * time.Second, &cfg.NodeTimeout},
		{"CMS_TIMEOUT", 10 * time.Second, &cfg.CMSTimeout},
		{"PROFILE_CLEAR_DELAY", 100 * time.Millisecond, &cfg.ProfileClearDelay},
		{"CACHE_STALE_TIME", 5 * time.Minute, &cfg.CacheStaleTime},
		{"CACHE_GC_TIME", 5 * time.Minute, &cfg.CacheGCTime},
		{"CACHE_NEGATIVE_TTL", 5 * time.Second, &cfg.CacheNegativeTTL},
		{"CACHE_SWEEP_INTERVAL", time.Minute, &cfg.CacheSweepInterval},
		{"OTEL_METRICS_EXPORT_INTERVAL", 15 * time.Second, &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.CacheRetry, err = getInt("CACHE_RETRY", 1); err != nil {
		return nil, err
	}
	if cfg.GatewayLoginRateLimitRPM, err = getInt("GATEWAY_LOGIN_RATE_LIMIT_RPM", 20); err != nil {
		return nil, err
	}
	if cfg.CacheFamilyStaleTimes, err = parseFamilyDurations(os.Getenv("CACHE_FAMILY_STALE_TIMES")); err != nil {
		return nil, err
	}
	bools := []struct {
		key  string
		def  bool
		dest *bool
	}{
		{"OTEL_EXPORTER_OTLP_INSECURE", true, &cfg.OTELExporterOTLPInsecure},
		{"OTEL_METRICS_ENABLED", false, &cfg.OTELMetricsEnabled},
		{"OTEL_TRACING_ENABLED", false, &cfg.OTELTracingEnabled},
		{"OTEL_LOGS_ENABLED", false, &cfg.OTELLogsEnabled},
	}
	for _, b := range bools {
		if *b.dest, err = getBool(b.key, b.def); err != nil {
			return nil, err
		}
	}
	if cfg.OTELTraceSamplingRatio, err = getFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate fails closed: there is no built-in fallback for the CMS token.
func (c *Config) Validate() error {
	var errs []error
	if c.CMSToken == "" {
		errs = append(errs, fmt.Errorf("%w: CMS_TOKEN", ErrMissingConfig))
	} else if len(c.CMSToken) < minCMSTokenLength {
		errs = append(errs, fmt.Errorf("CMS_TOKEN is too short (%d < %d characters)", len(c.CMSToken), minCMSTokenLength))
	}
	for key, raw := range map[string]string{"NODE_URL": c.NodeURL, "CMS_URL": c.CMSURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", key, raw))
		}
	}
	switch c.StorageBackend {
	case "memory", "bolt", "redis":
	case "sqlite", "postgres":
		if c.DatabaseURL == "" && c.StorageBackend == "postgres" {
			errs = append(errs, fmt.Errorf("%w: DATABASE_URL for postgres storage", ErrMissingConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.StorageBackend == "bolt" && c.StoragePath == "" {
		errs = append(errs, fmt.Errorf("%w: STORAGE_PATH for bolt storage", ErrMissingConfig))
	}
	if !strings.HasPrefix(c.LoginRoute, "/") {
		errs = append(errs, fmt.Errorf("LOGIN_ROUTE must start with /, got %q", c.LoginRoute))
	}
	if c.NodeTimeout <= 0 || c.CMSTimeout <= 0 {
		errs = append(errs, errors.New("request timeouts must be positive"))
	}
	if c.CacheRetry < 0 {
		errs = append(errs, errors.New("CACHE_RETRY must not be negative"))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLING_RATIO must be within [0,1]"))
	}
	return errors.Join(errs...)
}

// StaleTimeFor returns the time-to-live configured for a resource family.
func (c *Config) StaleTimeFor(family string) time.Duration {
	if d, ok := c.CacheFamilyStaleTimes[family]; ok {
		return d
	}
	return c.CacheStaleTime
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".groceryplus-admin/state.db"
	}
	return dir + "/groceryplus-admin/state.db"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFamilyDurations parses "products=2m,dashboard=30s".
func parseFamilyDurations(raw string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration)
	for _, item := range splitList(raw) {
		family, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(family) == "" {
			return nil, fmt.Errorf("parse CACHE_FAMILY_STALE_TIMES: invalid item %q", item)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("parse CACHE_FAMILY_STALE_TIMES: %w", err)
		}
		out[strings.TrimSpace(family)] = d
	}
	return out, nil
}
