package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/platform/resilience"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	LogLevel           logging.Level
	SwaggerEnabled     bool

	Schedule        draw.Schedule
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration

	OfficialBaseURL      string
	OfficialTimeout      time.Duration
	OfficialRecentWindow int
	OfficialConcurrency  int
	OfficialCircuit      resilience.BreakerConfig

	SecondaryEnabled       bool
	SecondaryProxyURL      string
	SecondaryTargetURL     string
	SecondaryTimeout       time.Duration
	SecondaryPageSize      int
	SecondaryBatchSize     int
	SecondaryBatchDelay    time.Duration
	SecondaryExtraPages    int
	SecondaryRatePerSecond float64
	SecondaryCircuit       resilience.BreakerConfig

	EmergencyVerifiedFile string

	MetricsEnabled             bool
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "lotto-feed"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	swaggerDefault := "true"
	if appEnv == EnvProd {
		swaggerDefault = "false"
	}
	cfg.SwaggerEnabled, err = strconv.ParseBool(getEnv("SWAGGER_ENABLED", swaggerDefault))
	if err != nil {
		return Config{}, fmt.Errorf("parse SWAGGER_ENABLED: %w", err)
	}

	if cfg.ReadTimeout, err = getEnvAsDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = getEnvAsDuration("APP_WRITE_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getEnvAsDuration("APP_SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}

	if cfg.Schedule, err = loadSchedule(); err != nil {
		return Config{}, err
	}

	if cfg.CacheTTL, err = getEnvAsDuration("CACHE_TTL", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = getEnvAsDuration("REFRESH_INTERVAL", "5m"); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTimeout, err = getEnvAsDuration("REFRESH_TIMEOUT", "2m"); err != nil {
		return Config{}, err
	}

	cfg.OfficialBaseURL = strings.TrimSpace(getEnv("OFFICIAL_BASE_URL", "https://www.dhlottery.co.kr/common.do"))
	if cfg.OfficialTimeout, err = getEnvAsDuration("OFFICIAL_TIMEOUT", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.OfficialRecentWindow, err = getEnvAsPositiveInt("OFFICIAL_RECENT_WINDOW", 10); err != nil {
		return Config{}, err
	}
	if cfg.OfficialConcurrency, err = getEnvAsPositiveInt("OFFICIAL_CONCURRENCY", 10); err != nil {
		return Config{}, err
	}
	if cfg.OfficialCircuit, err = loadCircuit("OFFICIAL", string(draw.SourceOfficial)); err != nil {
		return Config{}, err
	}

	cfg.SecondaryProxyURL = strings.TrimSpace(getEnv("SECONDARY_PROXY_URL", ""))
	cfg.SecondaryTargetURL = strings.TrimSpace(getEnv("SECONDARY_TARGET_URL", ""))
	cfg.SecondaryEnabled, err = strconv.ParseBool(getEnv("SECONDARY_ENABLED", strconv.FormatBool(cfg.SecondaryTargetURL != "")))
	if err != nil {
		return Config{}, fmt.Errorf("parse SECONDARY_ENABLED: %w", err)
	}
	if cfg.SecondaryEnabled && cfg.SecondaryTargetURL == "" {
		return Config{}, fmt.Errorf("SECONDARY_TARGET_URL is required when SECONDARY_ENABLED=true")
	}
	if cfg.SecondaryTimeout, err = getEnvAsDuration("SECONDARY_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}
	if cfg.SecondaryPageSize, err = getEnvAsPositiveInt("SECONDARY_PAGE_SIZE", 50); err != nil {
		return Config{}, err
	}
	if cfg.SecondaryBatchSize, err = getEnvAsPositiveInt("SECONDARY_BATCH_SIZE", 3); err != nil {
		return Config{}, err
	}
	cfg.SecondaryBatchDelay, err = time.ParseDuration(getEnv("SECONDARY_BATCH_DELAY", "300ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SECONDARY_BATCH_DELAY: %w", err)
	}
	if cfg.SecondaryBatchDelay == 0 {
		// The client reads zero as its default; an explicit zero here means no pause.
		cfg.SecondaryBatchDelay = -1
	}
	cfg.SecondaryExtraPages, err = getEnvAsInt("SECONDARY_EXTRA_PAGES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse SECONDARY_EXTRA_PAGES: %w", err)
	}
	if cfg.SecondaryExtraPages < 0 {
		return Config{}, fmt.Errorf("SECONDARY_EXTRA_PAGES must be >= 0")
	}
	cfg.SecondaryRatePerSecond, err = strconv.ParseFloat(getEnv("SECONDARY_RATE_PER_SECOND", "5"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse SECONDARY_RATE_PER_SECOND: %w", err)
	}
	if cfg.SecondaryRatePerSecond <= 0 {
		return Config{}, fmt.Errorf("SECONDARY_RATE_PER_SECOND must be > 0")
	}
	if cfg.SecondaryCircuit, err = loadCircuit("SECONDARY", string(draw.SourceSecondary)); err != nil {
		return Config{}, err
	}

	cfg.EmergencyVerifiedFile = strings.TrimSpace(getEnv("EMERGENCY_VERIFIED_FILE", ""))

	cfg.MetricsEnabled, err = strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}

	cfg.PprofEnabled, err = strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))

	cfg.UptraceEnabled, err = strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	cfg.PyroscopeEnabled, err = strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	if cfg.PyroscopeUploadRate, err = getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadSchedule() (draw.Schedule, error) {
	schedule := draw.DefaultSchedule()

	if name := strings.TrimSpace(getEnv("DRAW_TIMEZONE", "")); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			if name != draw.DefaultTimezone {
				return draw.Schedule{}, fmt.Errorf("parse DRAW_TIMEZONE: %w", err)
			}
			loc = draw.LoadLocation(name)
		}
		schedule.Location = loc
		schedule.ReferenceDate = time.Date(
			schedule.ReferenceDate.Year(), schedule.ReferenceDate.Month(), schedule.ReferenceDate.Day(),
			0, 0, 0, 0, loc,
		)
	}

	weekday, err := parseWeekday(getEnv("DRAW_WEEKDAY", schedule.Weekday.String()))
	if err != nil {
		return draw.Schedule{}, err
	}
	schedule.Weekday = weekday

	hour, minute, err := parseClock(getEnv("DRAW_TIME", fmt.Sprintf("%02d:%02d", schedule.Hour, schedule.Minute)))
	if err != nil {
		return draw.Schedule{}, err
	}
	schedule.Hour, schedule.Minute = hour, minute

	if schedule.WaitingWindow, err = getEnvAsDuration("DRAW_WAITING_WINDOW", schedule.WaitingWindow.String()); err != nil {
		return draw.Schedule{}, err
	}
	if schedule.RetryWindow, err = getEnvAsDuration("DRAW_RETRY_WINDOW", schedule.RetryWindow.String()); err != nil {
		return draw.Schedule{}, err
	}

	if schedule.ReferenceRound, err = getEnvAsPositiveInt("DRAW_REFERENCE_ROUND", schedule.ReferenceRound); err != nil {
		return draw.Schedule{}, err
	}
	if raw := strings.TrimSpace(getEnv("DRAW_REFERENCE_DATE", "")); raw != "" {
		date, err := time.ParseInLocation(time.DateOnly, raw, schedule.Location)
		if err != nil {
			return draw.Schedule{}, fmt.Errorf("parse DRAW_REFERENCE_DATE: %w", err)
		}
		schedule.ReferenceDate = date
	}

	if err := schedule.Validate(); err != nil {
		return draw.Schedule{}, fmt.Errorf("invalid draw schedule: %w", err)
	}
	return schedule, nil
}

func loadCircuit(prefix, name string) (resilience.BreakerConfig, error) {
	out := resilience.DefaultBreakerConfig(name)

	enabled, err := strconv.ParseBool(getEnv(prefix+"_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return out, fmt.Errorf("parse %s_CIRCUIT_ENABLED: %w", prefix, err)
	}
	out.Enabled = enabled

	if out.FailureThreshold, err = getEnvAsPositiveInt(prefix+"_CIRCUIT_FAILURE_COUNT", out.FailureThreshold); err != nil {
		return out, err
	}
	if out.OpenTimeout, err = getEnvAsDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", out.OpenTimeout.String()); err != nil {
		return out, err
	}
	if out.HalfOpenMaxReq, err = getEnvAsPositiveInt(prefix+"_CIRCUIT_HALF_OPEN_MAX_REQ", out.HalfOpenMaxReq); err != nil {
		return out, err
	}
	return out, nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if value == name || value == name[:3] {
			return day, nil
		}
	}
	return 0, fmt.Errorf("invalid DRAW_WEEKDAY %q", raw)
}

func parseClock(raw string) (int, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("parse DRAW_TIME %q: expected HH:MM", raw)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsPositiveInt(key string, fallback int) (int, error) {
	out, err := getEnvAsInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out < 1 {
		return 0, fmt.Errorf("%s must be >= 1", key)
	}
	return out, nil
}

func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
