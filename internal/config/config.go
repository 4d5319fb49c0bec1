// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, provider credentials,
// rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "savethebeat")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SlackConfig holds the Slack app credentials.
type SlackConfig struct {
	SigningSecret string // SLACK_SIGNING_SECRET
	BotToken      string // SLACK_BOT_TOKEN (xoxb-…)
}

// SpotifyConfig holds the Spotify app credentials.
type SpotifyConfig struct {
	ClientID     string // SPOTIFY_CLIENT_ID
	ClientSecret string // SPOTIFY_CLIENT_SECRET
	RedirectURL  string // SPOTIFY_REDIRECT_URL; defaults to BASE_URL + "/callback"
}

// WorkerConfig sizes the background pipeline pool.
type WorkerConfig struct {
	Count      int           // WORKER_COUNT
	QueueSize  int           // WORKER_QUEUE_SIZE
	JobTimeout time.Duration // WORKER_JOB_TIMEOUT, bounds one pipeline run
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	BaseURL     string // public base URL used for account-linking links
	APIBasePath string // base path for API routes
	DBPath      string // SQLite path

	// Providers
	Slack           SlackConfig
	Spotify         SpotifyConfig
	ProviderTimeout time.Duration // per outbound provider call

	// Workers
	Worker WorkerConfig

	// OAuth linking
	OAuthStateTTL time.Duration // TTL of pending connect states

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		DBPath:      getenv("DB_PATH", "app.db"),

		// Providers
		Slack: SlackConfig{
			SigningSecret: getenv("SLACK_SIGNING_SECRET", ""),
			BotToken:      getenv("SLACK_BOT_TOKEN", ""),
		},
		Spotify: SpotifyConfig{
			ClientID:     getenv("SPOTIFY_CLIENT_ID", ""),
			ClientSecret: getenv("SPOTIFY_CLIENT_SECRET", ""),
			RedirectURL:  getenv("SPOTIFY_REDIRECT_URL", ""),
		},
		ProviderTimeout: getdur("PROVIDER_TIMEOUT", 10*time.Second),

		// Workers
		Worker: WorkerConfig{
			Count:      getint("WORKER_COUNT", 4),
			QueueSize:  getint("WORKER_QUEUE_SIZE", 64),
			JobTimeout: getdur("WORKER_JOB_TIMEOUT", 60*time.Second),
		},

		// OAuth linking
		OAuthStateTTL: getdur("OAUTH_STATE_TTL", 10*time.Minute),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "savethebeat"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Spotify.RedirectURL == "" {
		cfg.Spotify.RedirectURL = cfg.BaseURL + "/callback"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return cfg, errors.New("BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Slack.SigningSecret) == "" {
		return cfg, errors.New("SLACK_SIGNING_SECRET must not be empty")
	}
	if strings.TrimSpace(cfg.Slack.BotToken) == "" {
		return cfg, errors.New("SLACK_BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.Spotify.ClientID) == "" || strings.TrimSpace(cfg.Spotify.ClientSecret) == "" {
		return cfg, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must not be empty")
	}
	if cfg.ProviderTimeout <= 0 {
		return cfg, errors.New("PROVIDER_TIMEOUT must be > 0")
	}
	if cfg.Worker.Count < 1 {
		return cfg, errors.New("WORKER_COUNT must be >= 1")
	}
	if cfg.Worker.QueueSize < 1 {
		return cfg, errors.New("WORKER_QUEUE_SIZE must be >= 1")
	}
	if cfg.Worker.JobTimeout <= 0 {
		return cfg, errors.New("WORKER_JOB_TIMEOUT must be > 0")
	}
	if cfg.OAuthStateTTL <= 0 {
		return cfg, errors.New("OAUTH_STATE_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
