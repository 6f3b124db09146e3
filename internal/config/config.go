// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, logging, storage backends, the reminder scheduler, outbound SMS,
// the recommendation provider, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "carlog-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Neo4jConfig holds the graph store connection settings. Only used when
// StoreBackend is "neo4j".
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

// SchedulerConfig controls the daily reminder cadence.
type SchedulerConfig struct {
	Enabled         bool          // REMINDER_ENABLED
	Time            string        // REMINDER_TIME, local HH:MM
	Timezone        string        // REMINDER_TIMEZONE, IANA name or "Local"
	Concurrency     int           // REMINDER_CONCURRENCY, users processed in parallel
	ShutdownTimeout time.Duration // SHUTDOWN_TIMEOUT, bound on waiting for an in-flight run
	RedisAddr       string        // REDIS_ADDR, enables the distributed run lock
	RedisLockTTL    time.Duration // REDIS_LOCK_TTL
}

// TwilioConfig holds the SMS provider credentials. An empty AccountSID
// disables outbound SMS (every send fails).
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// AdvisorConfig configures the OpenAI-compatible recommendation provider.
type AdvisorConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s, recommendations can be slow
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	StoreBackend string // sqlite|neo4j
	DBPath       string // SQLite path
	Neo4j        Neo4jConfig

	// Reminders
	Scheduler SchedulerConfig
	Twilio    TwilioConfig
	EmailFrom string // sender address for the email hook
	SiteURL   string // link embedded in SMS texts

	// Recommendations
	Advisor AdvisorConfig

	// Operator auth
	JWTSecret string

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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "sqlite")),
		DBPath:       getenv("DB_PATH", "carlog.db"),
		Neo4j: Neo4jConfig{
			URI:         getenv("NEO4J_URI", "bolt://localhost:7687"),
			User:        getenv("NEO4J_USER", "neo4j"),
			Password:    getenv("NEO4J_PASSWORD", ""),
			Database:    getenv("NEO4J_DATABASE", ""),
			Timeout:     getdur("NEO4J_TIMEOUT", 10*time.Second),
			MaxPoolSize: getint("NEO4J_MAX_POOL_SIZE", 50),
		},

		// Reminders
		Scheduler: SchedulerConfig{
			Enabled:         getbool("REMINDER_ENABLED", true),
			Time:            getenv("REMINDER_TIME", "09:00"),
			Timezone:        getenv("REMINDER_TIMEZONE", "Local"),
			Concurrency:     getint("REMINDER_CONCURRENCY", 4),
			ShutdownTimeout: getdur("SHUTDOWN_TIMEOUT", 30*time.Second),
			RedisAddr:       getenv("REDIS_ADDR", ""),
			RedisLockTTL:    getdur("REDIS_LOCK_TTL", 30*time.Minute),
		},
		Twilio: TwilioConfig{
			AccountSID: strings.TrimSpace(getenv("TWILIO_ACCOUNT_SID", "")),
			AuthToken:  strings.TrimSpace(getenv("TWILIO_AUTH_TOKEN", "")),
			FromNumber: strings.TrimSpace(getenv("TWILIO_PHONE_NUMBER", "")),
		},
		EmailFrom: getenv("EMAIL_FROM", "noreply@carlog.local"),
		SiteURL:   getenv("SITE_URL", "carlog.piprivate.net"),

		// Recommendations
		Advisor: AdvisorConfig{
			APIKey:    getenv("OPENAI_API_KEY", ""),
			BaseURL:   getenv("OPENAI_BASE_URL", ""),
			Model:     getenv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getint("OPENAI_MAX_TOKENS", 1024),
			Timeout:   getdur("OPENAI_TIMEOUT", 30*time.Second),
		},

		JWTSecret: getenv("JWT_SECRET", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "carlog-backend"),
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
	cfg.Scheduler.Time = strings.TrimSpace(cfg.Scheduler.Time)
	if cfg.Scheduler.Concurrency < 1 {
		cfg.Scheduler.Concurrency = 1
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
	switch cfg.StoreBackend {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "neo4j":
		if strings.TrimSpace(cfg.Neo4j.URI) == "" {
			return cfg, errors.New("NEO4J_URI must not be empty")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sqlite, neo4j")
	}
	if _, _, err := ParseClock(cfg.Scheduler.Time); err != nil {
		return cfg, err
	}
	if _, err := cfg.Scheduler.Location(); err != nil {
		return cfg, errors.New("REMINDER_TIMEZONE must be a valid IANA time zone")
	}
	if cfg.Scheduler.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.Scheduler.RedisAddr != "" && cfg.Scheduler.RedisLockTTL <= 0 {
		return cfg, errors.New("REDIS_LOCK_TTL must be > 0")
	}
	if cfg.Advisor.MaxTokens <= 0 {
		return cfg, errors.New("OPENAI_MAX_TOKENS must be > 0")
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

// Location resolves the scheduler time zone. "Local" and "" map to the
// process-local zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// ParseClock parses a 24h "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, errors.New("REMINDER_TIME must be HH:MM")
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.New("REMINDER_TIME must be HH:MM")
	}
	return hour, minute, nil
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
