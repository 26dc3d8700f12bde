package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends.
const (
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
	SessionBackendMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port               string
	Env                string
	JWTSecret          string
	CORSAllowedOrigins []string

	// InboundRateLimit caps messages accepted per phone per minute.
	InboundRateLimit int

	DB        DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Reporting ReportingConfig
	Twilio    TwilioConfig
	Telerivet TelerivetConfig
	CrisisMap CrisisMapConfig
	Worker    WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SessionConfig controls where conversation sessions live and how turns
// are serialized.
type SessionConfig struct {
	Backend  string
	// TTL expires idle Redis sessions when non-zero.
	TTL      time.Duration
	LockTTL  time.Duration
	LockWait time.Duration
}

// ReportingConfig contains the reporting time zone and reference data files
// loaded at startup.
type ReportingConfig struct {
	Timezone      string
	SurveysFile   string
	LocationsFile string
}

// TwilioConfig verifies inbound Twilio webhooks. Verification is skipped
// when AuthToken is empty.
type TwilioConfig struct {
	AuthToken     string
	PublicBaseURL string
}

// TelerivetConfig holds the shared secret expected in Telerivet webhooks.
type TelerivetConfig struct {
	WebhookSecret string
}

// CrisisMapConfig points report delivery at a Crisis Map instance.
type CrisisMapConfig struct {
	BaseURL   string
	SourceURL string
	Timeout   time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	DeliveryInterval time.Duration
	DeliveryBatch    int
	ReloadInterval   time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", "localhost:3000")
	cfg.InboundRateLimit = getEnvInt("INBOUND_RATE_LIMIT", 20)

	// Database
	cfg.DB = loadDatabase()

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Reporting
	cfg.Reporting = ReportingConfig{
		Timezone:      getEnv("REPORT_TIMEZONE", "Africa/Lagos"),
		SurveysFile:   getEnv("SURVEYS_FILE", ""),
		LocationsFile: getEnv("LOCATIONS_FILE", ""),
	}

	// SMS providers
	cfg.Twilio = TwilioConfig{
		AuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
	}
	cfg.Telerivet = TelerivetConfig{
		WebhookSecret: getEnv("TELERIVET_WEBHOOK_SECRET", ""),
	}

	// Crisis Map
	cfg.CrisisMap = CrisisMapConfig{
		BaseURL:   strings.TrimRight(getEnv("CRISISMAP_BASE_URL", "https://googlecrisismap.appspot.com"), "/"),
		SourceURL: getEnv("CRISISMAP_SOURCE_URL", "http://localhost:8080"),
	}

	// Durations
	var err error
	cfg.Session.Backend = strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendRedis))
	if cfg.Session.TTL, err = parseDurationEnv("SESSION_TTL", "0"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.Session.LockTTL, err = parseDurationEnv("SESSION_LOCK_TTL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_LOCK_TTL: %w", err)
	}
	if cfg.Session.LockWait, err = parseDurationEnv("SESSION_LOCK_WAIT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_LOCK_WAIT: %w", err)
	}
	if cfg.CrisisMap.Timeout, err = parseDurationEnv("CRISISMAP_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid CRISISMAP_TIMEOUT: %w", err)
	}
	if cfg.Worker.DeliveryInterval, err = parseDurationEnv("DELIVERY_INTERVAL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_INTERVAL: %w", err)
	}
	cfg.Worker.DeliveryBatch = getEnvInt("DELIVERY_BATCH", 50)
	if cfg.Worker.ReloadInterval, err = parseDurationEnv("RELOAD_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid RELOAD_INTERVAL: %w", err)
	}

	switch cfg.Session.Backend {
	case SessionBackendRedis, SessionBackendPostgres, SessionBackendMemory:
	default:
		return nil, fmt.Errorf("invalid SESSION_BACKEND %q: expected %s, %s or %s",
			cfg.Session.Backend, SessionBackendRedis, SessionBackendPostgres, SessionBackendMemory)
	}

	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// LoadDatabase reads only the DB_* settings, for tools that need nothing
// else.
func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	db := loadDatabase()
	if err := db.validate(); err != nil {
		return nil, err
	}
	return &db, nil
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func (c DatabaseConfig) validate() error {
	if c.Host == "" || c.User == "" || c.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	return nil
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvList splits a comma-separated environment variable.
func getEnvList(key, def string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
