package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Security  SecurityConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	Premium   PremiumConfig
	Media     MediaConfig
	Store     StoreConfig
	RateLimit RateLimitConfig

	// SeedDemoData inserts the demo account and catalog at start-up.
	SeedDemoData bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string // Full PostgreSQL URL
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// Addr is the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds token settings
type SecurityConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// PremiumConfig controls entitlement and quota policy.
type PremiumConfig struct {
	Duration          time.Duration
	FreePlaylistLimit int
	// StatusOwnerOnly restricts GET /premium/status/{user_id} to the user itself.
	StatusOwnerOnly bool
}

// MediaConfig selects where uploaded audio lives.
type MediaConfig struct {
	Backend  string // disk, s3
	Dir      string
	S3Bucket string
	S3Region string
	S3Prefix string
}

// StoreConfig bounds database calls.
type StoreConfig struct {
	Timeout time.Duration
}

// RateLimitConfig throttles the credential endpoints per client address.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// Load reads configuration from the environment, after merging an optional
// .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := cfg.loadDatabase(); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	if err := cfg.loadServer(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.loadSecurity(); err != nil {
		return nil, fmt.Errorf("load security config: %w", err)
	}
	cfg.loadCORS()
	cfg.loadLogging()
	if err := cfg.loadPremium(); err != nil {
		return nil, fmt.Errorf("load premium config: %w", err)
	}
	cfg.loadMedia()
	if err := cfg.loadStore(); err != nil {
		return nil, fmt.Errorf("load store config: %w", err)
	}
	if err := cfg.loadRateLimit(); err != nil {
		return nil, fmt.Errorf("load rate limit config: %w", err)
	}

	seed, err := boolEnv("SEED_DEMO_DATA", false)
	if err != nil {
		return nil, err
	}
	cfg.SeedDemoData = seed

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadDatabase() error {
	c.Database.URL = os.Getenv("DATABASE_URL")
	if c.Database.URL != "" {
		return nil
	}

	c.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	c.Database.User = os.Getenv("DB_USER")
	c.Database.Password = os.Getenv("DB_PASSWORD")
	c.Database.Name = os.Getenv("DB_NAME")
	c.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	c.Database.Port = port

	if c.Database.Host != "" && c.Database.User != "" && c.Database.Name != "" {
		c.Database.URL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
			c.Database.SSLMode,
		)
	}
	return nil
}

func (c *Config) loadServer() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")
	return nil
}

func (c *Config) loadSecurity() error {
	c.Security.JWTSecret = os.Getenv("JWT_SECRET")

	ttl, err := durationEnv("TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return err
	}
	c.Security.TokenTTL = ttl
	return nil
}

func (c *Config) loadCORS() {
	c.CORS.AllowedOrigins = parseList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))
}

func (c *Config) loadLogging() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "json")
}

func (c *Config) loadPremium() error {
	duration, err := durationEnv("PREMIUM_DURATION", 30*24*time.Hour)
	if err != nil {
		return err
	}
	c.Premium.Duration = duration

	limit, err := intEnv("FREE_PLAYLIST_LIMIT", 3)
	if err != nil {
		return err
	}
	c.Premium.FreePlaylistLimit = limit

	ownerOnly, err := boolEnv("PREMIUM_STATUS_OWNER_ONLY", false)
	if err != nil {
		return err
	}
	c.Premium.StatusOwnerOnly = ownerOnly
	return nil
}

func (c *Config) loadMedia() {
	c.Media.Backend = strings.ToLower(getEnvOrDefault("MEDIA_BACKEND", "disk"))
	c.Media.Dir = getEnvOrDefault("MEDIA_DIR", "uploads")
	c.Media.S3Bucket = os.Getenv("MEDIA_S3_BUCKET")
	c.Media.S3Region = getEnvOrDefault("MEDIA_S3_REGION", "us-east-1")
	c.Media.S3Prefix = os.Getenv("MEDIA_S3_PREFIX")
}

func (c *Config) loadStore() error {
	timeout, err := durationEnv("STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		return err
	}
	c.Store.Timeout = timeout
	return nil
}

func (c *Config) loadRateLimit() error {
	raw := getEnvOrDefault("AUTH_RATE_LIMIT", "5")
	perSecond, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid AUTH_RATE_LIMIT: %w", err)
	}
	c.RateLimit.PerSecond = perSecond

	burst, err := intEnv("AUTH_RATE_BURST", 10)
	if err != nil {
		return err
	}
	c.RateLimit.Burst = burst
	return nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	if c.Database.URL == "" {
		errors = append(errors, "DATABASE_URL is required (or DB_HOST, DB_USER, DB_NAME)")
	}

	if c.Security.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if len(c.Security.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.Security.TokenTTL <= 0 {
		errors = append(errors, "TOKEN_TTL must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if c.Premium.Duration <= 0 {
		errors = append(errors, "PREMIUM_DURATION must be positive")
	}
	if c.Premium.FreePlaylistLimit < 1 {
		errors = append(errors, "FREE_PLAYLIST_LIMIT must be at least 1")
	}

	switch c.Media.Backend {
	case "disk":
		if c.Media.Dir == "" {
			errors = append(errors, "MEDIA_DIR is required for the disk backend")
		}
	case "s3":
		if c.Media.S3Bucket == "" {
			errors = append(errors, "MEDIA_S3_BUCKET is required for the s3 backend")
		}
	default:
		errors = append(errors, "MEDIA_BACKEND must be one of: disk, s3")
	}

	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst < 1 {
		errors = append(errors, "AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
