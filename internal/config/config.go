package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Env                  string
	Port                 string
	DatabasePath         string
	UploadsDir           string
	JWTSecret            string
	JWTTTL               time.Duration
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	JobsCacheTTL         time.Duration
	NATSURL              string
	NATSConnTimeout      time.Duration
	OTELCollectorURL     string
	GoogleCloudProject   string
	GoogleCloudLocation  string
	LLMModel             string
	GmailCredentialsPath string
	GmailTokenPath       string
	RateLimitPerMinute   int
	AllowedOrigins       []string
	InterviewConfigPath  string
	ShutdownTimeout      time.Duration
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Env:                  "production",
		Port:                 "8080",
		DatabasePath:         "data/portal.db",
		UploadsDir:           "uploads",
		JWTTTL:               24 * time.Hour,
		JobsCacheTTL:         5 * time.Minute,
		NATSConnTimeout:      5 * time.Second,
		GoogleCloudLocation:  "us-central1",
		LLMModel:             "gemini-1.5-flash",
		GmailCredentialsPath: "credentials.json",
		GmailTokenPath:       "token.json",
		RateLimitPerMinute:   60,
		InterviewConfigPath:  "config/interview.yaml",
		ShutdownTimeout:      15 * time.Second,
	}
}

// Load reads the optional .env file and builds the config from the environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function, falling back to defaults
func FromEnv(getenv func(string) string) (*Config, error) {
	c := DefaultConfig()

	setString(getenv, "APP_ENV", &c.Env)
	setString(getenv, "PORT", &c.Port)
	setString(getenv, "DATABASE_PATH", &c.DatabasePath)
	setString(getenv, "UPLOADS_DIR", &c.UploadsDir)
	setString(getenv, "JWT_SECRET", &c.JWTSecret)
	setString(getenv, "REDIS_ADDR", &c.RedisAddr)
	setString(getenv, "REDIS_PASSWORD", &c.RedisPassword)
	setString(getenv, "NATS_URL", &c.NATSURL)
	setString(getenv, "OTEL_COLLECTOR_URL", &c.OTELCollectorURL)
	setString(getenv, "GOOGLE_CLOUD_PROJECT", &c.GoogleCloudProject)
	setString(getenv, "GOOGLE_CLOUD_LOCATION", &c.GoogleCloudLocation)
	setString(getenv, "LLM_MODEL", &c.LLMModel)
	setString(getenv, "GMAIL_CREDENTIALS_PATH", &c.GmailCredentialsPath)
	setString(getenv, "GMAIL_TOKEN_PATH", &c.GmailTokenPath)
	setString(getenv, "INTERVIEW_CONFIG", &c.InterviewConfigPath)
	setList(getenv, "ALLOWED_ORIGINS", &c.AllowedOrigins)

	if err := setInt(getenv, "REDIS_DB", &c.RedisDB); err != nil {
		return nil, err
	}
	if err := setInt(getenv, "RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute); err != nil {
		return nil, err
	}
	if err := setDuration(getenv, "JWT_TTL", &c.JWTTTL); err != nil {
		return nil, err
	}
	if err := setDuration(getenv, "JOBS_CACHE_TTL", &c.JobsCacheTTL); err != nil {
		return nil, err
	}
	if err := setDuration(getenv, "NATS_CONN_TIMEOUT", &c.NATSConnTimeout); err != nil {
		return nil, err
	}
	if err := setDuration(getenv, "SHUTDOWN_TIMEOUT", &c.ShutdownTimeout); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.GoogleCloudProject != "" && c.GoogleCloudLocation == "" {
		return fmt.Errorf("GOOGLE_CLOUD_LOCATION is required when GOOGLE_CLOUD_PROJECT is set")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local development setup
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LLMEnabled reports whether Vertex AI is configured
func (c *Config) LLMEnabled() bool {
	return c.GoogleCloudProject != ""
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

// setList reads a comma-separated value, dropping empty items
func setList(getenv func(string) string, key string, dst *[]string) {
	v := getenv(key)
	if v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
