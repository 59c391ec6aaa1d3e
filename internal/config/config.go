package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Mongo     MongoConfig     `json:"mongo"`
	Storage   StorageConfig   `json:"storage"`
	S3        S3Config        `json:"s3"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Render    RenderConfig    `json:"render"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"`
	IdleTimeout     Duration `json:"idle_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string `json:"allowed_origins"`
}

// MongoConfig represents database configuration
type MongoConfig struct {
	URI      string   `json:"uri"`
	Database string   `json:"database"`
	Timeout  Duration `json:"timeout"`
}

// StorageConfig holds the local directories used for templates and outputs.
// OutputDir is where <certificateId>.pdf and <certificateId>.png land.
type StorageConfig struct {
	UploadDir        string   `json:"upload_dir"`
	OutputDir        string   `json:"output_dir"`
	ArchiveDir       string   `json:"archive_dir"`
	FontDir          string   `json:"font_dir"`
	MaxUploadBytes   int64    `json:"max_upload_bytes"`
	ArchiveRetention Duration `json:"archive_retention"`
	CleanupSchedule  string   `json:"cleanup_schedule"`
	PublicBaseURL    string   `json:"public_base_url"`
}

// S3Config configures the optional mirror of generated files
type S3Config struct {
	Enabled       bool     `json:"enabled"`
	Endpoint      string   `json:"endpoint"`
	Region        string   `json:"region"`
	Bucket        string   `json:"bucket"`
	AccessKey     string   `json:"access_key"`
	SecretKey     string   `json:"secret_key"`
	Prefix        string   `json:"prefix"`
	PresignExpiry Duration `json:"presign_expiry"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret  string   `json:"jwt_secret"`
	TokenTTL   Duration `json:"token_ttl"`
	BcryptCost int      `json:"bcrypt_cost"`
}

// RateLimitConfig
type RateLimitConfig struct {
	Requests int      `json:"requests"`
	Window   Duration `json:"window"`
}

// RenderConfig
type RenderConfig struct {
	DefaultContainerWidth float64 `json:"default_container_width"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// MetricsConfig
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Duration accepts either a Go duration string ("30s") or integer seconds in JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration{30 * time.Second},
			WriteTimeout:    Duration{2 * time.Minute},
			IdleTimeout:     Duration{60 * time.Second},
			ShutdownTimeout: Duration{30 * time.Second},
			AllowedOrigins:  []string{"*"},
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "certificate_studio",
			Timeout:  Duration{10 * time.Second},
		},
		Storage: StorageConfig{
			UploadDir:        "uploads/templates",
			OutputDir:        "generated",
			ArchiveDir:       "generated/archives",
			FontDir:          "fonts",
			MaxUploadBytes:   20 << 20,
			ArchiveRetention: Duration{time.Hour},
			CleanupSchedule:  "@every 15m",
		},
		S3: S3Config{
			Region:        "us-east-1",
			PresignExpiry: Duration{15 * time.Minute},
		},
		Security: SecurityConfig{
			TokenTTL:   Duration{24 * time.Hour},
			BcryptCost: 10,
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   Duration{time.Minute},
		},
		Render: RenderConfig{
			DefaultContainerWidth: 800,
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	setString(&config.Mongo.URI, "MONGO_URI")
	setString(&config.Mongo.Database, "MONGO_DATABASE")

	setString(&config.Storage.UploadDir, "UPLOAD_DIR")
	setString(&config.Storage.OutputDir, "OUTPUT_DIR")
	setString(&config.Storage.ArchiveDir, "ARCHIVE_DIR")
	setString(&config.Storage.FontDir, "FONT_DIR")
	setString(&config.Storage.PublicBaseURL, "PUBLIC_BASE_URL")
	setDuration(&config.Storage.ArchiveRetention, "ARCHIVE_RETENTION")

	setBool(&config.S3.Enabled, "S3_ENABLED")
	setString(&config.S3.Endpoint, "S3_ENDPOINT")
	setString(&config.S3.Region, "S3_REGION")
	setString(&config.S3.Bucket, "S3_BUCKET")
	setString(&config.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&config.S3.SecretKey, "S3_SECRET_KEY")

	setString(&config.Security.JWTSecret, "JWT_SECRET")
	setDuration(&config.Security.TokenTTL, "TOKEN_TTL")

	setInt(&config.RateLimit.Requests, "RATE_LIMIT_REQUESTS")
	setDuration(&config.RateLimit.Window, "RATE_LIMIT_WINDOW")

	setString(&config.Logging.Level, "LOG_LEVEL")
	setBool(&config.Metrics.Enabled, "METRICS_ENABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return errors.New("mongo uri and database are required")
	}
	if c.Storage.OutputDir == "" || c.Storage.UploadDir == "" || c.Storage.ArchiveDir == "" {
		return errors.New("storage directories are required")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("storage.max_upload_bytes must be positive")
	}
	if c.Security.JWTSecret == "" && !c.IsDebug() {
		return errors.New("security.jwt_secret is required")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window.Duration <= 0 {
		return errors.New("rate_limit requests and window must be positive")
	}
	if c.Render.DefaultContainerWidth <= 0 {
		return errors.New("render.default_container_width must be positive")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	return nil
}

// IsDebug reports whether debug logging is requested
func (c *Config) IsDebug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
