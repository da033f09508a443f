package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the bridge
type Config struct {
	Telegram TelegramConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Bridge   BridgeConfig
	Logging  LoggingConfig
	Service  ServiceConfig
}

// TelegramConfig holds Telegram MTProto configuration
type TelegramConfig struct {
	APIID       int
	APIHash     string
	Phone       string
	SessionFile string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StorageConfig holds media relocation configuration. Exactly one backend
// must be enabled; configuring both (or neither) is a startup error.
type StorageConfig struct {
	CacheDir string
	Local    LocalStorageConfig
	S3       S3StorageConfig
}

// LocalStorageConfig serves relocated files from a local directory behind a
// static file server
type LocalStorageConfig struct {
	Enabled   bool
	FilePath  string
	URLPrefix string
}

// S3StorageConfig stores relocated files in an S3-compatible bucket
type S3StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// BridgeConfig holds delivery pipeline tuning
type BridgeConfig struct {
	EventTimeout           time.Duration
	SendConcurrency        int
	WebhookTimeout         time.Duration
	MaxFileSize            int64
	MaxConcurrentDownloads int
	AlbumFlushDelay        time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Result is fx.Out struct for providing config dependencies
type Result struct {
	fx.Out

	Config         *Config
	TelegramConfig *TelegramConfig
	DatabaseConfig *DatabaseConfig
	StorageConfig  *StorageConfig
	BridgeConfig   *BridgeConfig
	LoggingConfig  *LoggingConfig
	ServiceConfig  *ServiceConfig
}

// Out returns fx-compatible config result
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:         cfg,
		TelegramConfig: &cfg.Telegram,
		DatabaseConfig: &cfg.Database,
		StorageConfig:  &cfg.Storage,
		BridgeConfig:   &cfg.Bridge,
		LoggingConfig:  &cfg.Logging,
		ServiceConfig:  &cfg.Service,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiID, err := strconv.Atoi(getEnv("TELEGRAM_API_ID", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	eventTimeout, err := time.ParseDuration(getEnv("BRIDGE_EVENT_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid BRIDGE_EVENT_TIMEOUT: %w", err)
	}

	webhookTimeout, err := time.ParseDuration(getEnv("BRIDGE_WEBHOOK_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BRIDGE_WEBHOOK_TIMEOUT: %w", err)
	}

	albumFlushDelay, err := time.ParseDuration(getEnv("BRIDGE_ALBUM_FLUSH_DELAY", "500ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid BRIDGE_ALBUM_FLUSH_DELAY: %w", err)
	}

	sendConcurrency, err := strconv.Atoi(getEnv("BRIDGE_SEND_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid BRIDGE_SEND_CONCURRENCY: %w", err)
	}

	maxFileSize, err := strconv.ParseInt(getEnv("STORAGE_MAX_FILE_SIZE", "52428800"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_FILE_SIZE: %w", err)
	}

	maxDownloads, err := strconv.Atoi(getEnv("STORAGE_MAX_CONCURRENT_DOWNLOADS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_CONCURRENT_DOWNLOADS: %w", err)
	}

	httpReadTimeout, err := time.ParseDuration(getEnv("HTTP_READ_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_READ_TIMEOUT: %w", err)
	}

	httpWriteTimeout, err := time.ParseDuration(getEnv("HTTP_WRITE_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_WRITE_TIMEOUT: %w", err)
	}

	httpIdleTimeout, err := time.ParseDuration(getEnv("HTTP_IDLE_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			APIID:       apiID,
			APIHash:     getEnv("TELEGRAM_API_HASH", ""),
			Phone:       getEnv("TELEGRAM_PHONE", ""),
			SessionFile: getEnv("TELEGRAM_SESSION_FILE", "./tgbridge.session"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     getEnv("DATABASE_PORT", "5432"),
			User:     getEnv("DATABASE_USER", "tgbridge"),
			Password: getEnv("DATABASE_PASSWORD", "tgbridge"),
			DBName:   getEnv("DATABASE_NAME", "tgbridge"),
			SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			CacheDir: getEnv("STORAGE_CACHE_DIR", "./cache"),
			Local: LocalStorageConfig{
				Enabled:   getEnvBool("STORAGE_LOCAL_ENABLED", false),
				FilePath:  getEnv("STORAGE_LOCAL_FILE_PATH", "./files"),
				URLPrefix: getEnv("STORAGE_LOCAL_URL_PREFIX", ""),
			},
			S3: S3StorageConfig{
				Enabled:   getEnvBool("STORAGE_S3_ENABLED", false),
				Endpoint:  getEnv("STORAGE_S3_ENDPOINT", ""),
				AccessKey: getEnv("STORAGE_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("STORAGE_S3_SECRET_KEY", ""),
				Bucket:    getEnv("STORAGE_S3_BUCKET", "tgbridge-media"),
				UseSSL:    getEnvBool("STORAGE_S3_USE_SSL", true),
				PublicURL: getEnv("STORAGE_S3_PUBLIC_URL", ""),
			},
		},
		Bridge: BridgeConfig{
			EventTimeout:           eventTimeout,
			SendConcurrency:        sendConcurrency,
			WebhookTimeout:         webhookTimeout,
			MaxFileSize:            maxFileSize,
			MaxConcurrentDownloads: maxDownloads,
			AlbumFlushDelay:        albumFlushDelay,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name:         getEnv("SERVICE_NAME", "tgbridge"),
			Port:         getEnv("SERVICE_PORT", "8080"),
			ReadTimeout:  httpReadTimeout,
			WriteTimeout: httpWriteTimeout,
			IdleTimeout:  httpIdleTimeout,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 {
		return fmt.Errorf("TELEGRAM_API_ID is required")
	}

	if c.Telegram.APIHash == "" {
		return fmt.Errorf("TELEGRAM_API_HASH is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DATABASE_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DATABASE_USER is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Bridge.SendConcurrency < 1 {
		return fmt.Errorf("BRIDGE_SEND_CONCURRENCY must be at least 1")
	}

	if c.Bridge.MaxConcurrentDownloads < 1 {
		return fmt.Errorf("STORAGE_MAX_CONCURRENT_DOWNLOADS must be at least 1")
	}

	return nil
}

// Validate enforces that exactly one storage backend is enabled
func (c *StorageConfig) Validate() error {
	if c.Local.Enabled && c.S3.Enabled {
		return fmt.Errorf("only one storage backend can be enabled")
	}

	if !c.Local.Enabled && !c.S3.Enabled {
		return fmt.Errorf("one storage backend must be enabled")
	}

	if c.CacheDir == "" {
		return fmt.Errorf("STORAGE_CACHE_DIR is required")
	}

	if c.Local.Enabled && c.Local.URLPrefix == "" {
		return fmt.Errorf("STORAGE_LOCAL_URL_PREFIX is required when local storage is enabled")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			return fmt.Errorf("STORAGE_S3_ENDPOINT is required when S3 storage is enabled")
		}
		if c.S3.PublicURL == "" {
			return fmt.Errorf("STORAGE_S3_PUBLIC_URL is required when S3 storage is enabled")
		}
	}

	return nil
}

// GetDSN returns database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool gets boolean environment variable with default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
