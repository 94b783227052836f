// Package config provides configuration loading for the project management
// API.
//
// Configuration is assembled from an optional YAML file, environment
// variables (including a .env file in the working directory) and defaults.
// Keys are grouped into sections; every key can be set from the environment
// as SECTION_FIELD, e.g. STORAGE_MEDIA_ROOT or AUTH_JWT_SECRET.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Storage       StorageConfig       `koanf:"storage"`
	Layout        LayoutConfig        `koanf:"layout"`
	Auth          AuthConfig          `koanf:"auth"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	MaxUploadMB     int      `koanf:"max_upload_mb"`

	// Login attempts allowed per client IP: LoginRate per second with bursts
	// of LoginBurst.
	LoginRate  float64 `koanf:"login_rate"`
	LoginBurst int     `koanf:"login_burst"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds gorm connection settings.
type DatabaseConfig struct {
	Driver          string   `koanf:"driver"` // postgres or sqlite
	DSN             Secret   `koanf:"dsn"`
	MaxOpenConns    int      `koanf:"max_open_conns"`
	MaxIdleConns    int      `koanf:"max_idle_conns"`
	ConnMaxLifetime Duration `koanf:"conn_max_lifetime"`
	LogLevel        string   `koanf:"log_level"` // silent, error, warn, info
	AutoMigrate     bool     `koanf:"auto_migrate"`
}

// StorageConfig selects and configures the file backend.
type StorageConfig struct {
	Backend   string `koanf:"backend"` // local or minio
	MediaRoot string `koanf:"media_root"`
	Collision string `koanf:"collision"` // rename, reject or overwrite

	MinioEndpoint  string `koanf:"minio_endpoint"`
	MinioAccessKey string `koanf:"minio_access_key"`
	MinioSecretKey Secret `koanf:"minio_secret_key"`
	MinioBucket    string `koanf:"minio_bucket"`
	MinioPrefix    string `koanf:"minio_prefix"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`
}

// LayoutConfig tunes path derivation.
type LayoutConfig struct {
	FilenameBudget int `koanf:"filename_budget"`
	SlugBudget     int `koanf:"slug_budget"`
	SegmentBudget  int `koanf:"segment_budget"`

	// PhaseDirs overrides phase directory names by phase key. YAML only.
	PhaseDirs map[string]string `koanf:"phase_dirs"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret  Secret   `koanf:"jwt_secret"`
	Issuer     string   `koanf:"issuer"`
	AccessTTL  Duration `koanf:"access_ttl"`
	RefreshTTL Duration `koanf:"refresh_ttl"`
}

// EventsConfig configures NATS event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ObservabilityConfig holds OpenTelemetry and logging settings.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"` // grpc or http/protobuf
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
	LogLevel        string  `koanf:"log_level"`
	LogFormat       string  `koanf:"log_format"` // json or console
}

// Minimum JWT signing key length in bytes for HS256.
const minJWTSecretLen = 32

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Database driver is unknown or the DSN is empty
//   - Storage backend or collision policy is unknown, or the backend lacks its settings
//   - A layout budget is outside 16..255
//   - The JWT secret is shorter than 32 bytes or token lifetimes are not positive
//   - Events are enabled without a NATS URL
//   - Service name is empty (when telemetry is enabled)
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.Server.LoginRate <= 0 || c.Server.LoginBurst <= 0 {
		return errors.New("login rate and burst must be positive")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database driver: %q (must be postgres or sqlite)", c.Database.Driver)
	}
	if !c.Database.DSN.IsSet() {
		return errors.New("database dsn is required")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.MediaRoot == "" {
			return errors.New("storage media_root is required for the local backend")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			return errors.New("storage minio_endpoint and minio_bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (must be local or minio)", c.Storage.Backend)
	}
	switch strings.ToLower(c.Storage.Collision) {
	case "rename", "reject", "overwrite":
	default:
		return fmt.Errorf("invalid storage collision policy: %q (must be rename, reject or overwrite)", c.Storage.Collision)
	}

	for name, v := range map[string]int{
		"filename_budget": c.Layout.FilenameBudget,
		"slug_budget":     c.Layout.SlugBudget,
		"segment_budget":  c.Layout.SegmentBudget,
	} {
		if v < 16 || v > 255 {
			return fmt.Errorf("invalid layout %s: %d (must be 16-255)", name, v)
		}
	}

	if len(c.Auth.JWTSecret.Value()) < minJWTSecretLen {
		return fmt.Errorf("auth jwt_secret must be at least %d bytes", minJWTSecretLen)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("auth token lifetimes must be positive")
	}
	if c.Auth.RefreshTTL < c.Auth.AccessTTL {
		return errors.New("auth refresh_ttl must not be shorter than access_ttl")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events url required when events are enabled")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid sample rate: %v (must be 0-1)", c.Observability.SampleRate)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Server.LoginRate == 0 {
		cfg.Server.LoginRate = 1
	}
	if cfg.Server.LoginBurst == 0 {
		cfg.Server.LoginBurst = 10
	}

	// Database defaults (embedded SQLite for local development)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if !cfg.Database.DSN.IsSet() && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:pmapi.db?_foreign_keys=on"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = Duration(time.Hour)
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.MediaRoot == "" && cfg.Storage.Backend == "local" {
		cfg.Storage.MediaRoot = "./media"
	}
	if cfg.Storage.Collision == "" {
		cfg.Storage.Collision = "rename"
	}

	// Layout defaults mirror the sanitize package budgets
	if cfg.Layout.FilenameBudget == 0 {
		cfg.Layout.FilenameBudget = 150
	}
	if cfg.Layout.SlugBudget == 0 {
		cfg.Layout.SlugBudget = 60
	}
	if cfg.Layout.SegmentBudget == 0 {
		cfg.Layout.SegmentBudget = 120
	}

	// Auth defaults
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "pmapi"
	}
	if cfg.Auth.AccessTTL == 0 {
		cfg.Auth.AccessTTL = Duration(15 * time.Minute)
	}
	if cfg.Auth.RefreshTTL == 0 {
		cfg.Auth.RefreshTTL = Duration(7 * 24 * time.Hour)
	}

	// Events defaults
	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "pmapi"
	}

	// Observability defaults
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "pmapi"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
}
