package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Auth.JWTSecret = testJWTSecret
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Database.DSN.Value() == "" {
		t.Error("sqlite DSN default not applied")
	}
	if cfg.Layout.FilenameBudget != 150 || cfg.Layout.SlugBudget != 60 || cfg.Layout.SegmentBudget != 120 {
		t.Errorf("Layout defaults = %+v", cfg.Layout)
	}
	if cfg.Auth.RefreshTTL.Duration() != 7*24*time.Hour {
		t.Errorf("Auth.RefreshTTL = %v, want 168h", cfg.Auth.RefreshTTL.Duration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults with a JWT secret should validate, got: %v", err)
	}
}

func TestApplyDefaults_PostgresNeedsDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "postgres"
	cfg.Auth.JWTSecret = testJWTSecret
	applyDefaults(cfg)

	if cfg.Database.DSN.IsSet() {
		t.Error("postgres must not receive a default DSN")
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "dsn") {
		t.Errorf("expected dsn error, got: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "port"},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "port"},
		{name: "negative shutdown", mutate: func(c *Config) { c.Server.ShutdownTimeout = -1 }, wantErr: "shutdown"},
		{name: "upload size", mutate: func(c *Config) { c.Server.MaxUploadMB = -1 }, wantErr: "upload"},
		{name: "login burst", mutate: func(c *Config) { c.Server.LoginBurst = -1 }, wantErr: "login"},
		{name: "db driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "driver"},
		{name: "storage backend", mutate: func(c *Config) { c.Storage.Backend = "ftp" }, wantErr: "backend"},
		{name: "media root", mutate: func(c *Config) { c.Storage.MediaRoot = "" }, wantErr: "media_root"},
		{name: "minio settings", mutate: func(c *Config) { c.Storage.Backend = "minio" }, wantErr: "minio"},
		{name: "collision", mutate: func(c *Config) { c.Storage.Collision = "version" }, wantErr: "collision"},
		{name: "collision case insensitive", mutate: func(c *Config) { c.Storage.Collision = "Overwrite" }},
		{name: "filename budget", mutate: func(c *Config) { c.Layout.FilenameBudget = 8 }, wantErr: "filename_budget"},
		{name: "segment budget", mutate: func(c *Config) { c.Layout.SegmentBudget = 400 }, wantErr: "segment_budget"},
		{name: "jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt_secret"},
		{name: "refresh shorter", mutate: func(c *Config) { c.Auth.RefreshTTL = Duration(time.Minute) }, wantErr: "refresh_ttl"},
		{name: "events url", mutate: func(c *Config) { c.Events.Enabled = true; c.Events.URL = "" }, wantErr: "events url"},
		{name: "service name", mutate: func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.ServiceName = ""
		}, wantErr: "service name"},
		{name: "sample rate", mutate: func(c *Config) { c.Observability.SampleRate = 2 }, wantErr: "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret-value")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q", s.String())
	}
	if got := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(got, "super-secret") {
		t.Errorf("formatted output leaks secret: %s", got)
	}

	data, err := json.Marshal(struct{ Key Secret }{s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "super-secret") {
		t.Errorf("JSON leaks secret: %s", data)
	}

	if s.Value() != "super-secret-value" || string(s.Bytes()) != "super-secret-value" {
		t.Error("Value()/Bytes() must return the raw secret")
	}
	if Secret("").String() != "" || Secret("").IsSet() {
		t.Error("empty secret should stay empty")
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", d.Duration())
	}
	if err := d.UnmarshalText([]byte("-1s")); err == nil {
		t.Error("negative durations must be rejected")
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("garbage must be rejected")
	}

	out, _ := json.Marshal(Duration(time.Minute))
	if string(out) != `"1m0s"` {
		t.Errorf("MarshalJSON = %s", out)
	}
}
