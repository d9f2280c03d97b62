package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	return Config{
		DBPath:          filepath.Join(t.TempDir(), "budget.db"),
		LogLevel:        "info",
		LogFormat:       "text",
		HTTPAddr:        "127.0.0.1:8081",
		ReportCacheSize: 64,
		ReportCacheTTL:  5 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid config",
			modify:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "json format in upper case",
			modify:  func(c *Config) { c.LogFormat = "JSON" },
			wantErr: false,
		},
		{
			name:        "empty database path",
			modify:      func(c *Config) { c.DBPath = "  " },
			wantErr:     true,
			errorString: "database path cannot be empty",
		},
		{
			name:        "in-memory database",
			modify:      func(c *Config) { c.DBPath = ":memory:" },
			wantErr:     true,
			errorString: "in-memory databases are not supported",
		},
		{
			name:    "listen on all interfaces",
			modify:  func(c *Config) { c.HTTPAddr = ":9000" },
			wantErr: false,
		},
		{
			name:        "HTTP address without port",
			modify:      func(c *Config) { c.HTTPAddr = "localhost" },
			wantErr:     true,
			errorString: "invalid HTTP address 'localhost'",
		},
		{
			name:        "HTTP port non-numeric",
			modify:      func(c *Config) { c.HTTPAddr = "localhost:http" },
			wantErr:     true,
			errorString: "invalid port 'http': must be a number",
		},
		{
			name:        "HTTP port out of range",
			modify:      func(c *Config) { c.HTTPAddr = "localhost:70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.LogLevel = "verbose" },
			wantErr:     true,
			errorString: "invalid log level 'verbose'",
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.LogFormat = "xml" },
			wantErr:     true,
			errorString: "invalid log format 'xml': must be one of [text json]",
		},
		{
			name:        "cache size too small",
			modify:      func(c *Config) { c.ReportCacheSize = 0 },
			wantErr:     true,
			errorString: "invalid report cache size 0: must be at least 1",
		},
		{
			name:        "cache size too large",
			modify:      func(c *Config) { c.ReportCacheSize = 20000 },
			wantErr:     true,
			errorString: "invalid report cache size 20000: must be at most 10000",
		},
		{
			name:        "cache TTL too short",
			modify:      func(c *Config) { c.ReportCacheTTL = 500 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid report cache TTL 500ms: must be at least 1 second",
		},
		{
			name:        "cache TTL too long",
			modify:      func(c *Config) { c.ReportCacheTTL = 48 * time.Hour },
			wantErr:     true,
			errorString: "invalid report cache TTL 48h0m0s: must be at most 24 hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Config{
		DBPath:          "",
		HTTPAddr:        "127.0.0.1:8081",
		LogLevel:        "loud",
		LogFormat:       "yaml",
		ReportCacheSize: -1,
		ReportCacheTTL:  0,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := strings.Count(err.Error(), "\n- "); got != 5 {
		t.Errorf("expected 5 collected errors, got %d: %v", got, err)
	}
}

func TestConfig_ValidateCreatesDatabaseDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "dir", "budget.db")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.DBPath != "./data/budget.db" {
		t.Errorf("DBPath = %q, want ./data/budget.db", cfg.DBPath)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("unexpected logging defaults: level=%q format=%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.HTTPAddr != "127.0.0.1:8081" {
		t.Errorf("HTTPAddr = %q, want 127.0.0.1:8081", cfg.HTTPAddr)
	}
	if cfg.ReportCacheSize != 64 {
		t.Errorf("ReportCacheSize = %d, want 64", cfg.ReportCacheSize)
	}
	if cfg.ReportCacheTTL != 5*time.Minute {
		t.Errorf("ReportCacheTTL = %v, want 5m", cfg.ReportCacheTTL)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"BUDGET_DB_PATH":    "/tmp/other.db",
		"LOG_LEVEL":         "debug",
		"LOG_FORMAT":        "json",
		"REPORT_CACHE_SIZE": "8",
		"REPORT_CACHE_TTL":  "90s",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.DBPath != "/tmp/other.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ReportCacheSize != 8 || cfg.ReportCacheTTL != 90*time.Second {
		t.Errorf("unexpected cache config: size=%d ttl=%v", cfg.ReportCacheSize, cfg.ReportCacheTTL)
	}

	logCfg := cfg.LoggerConfig()
	if logCfg.Level != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", logCfg.Level)
	}
	if logCfg.Format != "json" {
		t.Errorf("log format = %q, want json", logCfg.Format)
	}
}

func TestLoadFrom_MalformedValue(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"REPORT_CACHE_SIZE": "lots"}); err == nil {
		t.Fatal("expected parse error for non-numeric cache size")
	}
}
