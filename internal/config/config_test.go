package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Set only the required variable
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Kind != KindPostgres {
		t.Errorf("Database.Kind = %q, want %q", cfg.Database.Kind, KindPostgres)
	}
	if cfg.Database.EffectivePort() != 5432 {
		t.Errorf("EffectivePort() = %d, want 5432", cfg.Database.EffectivePort())
	}
	if cfg.Database.Name != "exchange_logs" {
		t.Errorf("Database.Name = %q, want exchange_logs", cfg.Database.Name)
	}
	if cfg.Ingest.MaxConcurrent != 10 {
		t.Errorf("Ingest.MaxConcurrent = %d, want 10", cfg.Ingest.MaxConcurrent)
	}
	if cfg.Ingest.FlushRows != 0 {
		t.Errorf("Ingest.FlushRows = %d, want 0", cfg.Ingest.FlushRows)
	}
	if cfg.Ingest.Encoding != "windows-1251" {
		t.Errorf("Ingest.Encoding = %q", cfg.Ingest.Encoding)
	}
	if !cfg.Database.TrustServerCert {
		t.Error("TrustServerCert should default to true")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_KIND", "mssql")
	t.Setenv("INGEST_MAX_CONCURRENT", "4")
	t.Setenv("DB_TABLE_PREFIX", "ex_")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.EffectivePort() != 1433 {
		t.Errorf("EffectivePort() = %d, want 1433", cfg.Database.EffectivePort())
	}
	if cfg.Ingest.MaxConcurrent != 4 {
		t.Errorf("Ingest.MaxConcurrent = %d, want 4", cfg.Ingest.MaxConcurrent)
	}
	if cfg.Database.TablePrefix != "ex_" {
		t.Errorf("TablePrefix = %q", cfg.Database.TablePrefix)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_URL", "postgres://localhost/alttest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("Load() error = %v, want missing DB_PASSWORD", err)
	}
}

func TestLoad_DurationAndSlice(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("INGEST_WRITE_TIMEOUT", "1m30s")
	t.Setenv("INGEST_PATTERNS", "RECV*.log, MSGTRK*.log ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.WriteTimeout != 90*time.Second {
		t.Errorf("WriteTimeout = %v, want 90s", cfg.Ingest.WriteTimeout)
	}
	want := []string{"RECV*.log", "MSGTRK*.log"}
	if len(cfg.Ingest.Patterns) != 2 || cfg.Ingest.Patterns[0] != want[0] || cfg.Ingest.Patterns[1] != want[1] {
		t.Errorf("Patterns = %q, want %q", cfg.Ingest.Patterns, want)
	}
}

func TestLoadFile_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exlog.yaml")
	content := "db_password: fromfile\n" +
		"db_host: filehost\n" +
		"db_kind: mssql\n" +
		"ingest_max_concurrent: 3\n" +
		"ingest_patterns:\n  - MSGTRK*.log\n  - RECV*.log\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_HOST", "envhost")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Database.Host != "envhost" {
		t.Errorf("Host = %q, want envhost", cfg.Database.Host)
	}
	if cfg.Database.Password != "fromfile" || cfg.Database.Kind != KindMSSQL {
		t.Errorf("file values not applied: %+v", cfg.Database)
	}
	if cfg.Ingest.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Ingest.MaxConcurrent)
	}
	if len(cfg.Ingest.Patterns) != 2 {
		t.Errorf("Patterns = %q", cfg.Ingest.Patterns)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Kind: KindPostgres, Host: "localhost", Password: "x", MaxConns: 10, ConnectTimeout: time.Second},
		Ingest:   IngestConfig{LogsDir: ".", MaxConcurrent: 10, Encoding: "windows-1251"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Status:   StatusConfig{ShutdownTimeout: time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad kind", func(c *Config) { c.Database.Kind = "sqlite" }, "DB_KIND"},
		{"bad prefix", func(c *Config) { c.Database.TablePrefix = "x; DROP" }, "DB_TABLE_PREFIX"},
		{"max below min", func(c *Config) { c.Database.MinConns = 20 }, "DB_MAX_CONNS"},
		{"zero concurrency", func(c *Config) { c.Ingest.MaxConcurrent = 0 }, "INGEST_MAX_CONCURRENT"},
		{"negative flush", func(c *Config) { c.Ingest.FlushRows = -1 }, "INGEST_FLUSH_ROWS"},
		{"unknown encoding", func(c *Config) { c.Ingest.Encoding = "klingon" }, "INGEST_ENCODING"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestConfigString_MasksPassword(t *testing.T) {
	c := validConfig()
	c.Database.Password = "hunter2"
	s := c.String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("String() leaks password: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want [MASKED]", s)
	}
}
