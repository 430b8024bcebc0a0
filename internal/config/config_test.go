package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	yml := []byte(`server_addr: ":7000"
log_level: debug
database:
  database_url: postgres://yaml/findme
rate_limit:
  per_ip: 10
`)
	if err := os.WriteFile(path, yml, 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DATABASE_URL", "postgres://env/findme")
	t.Setenv("RATE_LIMIT_PER_USER", "7")

	cfg := Load()

	if cfg.ServerAddr != ":7000" {
		t.Errorf("server addr = %q, want :7000", cfg.ServerAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Database.URL != "postgres://env/findme" {
		t.Errorf("database url = %q, env must win over yaml", cfg.Database.URL)
	}
	if cfg.RateLimit.PerIP != 10 || cfg.RateLimit.PerUser != 7 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.ReadTimeoutSec != 15 {
		t.Errorf("read timeout default lost: %d", cfg.ReadTimeoutSec)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Default()
	cfg.CORSAllowedOrigins = " https://a.example, ,https://b.example"
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("origins = %v", got)
	}

	cfg.CORSAllowedOrigins = ""
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Fatalf("empty origins = %v, want [*]", got)
	}
}

func TestDBMaxConnectionsFallback(t *testing.T) {
	cfg := Default()
	cfg.Database.MaxConnections = 0
	if got := cfg.DBMaxConnections(); got != 20 {
		t.Fatalf("max connections = %d, want 20", got)
	}
}
