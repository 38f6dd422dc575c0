package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestParseFlagsRequiresConfig(t *testing.T) {
	_, err := ParseFlags(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err == nil {
		t.Fatalf("expected an error when --config is omitted")
	}
}

func TestParseFlagsAcceptsConfigAndFlushData(t *testing.T) {
	f, err := ParseFlags(flag.NewFlagSet("test", flag.ContinueOnError), []string{"--config", "/tmp/oj.json", "--flush-data"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if f.ConfigPath != "/tmp/oj.json" || !f.FlushData {
		t.Fatalf("unexpected flags: %+v", f)
	}
}

func TestLoadAppliesDefaultsAndFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"server": {"bind_address": "127.0.0.1", "bind_port": 8080},
		"database_url": "postgres://u:p@localhost/db",
		"redis_url": "redis://localhost:6379/0",
		"problems": [{"id": 1, "name": "aplusb"}],
		"languages": [{"name": "c", "source_file_name": "main.c"}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BindPort != 8080 || cfg.Server.BindAddress != "127.0.0.1" {
		t.Fatalf("file values did not override defaults: %+v", cfg.Server)
	}
	if cfg.QueueNamespace != "oj" {
		t.Fatalf("expected default queue_namespace to survive, got %q", cfg.QueueNamespace)
	}
	if _, ok := cfg.ProblemByID(1); !ok {
		t.Fatalf("expected problem id 1 to be loaded")
	}
	if _, ok := cfg.LanguageByName("c"); !ok {
		t.Fatalf("expected language \"c\" to be loaded")
	}
}

func TestLoadRejectsDuplicateProblemIDs(t *testing.T) {
	path := writeConfigFile(t, `{
		"database_url": "postgres://u:p@localhost/db",
		"redis_url": "redis://localhost:6379/0",
		"problems": [{"id": 1, "name": "a"}, {"id": 1, "name": "b"}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for duplicate problem ids")
	}
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := writeConfigFile(t, `{
		"database_url": "postgres://u:p@localhost/db",
		"redis_url": "redis://localhost:6379/0"
	}`)
	t.Setenv("OJ_DATABASE_URL", "postgres://override/db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override/db" {
		t.Fatalf("expected env override to win, got %q", cfg.DatabaseURL)
	}
}
