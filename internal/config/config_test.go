package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Storage.History.Driver != "memory" {
		t.Errorf("unexpected history driver %q", cfg.Storage.History.Driver)
	}
	if cfg.LLM.Provider != "rule" {
		t.Errorf("unexpected llm provider %q", cfg.LLM.Provider)
	}
	if cfg.Events.Driver != "memory" {
		t.Errorf("unexpected events driver %q", cfg.Events.Driver)
	}
	if cfg.Events.RabbitMQ.Exchange != "sonachat.events" {
		t.Errorf("unexpected exchange %q", cfg.Events.RabbitMQ.Exchange)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Errorf("unexpected data dir %q", cfg.Runtime.DataDir)
	}
	if cfg.Logging.Audit.Path != filepath.Join(cfg.Runtime.DataDir, "logs", "audit.log") {
		t.Errorf("audit log not placed under data dir: %q", cfg.Logging.Audit.Path)
	}
}

func TestAuditPathResolvedAgainstDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
  "runtime": {"data_dir": "state"},
  "logging": {"audit": {"enabled": true, "path": "audit/engine.log"}}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := filepath.Join(dir, "state", "audit", "engine.log")
	if cfg.Logging.Audit.Path != want {
		t.Errorf("unexpected audit path %q, want %q", cfg.Logging.Audit.Path, want)
	}

	abs := filepath.Join(dir, "elsewhere.log")
	content = `{"logging": {"audit": {"path": "` + abs + `"}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Audit.Path != abs {
		t.Errorf("absolute audit path rewritten to %q", cfg.Logging.Audit.Path)
	}
}

func TestLoadParsesFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
  "server": {"address": ":9090"},
  "storage": {"history": {"driver": "redis", "redis": {"address": "localhost:6379", "db": 1}}},
  "llm": {"provider": "openai", "openai": {"api_key": "sk-test", "model": "gpt-4o", "timeout_seconds": 30}},
  "market": {"cache_ttl_seconds": 60, "cache_redis": true},
  "events": {"driver": "rabbitmq", "rabbitmq": {"url": "amqp://localhost"}},
  "wallet": {"rpc_url": "https://rpc.example.org", "symbol": "S"},
  "modes": {"personas_file": "personas.yaml"},
  "logging": {"level": "debug", "audit": {"enabled": true}}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.History.Redis.Address != "localhost:6379" || cfg.Storage.History.Redis.DB != 1 {
		t.Errorf("unexpected redis config: %+v", cfg.Storage.History.Redis)
	}
	if cfg.LLM.OpenAI.OpenAITimeout().Seconds() != 30 {
		t.Errorf("unexpected openai timeout: %v", cfg.LLM.OpenAI.OpenAITimeout())
	}
	if cfg.Market.CacheTTL().Seconds() != 60 {
		t.Errorf("unexpected cache ttl: %v", cfg.Market.CacheTTL())
	}
	if cfg.Modes.PersonasFile != filepath.Join(dir, "personas.yaml") {
		t.Errorf("personas file not resolved against config dir: %q", cfg.Modes.PersonasFile)
	}
	if !cfg.Logging.Audit.Enabled || cfg.Logging.ToLogger().Level != "debug" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
}
