package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

// isolateEnv keeps the developer's environment and .env out of a test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv(EnvFileVar, "")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := isolateEnv(t)
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "debug"

discord:
  token: "file-token"
  intents: [guilds, guild_messages]
  shards: 2

database:
  type: sqlite
  sqlite:
    path: "` + yamlSafePath(tmpDir) + `/spoticord.db"

responder:
  variant: raw
  raw:
    address: "127.0.0.1:18080"
    workers: 8
    admission: reject
    read_timeout: 2s

orchestrator:
  policy: joint

shutdown_timeout: 15s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Discord.Token != "file-token" || cfg.Discord.Shards != 2 {
		t.Errorf("Unexpected discord config: %+v", cfg.Discord)
	}
	if len(cfg.Discord.Intents) != 2 || cfg.Discord.Intents[1] != "guild_messages" {
		t.Errorf("Unexpected intents: %v", cfg.Discord.Intents)
	}
	if cfg.Responder.Variant != "raw" {
		t.Errorf("Expected variant 'raw', got %q", cfg.Responder.Variant)
	}
	if cfg.Responder.Raw.Workers != 8 || cfg.Responder.Raw.QueueSize != 256 {
		t.Errorf("Unexpected pool: workers=%d queue=%d", cfg.Responder.Raw.Workers, cfg.Responder.Raw.QueueSize)
	}
	if cfg.Responder.Raw.ReadTimeout != 2*time.Second {
		t.Errorf("Expected read timeout 2s, got %v", cfg.Responder.Raw.ReadTimeout)
	}
	if cfg.Orchestrator.Policy != "joint" {
		t.Errorf("Expected policy 'joint', got %q", cfg.Orchestrator.Policy)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("Expected shutdown timeout 15s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := isolateEnv(t)

	cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	if cfg.Orchestrator.Policy != "detached" {
		t.Errorf("Expected default policy 'detached', got %q", cfg.Orchestrator.Policy)
	}
	if cfg.Responder.Raw.Workers != 64 {
		t.Errorf("Expected default worker pool 64, got %d", cfg.Responder.Raw.Workers)
	}
	if cfg.Database.SQLite.Path != filepath.Join(tmpDir, "spoticord", "spoticord.db") {
		t.Errorf("Unexpected sqlite path %q", cfg.Database.SQLite.Path)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("SPOTICORD_DISCORD_TOKEN", "env-token")
	t.Setenv("SPOTICORD_DISCORD_INTENTS", "guilds,guild_voice_states,message_content")
	t.Setenv("SPOTICORD_LOGGING_LEVEL", "warn")
	t.Setenv("SPOTICORD_ORCHESTRATOR_POLICY", "isolated")
	t.Setenv("SPOTICORD_RESPONDER_RAW_WORKERS", "0")
	t.Setenv("SPOTICORD_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Discord.Token != "env-token" {
		t.Errorf("Expected token from env, got %q", cfg.Discord.Token)
	}
	if len(cfg.Discord.Intents) != 3 {
		t.Errorf("Expected 3 intents from env, got %v", cfg.Discord.Intents)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Orchestrator.Policy != "isolated" {
		t.Errorf("Expected policy 'isolated', got %q", cfg.Orchestrator.Policy)
	}
	if cfg.Responder.Raw.Workers != 0 {
		t.Errorf("Expected unbounded workers from env, got %d", cfg.Responder.Raw.Workers)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected shutdown timeout 3s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	tmpDir := isolateEnv(t)
	envPath := filepath.Join(tmpDir, "custom.env")
	content := "SPOTICORD_DISCORD_TOKEN=dotenv-token\nSPOTICORD_LOGGING_FORMAT=json\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv(EnvFileVar, envPath)
	// Real environment wins over the file.
	t.Setenv("SPOTICORD_LOGGING_FORMAT", "text")
	t.Setenv("SPOTICORD_DISCORD_TOKEN", "")
	os.Unsetenv("SPOTICORD_DISCORD_TOKEN")

	cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Discord.Token != "dotenv-token" {
		t.Errorf("Expected token from env file, got %q", cfg.Discord.Token)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected process env to win, got %q", cfg.Logging.Format)
	}
	if token, set := os.LookupEnv("SPOTICORD_DISCORD_TOKEN"); set {
		t.Errorf("Env file leaked into the process environment: %q", token)
	}
}

func TestLoad_EnvFileOverridesConfigFile(t *testing.T) {
	tmpDir := isolateEnv(t)
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("responder:\n  variant: http\n  raw:\n    workers: 8\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	envPath := filepath.Join(tmpDir, ".env")
	content := "SPOTICORD_RESPONDER_VARIANT=raw\nSPOTICORD_RESPONDER_RAW_WORKERS=2\nUNRELATED_VAR=x\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Responder.Variant != "raw" {
		t.Errorf("Expected variant from .env, got %q", cfg.Responder.Variant)
	}
	if cfg.Responder.Raw.Workers != 2 {
		t.Errorf("Expected workers from .env, got %d", cfg.Responder.Raw.Workers)
	}
	if _, set := os.LookupEnv("SPOTICORD_RESPONDER_VARIANT"); set {
		t.Error("Env file leaked into the process environment")
	}
	if _, set := os.LookupEnv("UNRELATED_VAR"); set {
		t.Error("Unrelated env file variable leaked into the process environment")
	}
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv(EnvFileVar, filepath.Join(tmpDir, "nope.env"))

	if _, err := Load(""); err == nil {
		t.Fatal("Expected error for missing explicit env file")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	tmpDir := isolateEnv(t)
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("orchestrator:\n  policy: sometimes\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestMustLoad_MissingExplicitFile(t *testing.T) {
	tmpDir := isolateEnv(t)

	if _, err := MustLoad(filepath.Join(tmpDir, "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Orchestrator.Policy = "joint"
	cfg.Responder.Raw.Workers = 12

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Orchestrator.Policy != "joint" || loaded.Responder.Raw.Workers != 12 {
		t.Errorf("Round trip lost values: policy=%q workers=%d", loaded.Orchestrator.Policy, loaded.Responder.Raw.Workers)
	}
}
