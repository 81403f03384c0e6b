package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	isolateEnv(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# Spoticord Configuration File",
		"logging:",
		"discord:",
		"database:",
		"responder:",
		"orchestrator:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		t.Errorf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := InitConfigToPath(path, false); err == nil {
		t.Fatal("Expected error when config already exists")
	}

	if err := InitConfigToPath(path, true); err != nil {
		t.Fatalf("Expected force to overwrite, got: %v", err)
	}
	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "existing") {
		t.Error("Expected existing content to be replaced")
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "config.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config failed to load: %v", err)
	}
	if cfg.Responder.Raw.Workers != 64 {
		t.Errorf("Expected workers 64, got %d", cfg.Responder.Raw.Workers)
	}
}

func TestWriteConfig_Custom(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "custom.yaml")

	cfg := GetDefaultConfig()
	cfg.Responder.Variant = "raw"
	cfg.Orchestrator.Policy = "isolated"
	if err := WriteConfig(cfg, path, false); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Responder.Variant != "raw" || loaded.Orchestrator.Policy != "isolated" {
		t.Errorf("Unexpected values: variant=%q policy=%q", loaded.Responder.Variant, loaded.Orchestrator.Policy)
	}
}

func TestWriteConfig_RejectsInvalid(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "bad.yaml")

	cfg := GetDefaultConfig()
	cfg.Orchestrator.Policy = "whenever"
	if err := WriteConfig(cfg, path, false); err == nil {
		t.Fatal("Expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Invalid config should not be written")
	}
}
