package config

import (
	"bytes"
	"fmt"
	"os"
)

const fileHeader = `# Spoticord Configuration File
#
# Every key can be overridden by an environment variable with the SPOTICORD_
# prefix, e.g. SPOTICORD_DISCORD_TOKEN or SPOTICORD_ORCHESTRATOR_POLICY=joint.
# Keep the bot token out of this file where possible.

`

// InitConfig writes a default configuration to the default path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration to path. An existing file
// is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	return WriteConfig(GetDefaultConfig(), path, force)
}

// WriteConfig validates cfg and writes it with the explanatory header. An
// existing file is only replaced when force is set.
func WriteConfig(cfg *Config, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("refusing to write invalid configuration: %w", err)
	}

	if err := SaveConfig(cfg, path); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.Write(data)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
