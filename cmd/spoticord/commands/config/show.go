package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chiraitori/spoticord/internal/cli/output"
	"github.com/chiraitori/spoticord/pkg/config"
)

var (
	showOutput      string
	showWithSecrets bool
)

const redacted = "<redacted>"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Secrets (bot token, database password) are redacted unless --show-secrets
is given.

Examples:
  # Show as YAML
  spoticord config show

  # Show as a flat key/value table
  spoticord config show --output table

  # Show specific config file
  spoticord config show --config /etc/spoticord/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json|table)")
	showCmd.Flags().BoolVar(&showWithSecrets, "show-secrets", false, "Print secrets instead of redacting them")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}
	if !showWithSecrets {
		redact(cfg)
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if format != output.FormatTable {
		return output.Print(os.Stdout, format, cfg)
	}

	table, err := flatten(cfg)
	if err != nil {
		return err
	}
	return output.Print(os.Stdout, format, table)
}

func redact(cfg *config.Config) {
	if cfg.Discord.Token != "" {
		cfg.Discord.Token = redacted
	}
	if cfg.Database.Postgres.Password != "" {
		cfg.Database.Postgres.Password = redacted
	}
}

// flatten renders cfg as dotted keys, the same names the SPOTICORD_
// environment variables use.
func flatten(cfg *config.Config) (*output.KeyValues, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	var kv output.KeyValues
	walk(&kv, "", tree)
	return &kv, nil
}

func walk(kv *output.KeyValues, prefix string, node map[string]any) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := node[k].(map[string]any); ok {
			walk(kv, key, child)
			continue
		}
		kv.Add(key, fmt.Sprint(node[k]))
	}
}
