package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chiraitori/spoticord/internal/cli/prompt"
	"github.com/chiraitori/spoticord/pkg/config"
	"github.com/chiraitori/spoticord/pkg/orchestrator"
	"github.com/chiraitori/spoticord/pkg/responder"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Spoticord configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/spoticord/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  spoticord init

  # Answer a few questions instead of taking every default
  spoticord init --interactive

  # Force overwrite existing config
  spoticord init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the token, policy and responder variant")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.GetDefaultConfig()
	if initInteractive {
		if err := promptConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	}

	if err := config.WriteConfig(cfg, configPath, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the bot with: spoticord start")
	fmt.Printf("  3. Or specify custom config: spoticord start --config %s\n", configPath)
	if cfg.Discord.Token == "" {
		fmt.Println("\nNo bot token was written. Provide it through the environment:")
		fmt.Println("    export SPOTICORD_DISCORD_TOKEN=<bot token>")
	}
	return nil
}

func promptConfig(cfg *config.Config) error {
	token, err := prompt.Secret("Discord bot token (leave empty to use SPOTICORD_DISCORD_TOKEN)")
	if err != nil {
		return err
	}
	cfg.Discord.Token = token

	policy, err := prompt.Select("Completion policy", []prompt.SelectOption{
		{Label: "detached", Value: string(orchestrator.PolicyDetached), Description: "Responder keeps answering after the gateway ends, until shutdown"},
		{Label: "joint", Value: string(orchestrator.PolicyJoint), Description: "Either duty failing stops the other and fails the process"},
		{Label: "isolated", Value: string(orchestrator.PolicyIsolated), Description: "Responder is never stopped; only the gateway outcome counts"},
	})
	if err != nil {
		return err
	}
	cfg.Orchestrator.Policy = policy

	variant, err := prompt.Select("Liveness responder", []prompt.SelectOption{
		{Label: "http", Value: responder.VariantHTTP, Description: "HTTP server on port 10000, answers Hello World"},
		{Label: "raw", Value: responder.VariantRaw, Description: "Raw socket on port 8080, answers a fixed HTML page"},
	})
	if err != nil {
		return err
	}
	cfg.Responder.Variant = variant

	if cfg.Responder.Variant == responder.VariantRaw {
		workers, err := prompt.Input("Raw responder worker pool size (0 = one goroutine per connection)",
			fmt.Sprint(cfg.Responder.Raw.Workers))
		if err != nil {
			return err
		}
		if _, err := fmt.Sscan(workers, &cfg.Responder.Raw.Workers); err != nil {
			return fmt.Errorf("invalid worker count %q: %w", workers, err)
		}
	}

	metrics, err := prompt.Confirm("Enable Prometheus metrics", false)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = metrics
	return nil
}
