package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/internal/telemetry"
	"github.com/chiraitori/spoticord/pkg/config"
	"github.com/chiraitori/spoticord/pkg/gateway"
	"github.com/chiraitori/spoticord/pkg/metrics"
	"github.com/chiraitori/spoticord/pkg/orchestrator"
	"github.com/chiraitori/spoticord/pkg/store"
)

var (
	startPolicy     string
	startVariant    string
	startStopOnExit bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot and the liveness responder",
	Long: `Start Spoticord in the foreground.

Startup connects to the database and applies migrations, builds the Discord
client, then runs the gateway connection and the liveness responder side by
side. The completion policy decides how the two end together:

  detached  the responder keeps answering after the gateway ends, until
            SIGINT/SIGTERM (default)
  joint     either duty failing stops the other and fails the process
  isolated  the responder is never stopped; only the gateway outcome counts

Examples:
  # Start with default config location
  spoticord start

  # Start with the raw socket responder and joint policy
  spoticord start --responder raw --policy joint

  # Start with environment variable overrides
  SPOTICORD_DISCORD_TOKEN=... SPOTICORD_LOGGING_LEVEL=DEBUG spoticord start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startPolicy, "policy", "", "Completion policy: detached, joint or isolated (overrides config)")
	startCmd.Flags().StringVar(&startVariant, "responder", "", "Liveness responder variant: http or raw (overrides config)")
	startCmd.Flags().BoolVar(&startStopOnExit, "stop-responder-on-exit", false, "In detached mode, stop the responder as soon as the gateway ends")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := applyStartFlags(cmd, cfg); err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceVersion = Version
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	fmt.Println("Spoticord - Spotify Connect for Discord")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsServer := metrics.NewServer(cfg.Metrics.Port, m)
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	resp, err := newResponder(cfg.Responder, m)
	if err != nil {
		return err
	}

	policy, err := orchestrator.ParsePolicy(cfg.Orchestrator.Policy)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(
		store.Opener{Config: &cfg.Database},
		&gateway.DiscordBuilder{Config: gateway.Config{
			Token:   cfg.Discord.Token,
			Intents: cfg.Discord.Intents,
			Shards:  cfg.Discord.Shards,
		}},
		resp,
		orchestrator.Options{
			Policy:              policy,
			ShutdownTimeout:     cfg.ShutdownTimeout,
			StopResponderOnExit: cfg.Orchestrator.StopResponderOnExit,
			Metrics:             m,
		},
	)
	if err != nil {
		return err
	}

	logger.Info("Spoticord is starting. Press Ctrl+C to stop.",
		"policy", policy, "responder", resp.Name(), "database", cfg.Database.Type)

	started := time.Now()
	report := orch.Run(ctx)

	if report.Err != nil {
		logger.Error("Spoticord stopped with an error",
			"stage", report.Stage, "uptime", time.Since(started).Round(time.Second), "error", report.Err)
		return report.Err
	}
	logger.Info("Spoticord stopped", "uptime", time.Since(started).Round(time.Second))
	return nil
}

// applyStartFlags lets explicitly set flags override the loaded configuration.
func applyStartFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Orchestrator.Policy = startPolicy
	}
	if flags.Changed("responder") {
		cfg.Responder.Variant = startVariant
	}
	if flags.Changed("stop-responder-on-exit") {
		cfg.Orchestrator.StopResponderOnExit = startStopOnExit
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
