package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chiraitori/spoticord/internal/telemetry"
	"github.com/chiraitori/spoticord/pkg/gateway"
	"github.com/chiraitori/spoticord/pkg/orchestrator"
	"github.com/chiraitori/spoticord/pkg/responder"
	"github.com/chiraitori/spoticord/pkg/store"
)

// DefaultLogLevel is used when no level is configured. Development builds
// lower it to DEBUG at startup.
var DefaultLogLevel = "INFO"

// setViperDefaults registers defaults that a zero value cannot express.
func setViperDefaults(v *viper.Viper) {
	// workers=0 means unbounded, so the pool size must be a real default.
	v.SetDefault("responder.raw.workers", responder.DefaultRawConfig().Workers)
	v.SetDefault("responder.variant", responder.VariantHTTP)
	v.SetDefault("orchestrator.policy", string(orchestrator.PolicyDetached))
	v.SetDefault("discord.intents", gateway.DefaultIntents)
	v.SetDefault("telemetry.insecure", true)
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - responder.raw.workers is the exception: 0 is kept (unbounded)
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDiscordDefaults(&cfg.Discord)
	applyDatabaseDefaults(&cfg.Database)
	applyResponderDefaults(&cfg.Responder)
	applyOrchestratorDefaults(&cfg.Orchestrator)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyDiscordDefaults(cfg *DiscordConfig) {
	if len(cfg.Intents) == 0 {
		cfg.Intents = append([]string(nil), gateway.DefaultIntents...)
	}
}

func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

func applyResponderDefaults(cfg *ResponderConfig) {
	if cfg.Variant == "" {
		cfg.Variant = responder.VariantHTTP
	}
	cfg.Variant = strings.ToLower(cfg.Variant)
	cfg.HTTP.ApplyDefaults()
	cfg.Raw.ApplyDefaults()
}

func applyOrchestratorDefaults(cfg *OrchestratorConfig) {
	if cfg.Policy == "" {
		cfg.Policy = string(orchestrator.PolicyDetached)
	}
	cfg.Policy = strings.ToLower(cfg.Policy)
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = orchestrator.DefaultShutdownTimeout
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyTelemetryDefaults sets OpenTelemetry and Pyroscope defaults.
func applyTelemetryDefaults(cfg *telemetry.Config) {
	def := telemetry.DefaultConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = def.Profiling.Endpoint
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = def.Profiling.ProfileTypes
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		Responder: ResponderConfig{
			Raw: responder.DefaultRawConfig(),
		},
		ShutdownTimeout: 30 * time.Second,
		Telemetry:       telemetry.DefaultConfig(),
	}

	ApplyDefaults(cfg)
	return cfg
}
