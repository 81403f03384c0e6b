package commands

import (
	"fmt"
	"net"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/pkg/config"
	"github.com/chiraitori/spoticord/pkg/metrics"
	"github.com/chiraitori/spoticord/pkg/responder"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// newResponder builds the configured liveness responder variant.
func newResponder(cfg config.ResponderConfig, m *metrics.Metrics) (responder.Responder, error) {
	switch cfg.Variant {
	case responder.VariantRaw:
		return responder.NewRaw(cfg.Raw, m)
	case responder.VariantHTTP, "":
		return responder.NewHTTP(cfg.HTTP, m), nil
	default:
		return nil, fmt.Errorf("unknown responder variant %q", cfg.Variant)
	}
}

// responderAddress returns the dialable address of the configured variant.
// Wildcard hosts are replaced by loopback.
func responderAddress(cfg config.ResponderConfig) string {
	addr := cfg.HTTP.Address
	if cfg.Variant == responder.VariantRaw {
		addr = cfg.Raw.Address
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
