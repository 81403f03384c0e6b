package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if err := cfg.Database.Validate(); err != nil {
		return err
	}
	if cfg.Responder.Raw.Workers > 0 && cfg.Responder.Raw.QueueSize == 0 {
		return fmt.Errorf("responder.raw.queue_size must be positive when workers > 0")
	}
	return nil
}
