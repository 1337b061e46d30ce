package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is the base error for configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration as a whole and returns the first
// problem found. A configuration that passes Validate never causes a
// call-time parameter failure in the components it configures.
func Validate(cfg *Config) error {
	if cfg.Admission.Window.Cap <= 0 {
		return fmt.Errorf("%w: admission.window.cap must be positive, got %d",
			ErrInvalid, cfg.Admission.Window.Cap)
	}
	if cfg.Admission.Window.Window <= 0 {
		return fmt.Errorf("%w: admission.window.window must be positive, got %v",
			ErrInvalid, cfg.Admission.Window.Window)
	}

	if cfg.Admission.Credits.DailyCap <= 0 {
		return fmt.Errorf("%w: admission.credits.daily_cap must be positive, got %d",
			ErrInvalid, cfg.Admission.Credits.DailyCap)
	}
	if cfg.Admission.Credits.ResetHour < 0 || cfg.Admission.Credits.ResetHour > 23 {
		return fmt.Errorf("%w: admission.credits.reset_hour must be in 0-23, got %d",
			ErrInvalid, cfg.Admission.Credits.ResetHour)
	}

	if len(cfg.Admission.Actions) == 0 {
		return fmt.Errorf("%w: admission.actions must not be empty", ErrInvalid)
	}
	for name, route := range cfg.Admission.Actions {
		switch route.Strategy {
		case "window":
			// Cost is ignored for window-gated actions.
		case "credits":
			if route.Cost <= 0 {
				return fmt.Errorf("%w: action %q needs a positive cost, got %d",
					ErrInvalid, name, route.Cost)
			}
		default:
			return fmt.Errorf("%w: action %q has unknown strategy %q",
				ErrInvalid, name, route.Strategy)
		}
	}

	switch cfg.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: storage.backend must be \"memory\" or \"sqlite\", got %q",
			ErrInvalid, cfg.Storage.Backend)
	}

	if cfg.Crypto.MasterKeyEnv != "" && cfg.Crypto.MasterKeyFile != "" {
		return fmt.Errorf("%w: crypto.master_key_env and crypto.master_key_file are mutually exclusive", ErrInvalid)
	}
	if cfg.Crypto.MasterKeyEnv == "" && cfg.Crypto.MasterKeyFile == "" {
		return fmt.Errorf("%w: one of crypto.master_key_env or crypto.master_key_file is required", ErrInvalid)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn, or error, got %q",
			ErrInvalid, cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: logging.format must be json or text, got %q",
			ErrInvalid, cfg.Logging.Format)
	}

	return nil
}
