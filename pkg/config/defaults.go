package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultListenAddress = ":8080"
	DefaultWindowCap     = 5
	DefaultWindow        = 24 * time.Hour
	DefaultDailyCap      = int64(40)
	DefaultResetHour     = 4
	DefaultBackend       = "memory"
	DefaultMasterKeyEnv  = "WARDEN_MASTER_KEY"
)

// ApplyDefaults fills unset fields with default values. It never overrides
// an explicitly configured value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Admission.Window.Cap == 0 {
		cfg.Admission.Window.Cap = DefaultWindowCap
	}
	if cfg.Admission.Window.Window == 0 {
		cfg.Admission.Window.Window = DefaultWindow
	}
	if cfg.Admission.Credits.DailyCap == 0 {
		cfg.Admission.Credits.DailyCap = DefaultDailyCap
	}
	if cfg.Admission.Credits.ResetHour == 0 {
		cfg.Admission.Credits.ResetHour = DefaultResetHour
	}

	if cfg.Admission.Actions == nil {
		cfg.Admission.Actions = map[string]ActionRoute{
			"generate": {Strategy: "window"},
			"refine":   {Strategy: "credits", Cost: 10},
			"expert":   {Strategy: "credits", Cost: 30},
		}
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultBackend
	}
	if cfg.Storage.WindowPath == "" {
		cfg.Storage.WindowPath = "data/window.db"
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = "data/ledger.db"
	}
	if cfg.Storage.KeystorePath == "" {
		cfg.Storage.KeystorePath = "data/keys.db"
	}

	if cfg.Crypto.MasterKeyEnv == "" && cfg.Crypto.MasterKeyFile == "" {
		cfg.Crypto.MasterKeyEnv = DefaultMasterKeyEnv
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
