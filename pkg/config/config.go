package config

import "time"

// Config is the root warden configuration.
type Config struct {
	// Server configures the HTTP daemon.
	Server ServerConfig `yaml:"server"`

	// Admission configures the two admission strategies and the action
	// route table.
	Admission AdmissionConfig `yaml:"admission"`

	// Storage configures the backing stores.
	Storage StorageConfig `yaml:"storage"`

	// Crypto configures the master key supply.
	Crypto CryptoConfig `yaml:"crypto"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP daemon.
type ServerConfig struct {
	// ListenAddress is the host:port to serve on.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is how long to wait for graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AdmissionConfig configures the admission strategies.
type AdmissionConfig struct {
	// Window configures the rolling-window limiter.
	Window WindowConfig `yaml:"window"`

	// Credits configures the credit ledger.
	Credits CreditsConfig `yaml:"credits"`

	// Actions maps metered action names to strategy routes.
	Actions map[string]ActionRoute `yaml:"actions"`
}

// WindowConfig holds the rolling-window limiter parameters.
type WindowConfig struct {
	// Cap is the maximum admitted requests inside the window.
	Cap int `yaml:"cap"`

	// Window is the rolling interval requests are counted over.
	Window time.Duration `yaml:"window"`
}

// CreditsConfig holds the credit ledger parameters.
type CreditsConfig struct {
	// DailyCap is the balance subjects are reset to at the daily cliff.
	DailyCap int64 `yaml:"daily_cap"`

	// ResetHour is the wall-clock hour (0-23) of the daily reset.
	ResetHour int `yaml:"reset_hour"`
}

// ActionRoute binds an action to a strategy and cost tier.
type ActionRoute struct {
	// Strategy is "window" or "credits".
	Strategy string `yaml:"strategy"`

	// Cost is the credit cost; required for "credits", ignored for
	// "window".
	Cost int64 `yaml:"cost"`
}

// StorageConfig configures the backing stores.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// WindowPath is the window entry database file (sqlite backend).
	WindowPath string `yaml:"window_path"`

	// LedgerPath is the credit ledger database file (sqlite backend).
	LedgerPath string `yaml:"ledger_path"`

	// KeystorePath is the wrapped key database file (sqlite backend).
	KeystorePath string `yaml:"keystore_path"`
}

// CryptoConfig configures the master key supply. Exactly one of
// MasterKeyEnv or MasterKeyFile must be set; the key itself is 64 hex
// characters (32 bytes) and is validated at first use.
type CryptoConfig struct {
	// MasterKeyEnv names an environment variable holding the key.
	MasterKeyEnv string `yaml:"master_key_env"`

	// MasterKeyFile is a file holding the key.
	MasterKeyFile string `yaml:"master_key_file"`

	// WatchKeyFile enables fsnotify-based reload of MasterKeyFile.
	WatchKeyFile bool `yaml:"watch_key_file"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}
