package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if cfg.Admission.Window.Cap != DefaultWindowCap {
		t.Errorf("window cap = %d, want %d", cfg.Admission.Window.Cap, DefaultWindowCap)
	}
	if cfg.Admission.Window.Window != DefaultWindow {
		t.Errorf("window = %v, want %v", cfg.Admission.Window.Window, DefaultWindow)
	}
	if cfg.Admission.Credits.DailyCap != DefaultDailyCap {
		t.Errorf("daily cap = %d, want %d", cfg.Admission.Credits.DailyCap, DefaultDailyCap)
	}
	if cfg.Admission.Credits.ResetHour != DefaultResetHour {
		t.Errorf("reset hour = %d, want %d", cfg.Admission.Credits.ResetHour, DefaultResetHour)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Crypto.MasterKeyEnv != DefaultMasterKeyEnv {
		t.Errorf("master key env = %q, want %q", cfg.Crypto.MasterKeyEnv, DefaultMasterKeyEnv)
	}

	route, ok := cfg.Admission.Actions["expert"]
	if !ok {
		t.Fatal("default actions missing expert")
	}
	if route.Strategy != "credits" || route.Cost != 30 {
		t.Errorf("expert route = %+v", route)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_address: ":9090"
admission:
  window:
    cap: 10
    window: 12h
  credits:
    daily_cap: 100
    reset_hour: 6
  actions:
    generate:
      strategy: window
    deluxe:
      strategy: credits
      cost: 50
storage:
  backend: sqlite
  window_path: /var/lib/warden/window.db
crypto:
  master_key_file: /etc/warden/master.key
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.ListenAddress != ":9090" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Admission.Window.Cap != 10 || cfg.Admission.Window.Window != 12*time.Hour {
		t.Errorf("window config = %+v", cfg.Admission.Window)
	}
	if cfg.Admission.Credits.DailyCap != 100 || cfg.Admission.Credits.ResetHour != 6 {
		t.Errorf("credits config = %+v", cfg.Admission.Credits)
	}
	if cfg.Admission.Actions["deluxe"].Cost != 50 {
		t.Errorf("deluxe route = %+v", cfg.Admission.Actions["deluxe"])
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Crypto.MasterKeyFile != "/etc/warden/master.key" || cfg.Crypto.MasterKeyEnv != "" {
		t.Errorf("crypto config = %+v", cfg.Crypto)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging config = %+v", cfg.Logging)
	}

	// Unset fields still get defaults.
	if cfg.Storage.LedgerPath == "" {
		t.Error("ledger path default not applied")
	}
	if cfg.Server.ReadTimeout == 0 {
		t.Error("read timeout default not applied")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("admission: [not a map"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		var cfg Config
		ApplyDefaults(&cfg)
		return &cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window cap", func(c *Config) { c.Admission.Window.Cap = 0; c.Admission.Window.Window = time.Hour }},
		{"negative window", func(c *Config) { c.Admission.Window.Window = -time.Hour }},
		{"zero daily cap", func(c *Config) { c.Admission.Credits.DailyCap = -1 }},
		{"reset hour out of range", func(c *Config) { c.Admission.Credits.ResetHour = 24 }},
		{"no actions", func(c *Config) { c.Admission.Actions = map[string]ActionRoute{} }},
		{"unknown strategy", func(c *Config) {
			c.Admission.Actions["x"] = ActionRoute{Strategy: "teleport"}
		}},
		{"credits without cost", func(c *Config) {
			c.Admission.Actions["x"] = ActionRoute{Strategy: "credits"}
		}},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"both key sources", func(c *Config) {
			c.Crypto.MasterKeyEnv = "KEY"
			c.Crypto.MasterKeyFile = "/etc/key"
		}},
		{"no key source", func(c *Config) {
			c.Crypto.MasterKeyEnv = ""
			c.Crypto.MasterKeyFile = ""
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, ErrInvalid) {
				t.Errorf("want ErrInvalid, got %v", err)
			}
		})
	}

	if err := Validate(valid()); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidate_WindowActionIgnoresCost(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Admission.Actions["generate"] = ActionRoute{Strategy: "window", Cost: 0}

	if err := Validate(&cfg); err != nil {
		t.Errorf("window action with zero cost rejected: %v", err)
	}
}
