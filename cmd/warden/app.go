package main

import (
	"context"
	"fmt"
	"log/slog"

	"draftworks/warden/pkg/admission"
	"draftworks/warden/pkg/admission/ledger"
	ledgerstorage "draftworks/warden/pkg/admission/ledger/storage"
	"draftworks/warden/pkg/admission/storage"
	"draftworks/warden/pkg/admission/window"
	"draftworks/warden/pkg/config"
	"draftworks/warden/pkg/crypto/envelope"
	"draftworks/warden/pkg/crypto/masterkey"
)

// app holds the wired components and their lifecycles.
type app struct {
	manager   *admission.Manager
	creditLed *ledger.Ledger
	keeper    *envelope.Keeper
	scheduler *ledger.ResetScheduler

	closers []func() error
}

// buildApp wires stores, strategies, the facade, and the content keeper
// from validated configuration. Each component receives its store handle at
// construction; nothing here is ambient.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var windowStore storage.WindowStore
	var ledgerStore ledger.Store
	var keyStore envelope.KeyStore

	switch cfg.Storage.Backend {
	case "sqlite":
		ws, err := storage.NewSQLiteStore(cfg.Storage.WindowPath)
		if err != nil {
			return nil, fmt.Errorf("open window store: %w", err)
		}
		a.closers = append(a.closers, ws.Close)
		windowStore = ws

		ls, err := ledgerstorage.NewSQLiteStore(ledgerstorage.SQLiteConfig{Path: cfg.Storage.LedgerPath})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open ledger store: %w", err)
		}
		a.closers = append(a.closers, ls.Close)
		ledgerStore = ls

		ks, err := envelope.NewSQLiteKeyStore(cfg.Storage.KeystorePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open key store: %w", err)
		}
		a.closers = append(a.closers, ks.Close)
		keyStore = ks
	default:
		windowStore = storage.NewMemoryStore()
		ledgerStore = ledgerstorage.NewMemoryStore()
		keyStore = envelope.NewMemoryKeyStore()
	}

	limiter, err := window.New(windowStore, window.Config{
		Cap:    cfg.Admission.Window.Cap,
		Window: cfg.Admission.Window.Window,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	creditLedger, err := ledger.New(ledgerStore, ledger.Config{
		DailyCap:  cfg.Admission.Credits.DailyCap,
		ResetHour: cfg.Admission.Credits.ResetHour,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.creditLed = creditLedger

	routes := make(map[string]admission.Route, len(cfg.Admission.Actions))
	for name, route := range cfg.Admission.Actions {
		routes[name] = admission.Route{
			Strategy: admission.Strategy(route.Strategy),
			Cost:     route.Cost,
		}
	}

	manager, err := admission.NewManager(limiter, creditLedger,
		admission.Config{Actions: routes}, admission.NewMetrics())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager = manager

	keySource, err := buildKeySource(cfg.Crypto)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, keySource.Close)

	keyHex, err := keySource.Load(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load master key: %w", err)
	}
	cipher, err := envelope.NewCipher(keyHex)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("master key: %w", err)
	}
	a.keeper = envelope.NewKeeper(cipher, keyStore)

	a.scheduler = ledger.NewResetScheduler(creditLedger)
	if err := a.scheduler.Start(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func buildKeySource(cfg config.CryptoConfig) (masterkey.Source, error) {
	if cfg.MasterKeyFile != "" {
		return masterkey.NewFileSource(cfg.MasterKeyFile, cfg.WatchKeyFile)
	}
	return masterkey.NewEnvSource(cfg.MasterKeyEnv), nil
}

// Close releases all resources in reverse construction order.
func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("close failed", "error", err)
		}
	}
	a.closers = nil
}
