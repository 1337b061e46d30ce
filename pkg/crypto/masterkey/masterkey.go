// Package masterkey loads the process-wide master key from an operator
// supplied source.
//
// The key is 32 bytes encoded as 64 hex characters. Sources only transport
// the encoded string; validation happens when the envelope cipher is
// constructed, so a missing or malformed key is a fatal configuration error
// at the first operation that needs it.
package masterkey

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Source supplies the hex-encoded master key.
type Source interface {
	// Load returns the hex-encoded master key.
	Load(ctx context.Context) (string, error)

	// Close releases any resources held by the source.
	Close() error
}

// EnvSource reads the master key from an environment variable.
type EnvSource struct {
	// Var is the environment variable name, e.g. "WARDEN_MASTER_KEY".
	Var string
}

// NewEnvSource creates a source backed by the named environment variable.
func NewEnvSource(envVar string) *EnvSource {
	return &EnvSource{Var: envVar}
}

// Load returns the variable's value. An unset or empty variable is an error.
func (s *EnvSource) Load(ctx context.Context) (string, error) {
	value := os.Getenv(s.Var)
	if value == "" {
		return "", fmt.Errorf("master key not found in environment variable %s", s.Var)
	}
	return strings.TrimSpace(value), nil
}

// Close is a no-op for the env source.
func (s *EnvSource) Close() error { return nil }

// FileSource reads the master key from a file, optionally watching it with
// fsnotify and reloading on change. Watching is the operational hook a
// future master-key rotation would use; the current wrapped-key format
// carries no key identifier, so a rotated key only applies to keys wrapped
// after the reload.
type FileSource struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu     sync.RWMutex
	cached string
	stopCh chan struct{}
}

// NewFileSource creates a file-backed source. If watch is true the file is
// monitored for changes and the cached key refreshed automatically.
func NewFileSource(path string, watch bool) (*FileSource, error) {
	s := &FileSource{
		path:   path,
		logger: slog.Default().With("component", "masterkey.file"),
		stopCh: make(chan struct{}),
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat master key file: %w", err)
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create master key watcher: %w", err)
		}
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("watch master key file: %w", err)
		}
		s.watcher = watcher
		go s.watchLoop()

		s.logger.Info("master key file source started with watching", "path", path)
	}

	return s, nil
}

// Load returns the file's contents, trimmed. The value is cached; a watched
// file invalidates the cache on change.
func (s *FileSource) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.cached != "" {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read master key file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("master key file %s is empty", s.path)
	}

	s.mu.Lock()
	s.cached = value
	s.mu.Unlock()

	return value, nil
}

// Close stops watching and releases the watcher.
func (s *FileSource) Close() error {
	close(s.stopCh)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// watchLoop invalidates the cache when the key file changes.
func (s *FileSource) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.mu.Lock()
				s.cached = ""
				s.mu.Unlock()
				s.logger.Info("master key file changed, cache invalidated", "path", s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("master key watcher error", "error", err)
		case <-s.stopCh:
			return
		}
	}
}
