// Package catalog holds the loaded rule catalog and swaps it when the rule
// file changes.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"rulemapper/internal/diagnostic"
	"rulemapper/internal/ruleset"
	"rulemapper/transforms"
)

var ErrInvalidRules = errors.New("invalid rule file")

// Load reads and builds a rule file. Diagnostics are returned even when the
// build fails; the error wraps ErrInvalidRules in that case.
func Load(path string, registry *transforms.Registry) (*ruleset.Catalog, *diagnostic.Diagnostics, error) {
	f, err := ruleset.Load(path)
	if err != nil {
		return nil, nil, err
	}

	cat, diags := ruleset.Build(f, registry)
	if diags.HasErrors() {
		return nil, diags, fmt.Errorf("%w %s: %w", ErrInvalidRules, path, diags.Error())
	}

	return cat, diags, nil
}

// Holder provides thread-safe access to the catalog with hot reload support.
// Readers always see a completely built catalog.
type Holder struct {
	mu       sync.RWMutex
	catalog  *ruleset.Catalog
	path     string
	registry *transforms.Registry
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*ruleset.Catalog)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder creates a holder and loads the initial catalog.
func NewHolder(path string, registry *transforms.Registry, logger zerolog.Logger) (*Holder, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	if registry == nil {
		registry = transforms.Builtins()
	}

	cat, diags, err := Load(absPath, registry)
	logDiagnostics(logger, diags)

	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	return &Holder{
		catalog:  cat,
		path:     absPath,
		registry: registry,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Get returns the current catalog.
func (h *Holder) Get() *ruleset.Catalog {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.catalog
}

// Path returns the absolute path of the rule file.
func (h *Holder) Path() string {
	return h.path
}

// Reload rebuilds the catalog from disk. On failure the old catalog is kept.
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading rules")

	cat, diags, err := Load(h.path, h.registry)
	logDiagnostics(h.logger, diags)

	if err != nil {
		h.logger.Error().Err(err).Msg("rules reload failed, keeping old catalog")
		return fmt.Errorf("reload rules: %w", err)
	}

	h.mu.Lock()
	old := h.catalog
	h.catalog = cat
	listeners := append([]func(*ruleset.Catalog)(nil), h.onChange...)
	h.mu.Unlock()

	if old.Len() != cat.Len() {
		h.logger.Info().Int("old", old.Len()).Int("new", cat.Len()).Msg("converter count changed")
	}

	for _, fn := range listeners {
		fn(cat)
	}

	h.logger.Info().Int("converters", cat.Len()).Msg("rules reloaded successfully")

	return nil
}

// OnChange registers a callback run after every successful reload.
func (h *Holder) OnChange(fn func(*ruleset.Catalog)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the rule file for changes.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory (more reliable for editors that do atomic saves)
	err = watcher.Add(filepath.Dir(h.path))
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	h.watcher = watcher

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching rule file for changes")

	return nil
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading rules")

				_ = h.Reload()
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)

		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			// atomic saves show up as Create
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("rule file changed")

				_ = h.Reload()
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}

			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func logDiagnostics(logger zerolog.Logger, diags *diagnostic.Diagnostics) {
	if diags == nil {
		return
	}

	for _, d := range diags.All() {
		var ev *zerolog.Event

		switch d.Severity {
		case diagnostic.DiagnosticError:
			ev = logger.Error()
		case diagnostic.DiagnosticWarning:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}

		ev.Str("code", d.Code).
			Str("converter", d.Converter).
			Str("rule", d.Rule).
			Strs("suggestions", d.Suggestions).
			Msg(d.Message)
	}
}
