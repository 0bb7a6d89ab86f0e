// Package loader reads mapping configuration files from disk, keeps an
// atomically swappable snapshot, and optionally hot reloads on change.
//
// Each configuration file loads independently: a malformed or missing
// file logs a warning and leaves its slot empty instead of failing the
// whole load, so parsing can proceed in degraded mode.
package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/logger"
	"github.com/teranos/tabula/mapping"
)

// Well-known configuration file locations under the base directory.
const (
	inventoryFile = "mappings/inventory_mappings.json"
	poamFile      = "mappings/poam_mappings.json"
	sspFile       = "mappings/ssp_sections.json"
	controlsFile  = "schema/_controls.json"
	documentsFile = "schema/_document.json"
)

// configFiles lists every file the loader manages.
var configFiles = []string{inventoryFile, poamFile, sspFile, controlsFile, documentsFile}

// ReloadCallback is invoked with the new snapshot after a successful
// reload.
type ReloadCallback func(*mapping.Configuration) error

// Options tune loader behavior.
type Options struct {
	// DebouncePeriod batches rapid file change events before reloading
	DebouncePeriod time.Duration
	// RequireVersions rejects sub-configs whose version field is not
	// valid semver
	RequireVersions bool
}

// DefaultOptions returns the standard loader tuning.
func DefaultOptions() Options {
	return Options{
		DebouncePeriod: 100 * time.Millisecond,
	}
}

// Loader manages the mapping configuration lifecycle. All public
// methods are safe for concurrent use. Snapshots are immutable after
// publish; readers hold the pointer they were given.
type Loader struct {
	baseDir string
	options Options

	mu      sync.RWMutex
	current *mapping.Configuration
	backup  *mapping.Configuration

	statsMu sync.Mutex
	stats   stats
	mtimes  map[string]time.Time

	watchMu   sync.Mutex
	watcher   *watcher
	callbacks []ReloadCallback
}

// New creates a loader rooted at baseDir. Nothing is read until Load.
func New(baseDir string, options Options) (*Loader, error) {
	if baseDir == "" {
		return nil, errors.New("loader base directory is empty")
	}
	if options.DebouncePeriod <= 0 {
		options.DebouncePeriod = DefaultOptions().DebouncePeriod
	}
	return &Loader{
		baseDir: baseDir,
		options: options,
		mtimes:  make(map[string]time.Time),
	}, nil
}

// Load reads every configuration file and publishes a new snapshot.
// Individual file failures degrade rather than fail; Load errors only
// when the base directory itself is unusable.
func (l *Loader) Load() (*mapping.Configuration, error) {
	start := time.Now()

	if info, err := os.Stat(l.baseDir); err != nil || !info.IsDir() {
		l.recordLoad(time.Since(start), false)
		return nil, errors.Wrapf(errors.ErrInvalidConfig,
			"base directory %s is not readable", l.baseDir)
	}

	config := &mapping.Configuration{LoadedAt: time.Now().UTC()}
	for _, rel := range configFiles {
		if err := l.loadFileInto(config, rel); err != nil {
			logger.Warnw("Configuration file skipped",
				"file", rel,
				"error", err)
		}
	}

	l.publish(config)
	l.recordLoad(time.Since(start), true)

	logger.Infow("Mapping configuration loaded",
		"base_dir", l.baseDir,
		"inventory", config.Inventory != nil,
		"poam", config.Poam != nil,
		"ssp", config.SSPSections != nil,
		"controls", config.Controls != nil,
		"documents", config.Documents != nil,
		"duration", time.Since(start))
	return config, nil
}

// loadFileInto reads one file and fills its slot in config.
func (l *Loader) loadFileInto(config *mapping.Configuration, rel string) error {
	path := filepath.Join(l.baseDir, rel)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", rel)
	}

	version := ""
	switch rel {
	case inventoryFile:
		var v mapping.InventoryMappings
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Wrapf(err, "failed to parse %s", rel)
		}
		config.Inventory, version = &v, v.Version
	case poamFile:
		var v mapping.PoamMappings
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Wrapf(err, "failed to parse %s", rel)
		}
		config.Poam, version = &v, v.Version
	case sspFile:
		var v mapping.SSPSections
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Wrapf(err, "failed to parse %s", rel)
		}
		config.SSPSections, version = &v, v.Version
	case controlsFile:
		var v mapping.ControlMappings
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Wrapf(err, "failed to parse %s", rel)
		}
		config.Controls, version = &v, v.Version
	case documentsFile:
		var v mapping.DocumentStructures
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Wrapf(err, "failed to parse %s", rel)
		}
		config.Documents, version = &v, v.Version
	default:
		return errors.Newf("unknown configuration file %s", rel)
	}

	if err := l.checkVersion(rel, version); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		l.statsMu.Lock()
		l.mtimes[rel] = info.ModTime()
		l.statsMu.Unlock()
	}
	return nil
}

// checkVersion validates a sub-config's version field as semver.
// Missing versions only warn unless RequireVersions is set.
func (l *Loader) checkVersion(rel, version string) error {
	if version == "" {
		if l.options.RequireVersions {
			return errors.Wrapf(errors.ErrInvalidConfig, "%s has no version", rel)
		}
		logger.Debugw("Configuration file has no version field", "file", rel)
		return nil
	}
	if _, err := semver.NewVersion(version); err != nil {
		if l.options.RequireVersions {
			return errors.Wrapf(errors.ErrInvalidConfig,
				"%s version %q is not valid semver", rel, version)
		}
		logger.Warnw("Configuration version is not valid semver",
			"file", rel,
			"version", version)
	}
	return nil
}

// publish swaps in a new snapshot, keeping the previous one as backup.
// Parsing happens before this call; the write lock covers only the
// pointer swap.
func (l *Loader) publish(config *mapping.Configuration) {
	l.mu.Lock()
	l.backup = l.current
	l.current = config
	l.mu.Unlock()
}

// Current returns the active snapshot.
func (l *Loader) Current() (*mapping.Configuration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return nil, errors.ErrNoMapping
	}
	return l.current, nil
}

// Rollback restores the previous snapshot. A second consecutive
// rollback fails; only one generation is kept.
func (l *Loader) Rollback() (*mapping.Configuration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backup == nil {
		return nil, errors.ErrNoBackup
	}
	l.current, l.backup = l.backup, nil
	logger.Infow("Mapping configuration rolled back",
		"loaded_at", l.current.LoadedAt)
	return l.current, nil
}

// reloadFile reloads just the sub-configuration a changed path belongs
// to, then publishes and notifies callbacks.
func (l *Loader) reloadFile(path string) {
	rel, ok := l.relFor(path)
	if !ok {
		logger.Debugw("Ignoring change to unmanaged file", "path", path)
		return
	}

	l.mu.RLock()
	current := l.current
	l.mu.RUnlock()

	// Shallow copy: untouched slots keep pointing at the previous
	// immutable sub-configs
	next := &mapping.Configuration{LoadedAt: time.Now().UTC()}
	if current != nil {
		*next = *current
		next.LoadedAt = time.Now().UTC()
	}

	start := time.Now()
	if err := l.loadFileInto(next, rel); err != nil {
		logger.Errorw("Configuration reload failed, keeping previous snapshot",
			"file", rel,
			"error", err)
		l.recordLoad(time.Since(start), false)
		return
	}

	l.publish(next)
	l.recordLoad(time.Since(start), true)
	logger.Infow("Configuration file reloaded",
		"file", rel,
		"duration", time.Since(start))

	l.notify(next)
}

// relFor maps an absolute changed path back to a managed file.
func (l *Loader) relFor(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, rel := range configFiles {
		managed, err := filepath.Abs(filepath.Join(l.baseDir, rel))
		if err != nil {
			continue
		}
		if abs == managed {
			return rel, true
		}
	}
	return "", false
}

// OnReload registers a callback invoked after each successful reload.
func (l *Loader) OnReload(callback ReloadCallback) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

func (l *Loader) notify(config *mapping.Configuration) {
	l.watchMu.Lock()
	callbacks := make([]ReloadCallback, len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.watchMu.Unlock()

	for _, callback := range callbacks {
		if err := callback(config); err != nil {
			logger.Warnw("Reload callback error",
				"error", err)
			// Remaining callbacks still run
		}
	}
}
