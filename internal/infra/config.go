package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// configFile is the on-disk layout: automation settings live under one key.
type configFile struct {
	Automation domain.AutomationConfig `json:"automation" toml:"automation" yaml:"automation"`
}

// ConfigLoader implements domain.ConfigSource. It holds the last good
// configuration and reloads it when the file changes.
type ConfigLoader struct {
	path     string
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	current  domain.AutomationConfig
	onChange []func(domain.AutomationConfig)
}

// NewConfigLoader creates a loader and performs the initial load. A missing or
// unreadable file yields the defaults.
func NewConfigLoader(path string, logger *zap.Logger) *ConfigLoader {
	l := &ConfigLoader{
		path:     path,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		current:  domain.DefaultAutomationConfig(),
	}
	if err := l.Reload(); err != nil {
		l.logger.Error("failed to load automation config, using defaults",
			zap.String("path", path),
			zap.Error(err))
	}
	return l
}

// Path returns the watched config file.
func (l *ConfigLoader) Path() string {
	return l.path
}

// Current returns a copy of the active configuration.
func (l *ConfigLoader) Current() domain.AutomationConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.Clone()
}

// OnChange registers a callback invoked after every successful reload.
func (l *ConfigLoader) OnChange(cb func(domain.AutomationConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// NotifyReloads publishes a config-reloaded notification to n after every
// successful reload.
func (l *ConfigLoader) NotifyReloads(n domain.Notifier, clk clock.Clock) {
	l.OnChange(func(cfg domain.AutomationConfig) {
		n.Notify(domain.Notification{
			Event:  domain.EventConfigReloaded,
			Status: domain.StatusChanged,
			At:     clk.Now(),
		})
	})
}

// Reload re-reads the file. A deleted file resets to defaults; a file that
// fails to parse keeps the previous configuration.
func (l *ConfigLoader) Reload() error {
	cfg, err := LoadConfigFile(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		l.logger.Info("no automation config file, using defaults", zap.String("path", l.path))
		cfg = domain.DefaultAutomationConfig()
	}

	for _, problem := range Normalize(&cfg) {
		l.logger.Warn("ignoring invalid config entry",
			zap.String("path", l.path),
			zap.String("problem", problem))
	}

	l.mu.Lock()
	l.current = cfg
	callbacks := append([]func(domain.AutomationConfig){}, l.onChange...)
	l.mu.Unlock()

	l.logger.Info("automation config loaded",
		zap.String("path", l.path),
		zap.Int("profiles", len(cfg.AutoRes.Profiles)),
		zap.Int("mouse_lock_rules", len(cfg.MouseLock)),
		zap.Int64("revert_delay_ms", cfg.AutoRes.RevertDelayMs))

	for _, cb := range callbacks {
		cb(cfg.Clone())
	}
	return nil
}

// Watch reloads the config whenever its file is written, created, renamed or
// removed, until ctx is canceled. The containing directory is watched so
// editors that replace the file atomically are handled.
func (l *ConfigLoader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		watcher.Close()
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go l.watchLoop(ctx, watcher)
	return nil
}

func (l *ConfigLoader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	// Debounce timer to avoid multiple reloads for rapid changes
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(l.debounce, func() {
				if err := l.Reload(); err != nil {
					l.logger.Error("failed to reload automation config, keeping previous",
						zap.String("path", l.path),
						zap.Error(err))
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// LoadConfigFile reads and parses a config file based on its extension.
// Fields absent from the file keep their defaults. The returned error wraps
// os.ErrNotExist when the file is missing.
func LoadConfigFile(path string) (domain.AutomationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AutomationConfig{}, fmt.Errorf("read config: %w", err)
	}

	file := configFile{Automation: domain.DefaultAutomationConfig()}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return domain.AutomationConfig{}, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return domain.AutomationConfig{}, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &file); err != nil {
			return domain.AutomationConfig{}, fmt.Errorf("decode JSON: %w", err)
		}
	}

	return file.Automation, nil
}

// Normalize clamps and filters cfg in place and returns a description of
// each entry it changed or dropped.
func Normalize(cfg *domain.AutomationConfig) []string {
	var problems []string

	if cfg.AutoRes.RevertDelayMs < 0 {
		problems = append(problems, fmt.Sprintf("revertDelay %d is negative, using 0", cfg.AutoRes.RevertDelayMs))
		cfg.AutoRes.RevertDelayMs = 0
	}

	if def := cfg.AutoRes.DefaultProfile; def != nil && !def.Valid() {
		problems = append(problems, fmt.Sprintf("defaultProfile %s is not a valid mode", def))
		cfg.AutoRes.DefaultProfile = nil
	}

	profiles := cfg.AutoRes.Profiles[:0]
	for i, p := range cfg.AutoRes.Profiles {
		switch {
		case strings.TrimSpace(p.MatchKey) == "":
			problems = append(problems, fmt.Sprintf("profiles[%d] has no process", i))
		case !p.Resolution.Valid():
			problems = append(problems, fmt.Sprintf("profiles[%d] (%s) has invalid mode %s", i, p.MatchKey, p.Resolution))
		default:
			profiles = append(profiles, p)
		}
	}
	cfg.AutoRes.Profiles = profiles

	locks := cfg.MouseLock[:0]
	for i, r := range cfg.MouseLock {
		if strings.TrimSpace(r.MatchKey) == "" {
			problems = append(problems, fmt.Sprintf("mouseLock[%d] has no process", i))
			continue
		}
		if r.PaddingX < 0 || r.PaddingY < 0 {
			problems = append(problems, fmt.Sprintf("mouseLock[%d] (%s) has negative padding, using 0", i, r.MatchKey))
			r.PaddingX = max(r.PaddingX, 0)
			r.PaddingY = max(r.PaddingY, 0)
		}
		locks = append(locks, r)
	}
	cfg.MouseLock = locks

	return problems
}

// WriteDefaultConfig writes a starter config file if none exists.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, err
	}

	file := configFile{Automation: domain.DefaultAutomationConfig()}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf strings.Builder
		err = toml.NewEncoder(&buf).Encode(file)
		data = []byte(buf.String())
	case ".yaml", ".yml":
		data, err = yaml.Marshal(file)
	default:
		data, err = json.MarshalIndent(file, "", "  ")
	}
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(path, data, 0600)
}

// Ensure ConfigLoader implements domain.ConfigSource.
var _ domain.ConfigSource = (*ConfigLoader)(nil)
