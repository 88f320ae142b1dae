// Package settings provides the durations and notification preferences the
// timer reads. The backing tier is a YAML file owned by the user.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"pomodoro/timerd/internal/model"
)

const fileName = "settings.yaml"

// Provider caches the settings file and hands out copies.
type Provider struct {
	path string

	mu      sync.RWMutex
	current model.Settings
}

// NewProvider loads path once. A missing or malformed file yields defaults.
func NewProvider(path string) *Provider {
	p := &Provider{path: path, current: model.DefaultSettings()}
	if err := p.Reload(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to load settings, using defaults")
	}
	return p
}

// DefaultPath resolves the settings file under the user config directory.
func DefaultPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, fileName), nil
}

func (p *Provider) Path() string {
	return p.path
}

func (p *Provider) Current() model.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Reload rereads the file. On error the cached settings fall back to defaults.
func (p *Provider) Reload() error {
	loaded, err := load(p.path)
	p.mu.Lock()
	p.current = loaded
	p.mu.Unlock()
	return err
}

// Save writes settings to the file and updates the cache.
func (p *Provider) Save(settings model.Settings) error {
	settings = settings.Normalized()
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	serialized, err := yaml.Marshal(model.PatchOf(settings))
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	p.mu.Lock()
	p.current = settings
	p.mu.Unlock()
	return nil
}

func load(path string) (model.Settings, error) {
	settings := model.DefaultSettings()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData model.SettingsPatch
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}
	return fileData.ApplyTo(settings), nil
}
