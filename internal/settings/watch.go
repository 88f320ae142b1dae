package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/model"
)

const watchDebounce = 100 * time.Millisecond

// Watch reloads the settings file whenever it changes on disk and calls
// onChange with the result. It watches the parent directory so the file may
// be created, replaced or removed. Watch blocks until ctx is done.
func (p *Provider) Watch(ctx context.Context, onChange func(model.Settings)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info().Str("path", p.path).Msg("Settings file watcher started")

	target := filepath.Clean(p.path)
	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if err := p.Reload(); err != nil {
				log.Warn().Err(err).Str("path", p.path).Msg("Settings reload failed, using defaults")
			}
			current := p.Current()
			log.Info().
				Int("focus", current.FocusDuration).
				Int("break", current.BreakDuration).
				Int("longBreak", current.LongBreakDuration).
				Msg("Settings reloaded")
			if onChange != nil {
				onChange(current)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Settings watcher error")
		}
	}
}
