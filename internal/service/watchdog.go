package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/notify"
	"pomodoro/timerd/internal/repository"
)

const defaultCheckInterval = time.Minute

// Watchdog periodically checks the stored snapshot and raises an alert when a
// running session is past its deadline, which happens when the countdown was
// not driven while the host was suspended.
type Watchdog struct {
	repo     *repository.TimerRepository
	settings SettingsSource
	notifier notify.Sink
	clock    Clock
	interval time.Duration
}

func NewWatchdog(repo *repository.TimerRepository, settings SettingsSource, notifier notify.Sink, clock Clock, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Watchdog{repo: repo, settings: settings, notifier: notifier, clock: clock, interval: interval}
}

// Run checks until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check reports whether an overdue alert was sent.
func (w *Watchdog) Check(ctx context.Context) bool {
	if !w.settings.Current().DesktopNotifications {
		return false
	}
	snapshot, err := w.repo.LoadSnapshot(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Msg("Watchdog failed to load snapshot")
		return false
	}
	if !snapshot.IsRunning || snapshot.EndTime == nil || snapshot.EndTime.After(w.clock.Now()) {
		return false
	}

	w.notifier.Notify(notify.Notification{
		Title:   "Time's Up!",
		Message: "Your current session has ended.",
		Sound:   notify.SoundComplete,
	})
	return true
}
