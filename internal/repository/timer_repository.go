package repository

import (
	"context"
	"errors"
	"time"

	"pomodoro/timerd/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// writeTimes is implemented by stores that know when a key was last written.
type writeTimes interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// TimerRepository gives typed access to the timer keys of a Store.
type TimerRepository struct {
	store Store
}

func NewTimerRepository(store Store) *TimerRepository {
	return &TimerRepository{store: store}
}

// EnsureInitialized seeds an empty history and zeroed stats on first run.
func (r *TimerRepository) EnsureInitialized(ctx context.Context, today string) error {
	values := make(map[string]any, 2)

	var history []model.SessionHistoryEntry
	if err := r.store.Get(ctx, KeySessionHistory, &history); errors.Is(err, ErrNotFound) {
		values[KeySessionHistory] = []model.SessionHistoryEntry{}
	} else if err != nil {
		return err
	}

	var stats model.DailyStats
	if err := r.store.Get(ctx, KeyDailyStats, &stats); errors.Is(err, ErrNotFound) {
		values[KeyDailyStats] = model.DailyStats{Date: today}
	} else if err != nil {
		return err
	}

	if len(values) == 0 {
		return nil
	}
	return r.store.SetMany(ctx, values)
}

// LoadSnapshot returns the stored session. A snapshot written without an
// activity time takes the row's write time when the store records one.
func (r *TimerRepository) LoadSnapshot(ctx context.Context) (*model.PersistedSession, error) {
	var snapshot model.PersistedSession
	if err := r.store.Get(ctx, KeyCurrentSession, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.LastActiveTime == nil {
		if wt, ok := r.store.(writeTimes); ok {
			if at, err := wt.UpdatedAt(ctx, KeyCurrentSession); err == nil && !at.IsZero() {
				at = at.Local()
				snapshot.LastActiveTime = &at
			}
		}
	}
	return &snapshot, nil
}

func (r *TimerRepository) SaveSnapshot(ctx context.Context, snapshot model.PersistedSession) error {
	return r.store.Set(ctx, KeyCurrentSession, snapshot)
}

// LoadHistory returns the stored history in append order; a miss is empty.
func (r *TimerRepository) LoadHistory(ctx context.Context) ([]model.SessionHistoryEntry, error) {
	var history []model.SessionHistoryEntry
	err := r.store.Get(ctx, KeySessionHistory, &history)
	if errors.Is(err, ErrNotFound) {
		return []model.SessionHistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.SessionHistoryEntry{}
	}
	return history, nil
}

// LoadDailyStats returns nil without error when nothing is stored yet.
func (r *TimerRepository) LoadDailyStats(ctx context.Context) (*model.DailyStats, error) {
	var stats model.DailyStats
	err := r.store.Get(ctx, KeyDailyStats, &stats)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *TimerRepository) SaveHistoryAndStats(ctx context.Context, history []model.SessionHistoryEntry, stats model.DailyStats) error {
	return r.store.SetMany(ctx, map[string]any{
		KeySessionHistory: history,
		KeyDailyStats:     stats,
	})
}

// ListHistory returns up to limit entries, newest first.
func (r *TimerRepository) ListHistory(ctx context.Context, limit int) ([]model.SessionHistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	history, err := r.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}

	n := len(history)
	if n > limit {
		n = limit
	}
	out := make([]model.SessionHistoryEntry, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out, nil
}
