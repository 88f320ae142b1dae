package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"pomodoro/timerd/internal/model"
	"pomodoro/timerd/internal/repository"
)

// Recorder appends finished sessions to history and keeps today's totals.
type Recorder struct {
	mu    sync.Mutex
	repo  *repository.TimerRepository
	clock Clock
}

func NewRecorder(repo *repository.TimerRepository, clock Clock) *Recorder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Recorder{repo: repo, clock: clock}
}

// Record stores one session. Only focus sessions count toward the daily
// totals, and a stored day other than today starts from zero.
func (r *Recorder) Record(ctx context.Context, sessionType model.SessionType, durationSeconds int, info *model.SessionInfo) (model.SessionHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.repo.LoadHistory(ctx)
	if err != nil {
		return model.SessionHistoryEntry{}, fmt.Errorf("load history: %w", err)
	}
	stored, err := r.repo.LoadDailyStats(ctx)
	if err != nil {
		return model.SessionHistoryEntry{}, fmt.Errorf("load daily stats: %w", err)
	}

	now := r.clock.Now()
	today := model.DayKey(now)
	stats := model.DailyStats{Date: today}
	if stored != nil && stored.Date == today {
		stats = *stored
	}

	if sessionType == model.SessionFocus {
		stats.FocusTime += durationSeconds
		stats.Sessions++
	}

	entry := model.SessionHistoryEntry{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Type:        sessionType,
		Duration:    durationSeconds,
		SessionInfo: cloneInfo(info),
	}
	history = append(history, entry)

	if err := r.repo.SaveHistoryAndStats(ctx, history, stats); err != nil {
		return model.SessionHistoryEntry{}, fmt.Errorf("save history: %w", err)
	}
	return entry, nil
}

// Today returns the stats of the current day without writing; a record left
// over from another day reads as zero.
func (r *Recorder) Today(ctx context.Context) (model.DailyStats, error) {
	today := model.DayKey(r.clock.Now())
	stored, err := r.repo.LoadDailyStats(ctx)
	if err != nil {
		return model.DailyStats{}, err
	}
	if stored == nil || stored.Date != today {
		return model.DailyStats{Date: today}, nil
	}
	return *stored, nil
}

func cloneInfo(info *model.SessionInfo) *model.SessionInfo {
	if info == nil {
		return nil
	}
	c := *info
	return &c
}
