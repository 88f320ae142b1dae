package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/channel"
	"pomodoro/timerd/internal/model"
	"pomodoro/timerd/internal/notify"
	"pomodoro/timerd/internal/repository"
)

const (
	defaultTickInterval = time.Second
	defaultStaleAfter   = 24 * time.Hour
	recordTimeout       = 5 * time.Second
)

type EngineConfig struct {
	TickInterval time.Duration
	// StaleAfter bounds how old a recovered focus snapshot may be.
	StaleAfter time.Duration
	// RecordSkipped records the elapsed part of a skipped session.
	RecordSkipped bool
}

type SettingsSource interface {
	Current() model.Settings
}

type Publisher interface {
	Publish(n channel.Notification) channel.PublishResult
}

type EngineDeps struct {
	Repo      *repository.TimerRepository
	Recorder  *Recorder
	Settings  SettingsSource
	Publisher Publisher
	Notifier  notify.Sink
	Clock     Clock
	NewTicker TickerFunc
}

// TimerEngine is the single authority over the countdown. All mutation runs
// under mu, so a tick or command completes before the next one starts.
type TimerEngine struct {
	mu        sync.Mutex
	state     model.TimerState
	countdown *countdown
	deadline  time.Time
	closed    bool

	cfg       EngineConfig
	repo      *repository.TimerRepository
	recorder  *Recorder
	settings  SettingsSource
	publisher Publisher
	notifier  notify.Sink
	clock     Clock
	newTicker TickerFunc
	writer    *snapshotWriter
}

// countdown is one ticking run. It is replaced, never restarted.
type countdown struct {
	ticker Ticker
	done   chan struct{}
	once   sync.Once
}

func (c *countdown) stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}

func NewTimerEngine(deps EngineDeps, cfg EngineConfig) *TimerEngine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.NewTicker == nil {
		deps.NewTicker = NewSystemTicker
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Recorder == nil {
		deps.Recorder = NewRecorder(deps.Repo, deps.Clock)
	}

	e := &TimerEngine{
		cfg:       cfg,
		repo:      deps.Repo,
		recorder:  deps.Recorder,
		settings:  deps.Settings,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		newTicker: deps.NewTicker,
		state:     model.NewFocusState(deps.Settings.Current().DurationFor(model.SessionFocus)),
	}
	e.writer = newSnapshotWriter(deps.Repo.SaveSnapshot)
	return e
}

// Recover rehydrates the engine from the stored snapshot. It must run before
// the engine accepts commands.
func (e *TimerEngine) Recover(ctx context.Context) error {
	now := e.clock.Now()
	fresh := model.NewFocusState(e.settings.Current().DurationFor(model.SessionFocus))

	state, resume := fresh, false
	snapshot, err := e.repo.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Info().Msg("No stored session, starting fresh")
	case err != nil:
		log.Warn().Err(err).Msg("Failed to load stored session, starting fresh")
	default:
		state, resume = reconcileSnapshot(*snapshot, now, e.cfg.StaleAfter, fresh)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCountdownLocked()
	e.state = state
	if resume {
		e.state.LastActiveTime = &now
		e.persistLocked(now)
		e.startCountdownLocked()
	} else {
		e.persistLocked(now)
	}

	log.Info().
		Str("sessionType", string(e.state.SessionType)).
		Int("currentSession", e.state.CurrentSession).
		Int("currentTime", e.state.CurrentTime).
		Bool("running", e.state.IsRunning).
		Msg("Timer recovered")
	return nil
}

// reconcileSnapshot derives remaining time from the stored deadline. It
// reports whether the countdown should resume.
func reconcileSnapshot(snapshot model.PersistedSession, now time.Time, staleAfter time.Duration, fresh model.TimerState) (model.TimerState, bool) {
	state := snapshot.TimerState.Clone()
	if !state.SessionType.Valid() {
		return fresh, false
	}
	if state.CurrentSession < 1 {
		state.CurrentSession = 1
	}
	state.TotalSessions = model.FocusSessionsPerCycle
	if state.CurrentTime < 0 {
		state.CurrentTime = 0
	}

	if snapshot.EndTime != nil && snapshot.EndTime.After(now) {
		state.CurrentTime = ceilSeconds(snapshot.EndTime.Sub(now))
		if state.TotalTime < state.CurrentTime {
			state.TotalTime = state.CurrentTime
		}
		return state, state.IsRunning
	}

	state.IsRunning = false
	if state.SessionType != model.SessionFocus {
		return state, false
	}
	if state.LastActiveTime != nil && now.Sub(*state.LastActiveTime) < staleAfter {
		return state, false
	}
	return fresh, false
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// State returns a copy of the current timer state.
func (e *TimerEngine) State() model.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Start merges the supplied fields and (re)starts the countdown. A running
// countdown is cancelled first.
func (e *TimerEngine) Start(cfg model.StartConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopCountdownLocked()

	s := &e.state
	if cfg.SessionType != nil {
		s.SessionType = *cfg.SessionType
	}
	if cfg.CurrentSession != nil {
		s.CurrentSession = *cfg.CurrentSession
	}
	if s.CurrentSession < 1 {
		s.CurrentSession = 1
	}
	if cfg.CurrentTime != nil {
		s.CurrentTime = *cfg.CurrentTime
		s.TotalTime = *cfg.CurrentTime
	}
	if cfg.TotalTime != nil {
		s.TotalTime = *cfg.TotalTime
	}
	if s.CurrentTime <= 0 {
		full := e.settings.Current().DurationFor(s.SessionType)
		s.CurrentTime = full
		s.TotalTime = full
	}
	if s.TotalTime < s.CurrentTime {
		s.TotalTime = s.CurrentTime
	}
	if cfg.SessionInfo != nil {
		s.SessionInfo = cloneInfo(cfg.SessionInfo)
	}
	s.TotalSessions = model.FocusSessionsPerCycle
	s.IsRunning = true

	now := e.clock.Now()
	s.LastActiveTime = &now
	e.persistLocked(now)
	e.startCountdownLocked()

	log.Info().
		Str("sessionType", string(s.SessionType)).
		Int("currentSession", s.CurrentSession).
		Int("currentTime", s.CurrentTime).
		Msg("Timer started")
}

func (e *TimerEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopCountdownLocked()
	if !e.state.IsRunning {
		return
	}
	e.state.IsRunning = false
	now := e.clock.Now()
	e.state.LastActiveTime = &now
	e.persistLocked(now)

	log.Info().Int("currentTime", e.state.CurrentTime).Msg("Timer paused")
}

// Skip moves to the session after the caller's type and index, which may
// differ from the engine's own state after a restart.
func (e *TimerEngine) Skip(sessionType model.SessionType, currentSession int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopCountdownLocked()

	if !sessionType.Valid() {
		sessionType = e.state.SessionType
	}
	// Elapsed time is only known for the session the engine is running.
	if e.cfg.RecordSkipped && sessionType == e.state.SessionType {
		if elapsed := e.state.TotalTime - e.state.CurrentTime; elapsed > 0 {
			e.recordLocked(sessionType, elapsed, e.state.SessionInfo)
		}
	}

	log.Info().Str("sessionType", string(sessionType)).Int("currentSession", currentSession).Msg("Session skipped")
	e.advanceLocked(sessionType, currentSession, e.clock.Now())
}

// Close cancels the countdown and waits for the last snapshot to be stored.
func (e *TimerEngine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopCountdownLocked()
	e.mu.Unlock()

	e.writer.Close()
}

// Flush blocks until the newest snapshot has been handed to the store.
func (e *TimerEngine) Flush() {
	e.writer.Flush()
}

func (e *TimerEngine) startCountdownLocked() {
	e.deadline = e.clock.Now().Add(time.Duration(e.state.CurrentTime) * time.Second)
	cd := &countdown{
		ticker: e.newTicker(e.cfg.TickInterval),
		done:   make(chan struct{}),
	}
	e.countdown = cd
	go e.run(cd)
}

func (e *TimerEngine) stopCountdownLocked() {
	if e.countdown == nil {
		return
	}
	e.countdown.stop()
	e.countdown = nil
}

func (e *TimerEngine) run(cd *countdown) {
	for {
		select {
		case <-cd.done:
			return
		case <-cd.ticker.C():
			e.tick(cd)
		}
	}
}

func (e *TimerEngine) tick(cd *countdown) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A tick that raced with its own cancellation belongs to a dead countdown.
	if e.countdown != cd || !e.state.IsRunning {
		return
	}

	if e.state.CurrentTime > 0 {
		e.state.CurrentTime--
	}
	now := e.clock.Now()
	e.state.LastActiveTime = &now
	// Ticks missed while the host slept are taken from the deadline.
	if remaining := ceilSeconds(e.deadline.Sub(now)); remaining < e.state.CurrentTime-1 {
		e.state.CurrentTime = max(remaining, 0)
	}

	if e.state.CurrentTime == 0 {
		e.publisher.Publish(channel.TimerUpdate(0))
		e.completeLocked(now)
		return
	}
	e.persistLocked(now)
	e.publisher.Publish(channel.TimerUpdate(e.state.CurrentTime))
}

func (e *TimerEngine) completeLocked(now time.Time) {
	e.stopCountdownLocked()
	finished := e.state.Clone()
	e.recordLocked(finished.SessionType, finished.TotalTime, finished.SessionInfo)

	log.Info().
		Str("sessionType", string(finished.SessionType)).
		Int("duration", finished.TotalTime).
		Msg("Session complete")

	e.advanceLocked(finished.SessionType, finished.CurrentSession, now)

	sound := notify.SoundFocus
	if finished.SessionType == model.SessionFocus {
		sound = notify.SoundBreak
	}
	e.notifier.Notify(notify.Notification{
		Title:   finished.SessionType.Label() + " Complete!",
		Message: "Time for a change of pace!",
		Sound:   sound,
	})
}

// advanceLocked installs the next idle session and broadcasts it.
func (e *TimerEngine) advanceLocked(finishing model.SessionType, currentSession int, now time.Time) {
	next, seconds, index := NextSession(finishing, currentSession, e.settings.Current())
	e.state = model.TimerState{
		CurrentTime:    seconds,
		TotalTime:      seconds,
		SessionType:    next,
		CurrentSession: index,
		TotalSessions:  model.FocusSessionsPerCycle,
		LastActiveTime: &now,
	}
	e.persistLocked(now)
	e.publisher.Publish(channel.SessionComplete(e.state))
}

func (e *TimerEngine) recordLocked(sessionType model.SessionType, duration int, info *model.SessionInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := e.recorder.Record(ctx, sessionType, duration, info); err != nil {
		log.Error().Err(err).Str("sessionType", string(sessionType)).Msg("Failed to record session")
	}
}

func (e *TimerEngine) persistLocked(now time.Time) {
	snapshot := model.PersistedSession{TimerState: e.state.Clone()}
	if e.state.IsRunning {
		end := now.Add(time.Duration(e.state.CurrentTime) * time.Second)
		snapshot.EndTime = &end
	}
	e.writer.Store(snapshot)
}
