package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pomodoro/timerd/internal/channel"
	"pomodoro/timerd/internal/model"
	"pomodoro/timerd/internal/notify"
	"pomodoro/timerd/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualTicker delivers a tick only when the test fires it.
type manualTicker struct {
	ch       chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}

func (m *manualTicker) isStopped() bool {
	select {
	case <-m.stopped:
		return true
	default:
		return false
	}
}

// fire reports whether the countdown goroutine accepted the tick.
func (m *manualTicker) fire() bool {
	if m.isStopped() {
		return false
	}
	select {
	case m.ch <- time.Time{}:
		return true
	case <-m.stopped:
		return false
	case <-time.After(time.Second):
		return false
	}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

type staticSettings struct {
	mu sync.Mutex
	s  model.Settings
}

func (s *staticSettings) Current() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingSink) Notify(n notify.Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recordingSink) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

type engineFixture struct {
	engine   *TimerEngine
	repo     *repository.TimerRepository
	hub      *channel.Hub
	sub      *channel.Subscription
	clock    *fakeClock
	tickers  *tickerFactory
	settings *staticSettings
	sink     *recordingSink
}

var fixtureStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, cfg EngineConfig) *engineFixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.NewTimerRepository(repository.NewMemoryStore()), cfg)
}

func newFixtureWithRepo(t *testing.T, repo *repository.TimerRepository, cfg EngineConfig) *engineFixture {
	t.Helper()
	f := &engineFixture{
		repo:     repo,
		hub:      channel.NewHub(),
		clock:    newFakeClock(fixtureStart),
		tickers:  &tickerFactory{},
		settings: &staticSettings{s: model.DefaultSettings()},
		sink:     &recordingSink{},
	}
	f.sub = f.hub.Subscribe(4096)
	f.engine = NewTimerEngine(EngineDeps{
		Repo:      repo,
		Settings:  f.settings,
		Publisher: f.hub,
		Notifier:  f.sink,
		Clock:     f.clock,
		NewTicker: f.tickers.New,
	}, cfg)
	t.Cleanup(f.engine.Close)
	return f
}

// tick fires the current countdown once and waits for the resulting update.
func (f *engineFixture) tick(t *testing.T) channel.Notification {
	t.Helper()
	ticker := f.tickers.last()
	require.NotNil(t, ticker)
	require.True(t, ticker.fire(), "countdown did not accept tick")
	return f.next(t)
}

func (f *engineFixture) next(t *testing.T) channel.Notification {
	t.Helper()
	select {
	case n := <-f.sub.C:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return channel.Notification{}
	}
}

func (f *engineFixture) snapshot(t *testing.T) *model.PersistedSession {
	t.Helper()
	f.engine.Flush()
	snap, err := f.repo.LoadSnapshot(t.Context())
	require.NoError(t, err)
	return snap
}

func intPtr(v int) *int { return &v }

func typePtr(t model.SessionType) *model.SessionType { return &t }
