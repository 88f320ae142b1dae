package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettingsDurationFor(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 1500, s.DurationFor(SessionFocus))
	assert.Equal(t, 300, s.DurationFor(SessionBreak))
	assert.Equal(t, 900, s.DurationFor(SessionLongBreak))

	zero := Settings{}
	assert.Equal(t, 1500, zero.DurationFor(SessionFocus))
}

func TestSettingsPatchApplyTo(t *testing.T) {
	focus, negative, off := 40, -3, false
	patch := SettingsPatch{FocusDuration: &focus, BreakDuration: &negative, SoundEnabled: &off}

	got := patch.ApplyTo(DefaultSettings())
	assert.Equal(t, 40, got.FocusDuration)
	assert.Equal(t, DefaultBreakMinutes, got.BreakDuration)
	assert.Equal(t, DefaultLongBreakMinutes, got.LongBreakDuration)
	assert.False(t, got.SoundEnabled)
	assert.True(t, got.DesktopNotifications)

	s := Settings{FocusDuration: 1, BreakDuration: 2, LongBreakDuration: 3, DesktopNotifications: true}
	assert.Equal(t, s, PatchOf(s).ApplyTo(DefaultSettings()))
}

func TestTimerStateProgress(t *testing.T) {
	assert.Equal(t, 0.0, TimerState{}.Progress())
	assert.Equal(t, 0.5, TimerState{CurrentTime: 50, TotalTime: 100}.Progress())
	assert.Equal(t, 1.0, TimerState{CurrentTime: -5, TotalTime: 100}.Progress())
	assert.Equal(t, 0.0, TimerState{CurrentTime: 200, TotalTime: 100}.Progress())
}

func TestTimerStateCloneIsDeep(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	s := TimerState{SessionInfo: &SessionInfo{Goal: "a"}, LastActiveTime: &at}
	c := s.Clone()
	c.SessionInfo.Goal = "b"
	*c.LastActiveTime = at.Add(time.Hour)

	assert.Equal(t, "a", s.SessionInfo.Goal)
	assert.True(t, s.LastActiveTime.Equal(at))
}

func TestSessionTypeLabelAndValid(t *testing.T) {
	assert.Equal(t, "Focus Time", SessionFocus.Label())
	assert.Equal(t, "Break", SessionBreak.Label())
	assert.Equal(t, "Long Break", SessionLongBreak.Label())
	assert.True(t, SessionLongBreak.Valid())
	assert.False(t, SessionType("nap").Valid())
}

func TestDayKeyUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01", DayKey(at))
	assert.Equal(t, "2026-03-02", DayKey(at.In(loc)))
}
