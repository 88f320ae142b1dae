package model

import "time"

type SessionType string

const (
	SessionFocus     SessionType = "focus"
	SessionBreak     SessionType = "break"
	SessionLongBreak SessionType = "long_break"
)

// FocusSessionsPerCycle is the number of focus sessions before a long break.
const FocusSessionsPerCycle = 4

func (t SessionType) Valid() bool {
	return t == SessionFocus || t == SessionBreak || t == SessionLongBreak
}

// Label returns the human-readable name used in notifications.
func (t SessionType) Label() string {
	switch t {
	case SessionBreak:
		return "Break"
	case SessionLongBreak:
		return "Long Break"
	default:
		return "Focus Time"
	}
}

// SessionInfo is the intention a user attaches when starting a focus session.
type SessionInfo struct {
	Goal          string `json:"goal,omitempty"`
	StartingPoint string `json:"startingPoint,omitempty"`
	Hazards       string `json:"hazards,omitempty"`
	Energy        int    `json:"energy,omitempty"`
	Morale        int    `json:"morale,omitempty"`
}

type TimerState struct {
	IsRunning      bool         `json:"isRunning"`
	CurrentTime    int          `json:"currentTime"`
	TotalTime      int          `json:"totalTime"`
	SessionType    SessionType  `json:"sessionType"`
	CurrentSession int          `json:"currentSession"`
	TotalSessions  int          `json:"totalSessions"`
	SessionInfo    *SessionInfo `json:"sessionInfo,omitempty"`
	LastActiveTime *time.Time   `json:"lastActiveTime,omitempty"`
}

// NewFocusState returns an idle first focus session of the given length.
func NewFocusState(durationSeconds int) TimerState {
	return TimerState{
		CurrentTime:    durationSeconds,
		TotalTime:      durationSeconds,
		SessionType:    SessionFocus,
		CurrentSession: 1,
		TotalSessions:  FocusSessionsPerCycle,
	}
}

// Clone returns a copy that shares no pointers with s.
func (s TimerState) Clone() TimerState {
	out := s
	if s.SessionInfo != nil {
		info := *s.SessionInfo
		out.SessionInfo = &info
	}
	if s.LastActiveTime != nil {
		at := *s.LastActiveTime
		out.LastActiveTime = &at
	}
	return out
}

// Progress is the elapsed share of the current session in [0, 1].
func (s TimerState) Progress() float64 {
	if s.TotalTime <= 0 {
		return 0
	}
	progress := float64(s.TotalTime-s.CurrentTime) / float64(s.TotalTime)
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}

// PersistedSession is the durable snapshot of TimerState. EndTime is only set
// while the countdown runs and is the sole source of remaining time on recovery.
type PersistedSession struct {
	TimerState
	EndTime *time.Time `json:"endTime,omitempty"`
}

type SessionHistoryEntry struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Type        SessionType  `json:"type"`
	Duration    int          `json:"duration"`
	SessionInfo *SessionInfo `json:"sessionInfo,omitempty"`
}

type DailyStats struct {
	Date      string `json:"date"`
	FocusTime int    `json:"focusTime"`
	Sessions  int    `json:"sessions"`
}

// StartConfig carries the fields a start command may override; nil fields keep
// the engine's current value.
type StartConfig struct {
	CurrentTime    *int
	TotalTime      *int
	CurrentSession *int
	SessionType    *SessionType
	SessionInfo    *SessionInfo
}

// DayKey formats the calendar day of t in t's location.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
