// Package channel defines the command and notification contract between the
// timer engine and its observers, the observer hub and the command dispatcher.
package channel

import "pomodoro/timerd/internal/model"

type CommandType string

const (
	CommandGetTimerState   CommandType = "GET_TIMER_STATE"
	CommandStartTimer      CommandType = "START_TIMER"
	CommandPauseTimer      CommandType = "PAUSE_TIMER"
	CommandSkipTimer       CommandType = "SKIP_TIMER"
	CommandSettingsUpdated CommandType = "SETTINGS_UPDATED"
)

// Command is the flat wire message sent by observers. Only the fields of the
// given type are read; nil fields are "not supplied".
type Command struct {
	Type           CommandType          `json:"type" binding:"required"`
	CurrentTime    *int                 `json:"currentTime,omitempty"`
	TotalTime      *int                 `json:"totalTime,omitempty"`
	CurrentSession *int                 `json:"currentSession,omitempty"`
	SessionType    *model.SessionType   `json:"sessionType,omitempty"`
	SessionInfo    *model.SessionInfo   `json:"sessionInfo,omitempty"`
	Settings       *model.SettingsPatch `json:"settings,omitempty"`
}

// Ack is the response of commands that only report acceptance.
type Ack struct {
	Success bool `json:"success"`
}

type NotificationType string

const (
	NotifyTimerUpdate     NotificationType = "TIMER_UPDATE"
	NotifySessionComplete NotificationType = "SESSION_COMPLETE"
	NotifyAlert           NotificationType = "NOTIFICATION"
)

// Alert asks observers to surface a desktop notification and/or a sound.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Desktop bool   `json:"desktop"`
	Sound   bool   `json:"sound"`
}

type Notification struct {
	Type        NotificationType  `json:"type"`
	CurrentTime *int              `json:"currentTime,omitempty"`
	NewState    *model.TimerState `json:"newState,omitempty"`
	Alert       *Alert            `json:"alert,omitempty"`
}

func TimerUpdate(currentTime int) Notification {
	return Notification{Type: NotifyTimerUpdate, CurrentTime: &currentTime}
}

func SessionComplete(state model.TimerState) Notification {
	s := state.Clone()
	return Notification{Type: NotifySessionComplete, NewState: &s}
}

func AlertNotification(alert Alert) Notification {
	return Notification{Type: NotifyAlert, Alert: &alert}
}
