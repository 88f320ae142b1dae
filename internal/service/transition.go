package service

import "pomodoro/timerd/internal/model"

// NextSession returns the session that follows the finishing one, with its
// length in seconds. Completion and skip share this table.
func NextSession(finishing model.SessionType, currentSession int, settings model.Settings) (model.SessionType, int, int) {
	if currentSession < 1 {
		currentSession = 1
	}
	switch finishing {
	case model.SessionFocus:
		if currentSession >= model.FocusSessionsPerCycle {
			return model.SessionLongBreak, settings.DurationFor(model.SessionLongBreak), 1
		}
		return model.SessionBreak, settings.DurationFor(model.SessionBreak), currentSession
	case model.SessionLongBreak:
		return model.SessionFocus, settings.DurationFor(model.SessionFocus), 1
	default:
		return model.SessionFocus, settings.DurationFor(model.SessionFocus), currentSession + 1
	}
}
