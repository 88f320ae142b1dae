package channel

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "pomodoro/timerd/internal/errors"
	"pomodoro/timerd/internal/model"
)

// Controller is the command surface of the timer engine.
type Controller interface {
	State() model.TimerState
	Start(cfg model.StartConfig)
	Pause()
	Skip(sessionType model.SessionType, currentSession int)
}

type SettingsStore interface {
	Current() model.Settings
	Save(settings model.Settings) error
}

// Dispatcher routes commands to the engine. A nil response means the command
// has no synchronous reply and observers learn the outcome by broadcast.
type Dispatcher struct {
	engine     Controller
	settings   SettingsStore
	onSettings func(model.Settings)
}

func NewDispatcher(engine Controller, settings SettingsStore) *Dispatcher {
	return &Dispatcher{engine: engine, settings: settings}
}

// OnSettingsUpdated registers a callback run after SETTINGS_UPDATED is stored.
func (d *Dispatcher) OnSettingsUpdated(fn func(model.Settings)) {
	d.onSettings = fn
}

func (d *Dispatcher) Dispatch(_ context.Context, cmd Command) (any, *apperrors.APIError) {
	switch cmd.Type {
	case CommandGetTimerState:
		return d.engine.State(), nil

	case CommandStartTimer:
		cfg, apiErr := startConfig(cmd)
		if apiErr != nil {
			return nil, apiErr
		}
		d.engine.Start(cfg)
		return Ack{Success: true}, nil

	case CommandPauseTimer:
		d.engine.Pause()
		return Ack{Success: true}, nil

	case CommandSkipTimer:
		current := d.engine.State()
		sessionType := current.SessionType
		index := current.CurrentSession
		if cmd.SessionType != nil {
			if !cmd.SessionType.Valid() {
				return nil, apperrors.BadRequest(apperrors.CodeInvalidSessionType, "sessionType must be one of focus, break, long_break")
			}
			sessionType = *cmd.SessionType
		}
		if cmd.CurrentSession != nil {
			index = *cmd.CurrentSession
		}
		d.engine.Skip(sessionType, index)
		return nil, nil

	case CommandSettingsUpdated:
		if cmd.Settings == nil {
			return nil, apperrors.BadRequest(apperrors.CodeMissingSettings, "settings are required")
		}
		// The payload is a whole record; absent keys take their defaults.
		if err := d.settings.Save(cmd.Settings.ApplyTo(model.DefaultSettings())); err != nil {
			log.Error().Err(err).Msg("Failed to store settings")
			return nil, apperrors.Internal("failed to store settings")
		}
		if d.onSettings != nil {
			d.onSettings(d.settings.Current())
		}
		return nil, nil

	default:
		return nil, apperrors.BadRequest(apperrors.CodeUnknownCommand, "unknown command type "+string(cmd.Type))
	}
}

func startConfig(cmd Command) (model.StartConfig, *apperrors.APIError) {
	if cmd.SessionType != nil && !cmd.SessionType.Valid() {
		return model.StartConfig{}, apperrors.BadRequest(apperrors.CodeInvalidSessionType, "sessionType must be one of focus, break, long_break")
	}
	if cmd.CurrentTime != nil && *cmd.CurrentTime < 0 {
		return model.StartConfig{}, apperrors.BadRequest(apperrors.CodeInvalidDuration, "currentTime must not be negative")
	}
	if cmd.TotalTime != nil && *cmd.TotalTime < 0 {
		return model.StartConfig{}, apperrors.BadRequest(apperrors.CodeInvalidDuration, "totalTime must not be negative")
	}
	return model.StartConfig{
		CurrentTime:    cmd.CurrentTime,
		TotalTime:      cmd.TotalTime,
		CurrentSession: cmd.CurrentSession,
		SessionType:    cmd.SessionType,
		SessionInfo:    cmd.SessionInfo,
	}, nil
}
