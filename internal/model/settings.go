package model

const (
	DefaultFocusMinutes      = 25
	DefaultBreakMinutes      = 5
	DefaultLongBreakMinutes  = 15
	DefaultSoundEnabled      = true
	DefaultDesktopNotifyFlag = true
)

type Settings struct {
	FocusDuration        int  `json:"focusDuration"`
	BreakDuration        int  `json:"breakDuration"`
	LongBreakDuration    int  `json:"longBreakDuration"`
	SoundEnabled         bool `json:"soundEnabled"`
	DesktopNotifications bool `json:"desktopNotifications"`
}

func DefaultSettings() Settings {
	return Settings{
		FocusDuration:        DefaultFocusMinutes,
		BreakDuration:        DefaultBreakMinutes,
		LongBreakDuration:    DefaultLongBreakMinutes,
		SoundEnabled:         DefaultSoundEnabled,
		DesktopNotifications: DefaultDesktopNotifyFlag,
	}
}

// SettingsPatch is a settings record as it arrives from a file or an
// observer. Nil fields were absent from the payload.
type SettingsPatch struct {
	FocusDuration        *int  `json:"focusDuration,omitempty" yaml:"focusDuration,omitempty"`
	BreakDuration        *int  `json:"breakDuration,omitempty" yaml:"breakDuration,omitempty"`
	LongBreakDuration    *int  `json:"longBreakDuration,omitempty" yaml:"longBreakDuration,omitempty"`
	SoundEnabled         *bool `json:"soundEnabled,omitempty" yaml:"soundEnabled,omitempty"`
	DesktopNotifications *bool `json:"desktopNotifications,omitempty" yaml:"desktopNotifications,omitempty"`
}

// PatchOf returns a patch with every field of s set.
func PatchOf(s Settings) SettingsPatch {
	return SettingsPatch{
		FocusDuration:        &s.FocusDuration,
		BreakDuration:        &s.BreakDuration,
		LongBreakDuration:    &s.LongBreakDuration,
		SoundEnabled:         &s.SoundEnabled,
		DesktopNotifications: &s.DesktopNotifications,
	}
}

// ApplyTo overlays the present fields onto base. Non-positive durations are
// ignored.
func (p SettingsPatch) ApplyTo(base Settings) Settings {
	if p.FocusDuration != nil && *p.FocusDuration > 0 {
		base.FocusDuration = *p.FocusDuration
	}
	if p.BreakDuration != nil && *p.BreakDuration > 0 {
		base.BreakDuration = *p.BreakDuration
	}
	if p.LongBreakDuration != nil && *p.LongBreakDuration > 0 {
		base.LongBreakDuration = *p.LongBreakDuration
	}
	if p.SoundEnabled != nil {
		base.SoundEnabled = *p.SoundEnabled
	}
	if p.DesktopNotifications != nil {
		base.DesktopNotifications = *p.DesktopNotifications
	}
	return base
}

// Normalized replaces non-positive durations with their defaults.
func (s Settings) Normalized() Settings {
	if s.FocusDuration <= 0 {
		s.FocusDuration = DefaultFocusMinutes
	}
	if s.BreakDuration <= 0 {
		s.BreakDuration = DefaultBreakMinutes
	}
	if s.LongBreakDuration <= 0 {
		s.LongBreakDuration = DefaultLongBreakMinutes
	}
	return s
}

// DurationFor returns the configured length of a session type in seconds.
func (s Settings) DurationFor(sessionType SessionType) int {
	s = s.Normalized()
	switch sessionType {
	case SessionBreak:
		return s.BreakDuration * 60
	case SessionLongBreak:
		return s.LongBreakDuration * 60
	default:
		return s.FocusDuration * 60
	}
}
