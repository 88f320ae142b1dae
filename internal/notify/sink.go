// Package notify delivers user-facing alerts. Every sink is fire-and-forget:
// Notify never blocks on an observer and never reports failure to the caller.
package notify

import (
	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/channel"
	"pomodoro/timerd/internal/model"
)

type SoundKind string

const (
	SoundFocus    SoundKind = "focus"
	SoundBreak    SoundKind = "break"
	SoundComplete SoundKind = "complete"
)

// Notification is an alert request. Desktop and PlaySound are filled in by
// PreferenceSink from the user's settings.
type Notification struct {
	Title     string
	Message   string
	Sound     SoundKind
	Desktop   bool
	PlaySound bool
}

type Sink interface {
	Notify(n Notification)
}

type SinkFunc func(n Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// Multi fans a notification out to each sink in order.
type Multi []Sink

func (m Multi) Notify(n Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

type SettingsSource interface {
	Current() model.Settings
}

// PreferenceSink applies soundEnabled and desktopNotifications before handing
// the notification on. With both disabled nothing is forwarded.
type PreferenceSink struct {
	settings SettingsSource
	next     Sink
}

func NewPreferenceSink(settings SettingsSource, next Sink) *PreferenceSink {
	return &PreferenceSink{settings: settings, next: next}
}

func (p *PreferenceSink) Notify(n Notification) {
	current := p.settings.Current()
	if !current.DesktopNotifications && !current.SoundEnabled {
		return
	}
	n.Desktop = current.DesktopNotifications
	n.PlaySound = current.SoundEnabled
	if n.Sound == "" {
		n.Sound = SoundComplete
	}
	p.next.Notify(n)
}

type LogSink struct{}

func (LogSink) Notify(n Notification) {
	log.Info().
		Str("title", n.Title).
		Str("message", n.Message).
		Str("sound", string(n.Sound)).
		Bool("desktop", n.Desktop).
		Bool("playSound", n.PlaySound).
		Msg("Notification")
}

type Publisher interface {
	Publish(n channel.Notification) channel.PublishResult
}

// HubSink forwards alerts to connected observers as NOTIFICATION messages.
type HubSink struct {
	hub Publisher
}

func NewHubSink(hub Publisher) *HubSink {
	return &HubSink{hub: hub}
}

func (h *HubSink) Notify(n Notification) {
	result := h.hub.Publish(channel.AlertNotification(channel.Alert{
		Title:   n.Title,
		Message: n.Message,
		Kind:    string(n.Sound),
		Desktop: n.Desktop,
		Sound:   n.PlaySound,
	}))
	if result.NoObservers() {
		log.Debug().Str("title", n.Title).Msg("No observer for notification")
	}
}
