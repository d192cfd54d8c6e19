// Package status carries fire-and-forget progress notifications from the
// recorder to whatever surface wants to show them.
package status

import "github.com/rs/zerolog"

// Sink receives progress notifications. Notify must never block and must
// never fail the operation it annotates.
type Sink interface {
	Notify(title, description string)
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Notify(title, description string) {
	s.Log.Info().Str("title", title).Msg(description)
}

// NopSink discards notifications.
type NopSink struct{}

func (NopSink) Notify(title, description string) {}

// Func adapts a plain function to a Sink.
type Func func(title, description string)

func (f Func) Notify(title, description string) { f(title, description) }
