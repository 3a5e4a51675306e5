// Package events publishes one event per tool call to an optional bus.
package events

import (
	"context"
	"time"
)

// DefaultSubject prefixes call event subjects.
const DefaultSubject = "agi.calls"

// CallEvent describes one finished tool call.
type CallEvent struct {
	Tool       string    `json:"tool"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher publishes call events.
type Publisher interface {
	PublishCall(ctx context.Context, event CallEvent) error
	Close() error
}

// NoOpPublisher discards every event. It is used when no bus is configured.
type NoOpPublisher struct{}

// PublishCall is a no-op.
func (NoOpPublisher) PublishCall(context.Context, CallEvent) error { return nil }

// Close is a no-op.
func (NoOpPublisher) Close() error { return nil }

// CallbackPublisher hands every event to a function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event CallEvent) error
}

// NewCallbackPublisher creates a CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event CallEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishCall calls the callback.
func (p *CallbackPublisher) PublishCall(ctx context.Context, event CallEvent) error {
	return p.callback(ctx, event)
}

// Close is a no-op.
func (p *CallbackPublisher) Close() error { return nil }
