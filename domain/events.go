package domain

import (
	"context"
	"time"
)

// EventType identifies the lifecycle events the module emits.
type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
)

// Event carries the authenticated profile to external subscribers.
type Event struct {
	Type    EventType
	Profile *Profile
	Table   string
	At      time.Time
}

// EventDispatcher delivers login/logout events. Dispatch failures are logged
// by callers and never abort an otherwise successful flow.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}
