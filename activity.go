package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventRegister            ActivityEventType = "auth.register"
	ActivityEventLogout              ActivityEventType = "auth.logout"
	ActivityEventSessionRestored     ActivityEventType = "session.restored"
	ActivityEventSessionRestoreError ActivityEventType = "session.restore.failure"
	ActivityEventSessionHealed       ActivityEventType = "session.healed"
	ActivityEventUserRefreshed       ActivityEventType = "session.user.refreshed"
	ActivityEventStatusChanged       ActivityEventType = "session.status.changed"
)

// ActivityEvent captures what happened to the session.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromStatus SessionStatus
	ToStatus   SessionStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
