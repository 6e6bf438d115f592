package auth

import (
	"context"
	"sync"
	"time"
)

// StatusTransition describes a change of SessionStatus observed on the
// session cell.
type StatusTransition struct {
	From   SessionStatus
	To     SessionStatus
	Epoch  uint64
	UserID string
	At     time.Time
}

// TransitionHook runs for every observed status change. Hooks run inside
// the session publication and must not call back into the controller.
type TransitionHook func(ctx context.Context, tr StatusTransition) error

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, err error, tr StatusTransition)

// StatusTrackerOption customizes tracker construction.
type StatusTrackerOption func(*StatusTracker)

// WithTrackerClock injects a custom clock (useful for tests).
func WithTrackerClock(now func() time.Time) StatusTrackerOption {
	return func(t *StatusTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTrackerActivitySink sets the sink receiving session.status.changed events.
func WithTrackerActivitySink(sink ActivitySink) StatusTrackerOption {
	return func(t *StatusTracker) {
		t.activitySink = normalizeActivitySink(sink)
	}
}

// WithTrackerLogger overrides the logger used for hook and sink failures.
func WithTrackerLogger(logger Logger) StatusTrackerOption {
	return func(t *StatusTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTransitionHook adds a hook executed on every status change.
func WithTransitionHook(h TransitionHook) StatusTrackerOption {
	return func(t *StatusTracker) {
		if h != nil {
			t.hooks = append(t.hooks, h)
		}
	}
}

// WithHookErrorHandler overrides how hook failures are reported. The
// default logs them.
func WithHookErrorHandler(handler HookErrorHandler) StatusTrackerOption {
	return func(t *StatusTracker) {
		if handler != nil {
			t.hookErrorHandler = handler
		}
	}
}

// StatusTracker turns the session stream into explicit status transitions.
// Publications that keep the status unchanged (a user refresh, a logout while
// anonymous) are not transitions.
type StatusTracker struct {
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hooks            []TransitionHook
	hookErrorHandler HookErrorHandler

	mu      sync.Mutex
	status  SessionStatus
	history []StatusTransition
	stop    func()
}

// NewStatusTracker subscribes to state and starts tracking. The current
// status is taken as the starting point and is not a transition.
func NewStatusTracker(state *SessionState, opts ...StatusTrackerOption) *StatusTracker {
	t := &StatusTracker{
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		status:       SessionAnonymous,
	}
	t.hookErrorHandler = func(_ context.Context, err error, tr StatusTransition) {
		t.logger.Error("status hook %s -> %s failed: %v", tr.From, tr.To, err)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	first := true
	t.stop = state.Subscribe(func(s Session) {
		if first {
			first = false
			t.mu.Lock()
			t.status = s.Status()
			t.mu.Unlock()
			return
		}
		t.observe(state.Epoch(), s)
	})
	return t
}

// Status returns the last observed status.
func (t *StatusTracker) Status() SessionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// History returns the transitions observed so far, oldest first.
func (t *StatusTracker) History() []StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StatusTransition, len(t.history))
	copy(out, t.history)
	return out
}

// Close stops tracking.
func (t *StatusTracker) Close() {
	if t.stop != nil {
		t.stop()
	}
}

func (t *StatusTracker) observe(epoch uint64, s Session) {
	to := s.Status()

	t.mu.Lock()
	from := t.status
	if from == to {
		t.mu.Unlock()
		return
	}
	tr := StatusTransition{
		From:   from,
		To:     to,
		Epoch:  epoch,
		UserID: userIDOf(s.User),
		At:     t.now(),
	}
	t.status = to
	t.history = append(t.history, tr)
	t.mu.Unlock()

	ctx := context.Background()
	for _, hook := range t.hooks {
		if err := hook(ctx, tr); err != nil {
			t.hookErrorHandler(ctx, err, tr)
		}
	}

	if err := t.activitySink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		UserID:     tr.UserID,
		FromStatus: from,
		ToStatus:   to,
		Metadata:   map[string]any{"epoch": epoch},
		OccurredAt: tr.At,
	}); err != nil {
		t.logger.Warn("status tracker sink error: %v", err)
	}
}
