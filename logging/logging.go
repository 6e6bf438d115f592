// Package logging adapts log/slog to the printf style auth.Logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activitymap"
)

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a slog logger writing text or json to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Adapter exposes a slog logger as an auth.Logger.
type Adapter struct {
	logger *slog.Logger
}

var _ auth.Logger = (*Adapter)(nil)

// Adapt wraps logger. A nil logger uses slog.Default.
func Adapt(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger.With("component", "portal")}
}

func (a *Adapter) Debug(format string, args ...any) { a.log(slog.LevelDebug, format, args...) }
func (a *Adapter) Info(format string, args ...any)  { a.log(slog.LevelInfo, format, args...) }
func (a *Adapter) Warn(format string, args ...any)  { a.log(slog.LevelWarn, format, args...) }
func (a *Adapter) Error(format string, args ...any) { a.log(slog.LevelError, format, args...) }

func (a *Adapter) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

// ActivitySink logs every activity event at info level.
func ActivitySink(logger *slog.Logger) auth.ActivitySink {
	if logger == nil {
		logger = slog.Default()
	}
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		logger.InfoContext(ctx, "session activity", activitymap.Normalize(event).Attrs()...)
		return nil
	})
}
