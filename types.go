package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetAPIPrefix() string
	GetAdminProfileID() int
	GetRequestTimeout() time.Duration
}

// APIClient is the subset of the portal REST API the session core calls.
type APIClient interface {
	Login(ctx context.Context, payload LoginRequest) (*LoginResponse, error)
	Register(ctx context.Context, payload RegisterRequest) (*RegisterResponse, error)
	GetUser(ctx context.Context, id int64) (*User, error)
}

// TokenStore persists the session token and the cached user record in two
// independent slots. Get reports ok=false when the slot is empty.
type TokenStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// TokenDecoder turns a raw token into its claims.
type TokenDecoder interface {
	Decode(token string) (Claims, error)
}

// SessionSource is what the outbound gate needs from the controller.
type SessionSource interface {
	GetToken(ctx context.Context) (string, bool)
	Logout(ctx context.Context) error
}

// Doer sends HTTP requests, *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PORTAL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PORTAL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PORTAL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PORTAL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger {
	return noopLogger{}
}
