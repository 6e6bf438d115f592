package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	bearerScheme        = "Bearer"
)

// Gate is the outbound request gate. It attaches the bearer token to every
// request aimed at the API and tears the session down when the API answers
// 401. It never retries.
type Gate struct {
	session SessionSource
	next    http.RoundTripper
	prefix  string
	host    string
	logger  Logger
}

var _ http.RoundTripper = (*Gate)(nil)

// GateOption customizes the gate.
type GateOption func(*Gate)

// WithGatePrefix sets the API path prefix, DefaultAPIPrefix by default.
func WithGatePrefix(prefix string) GateOption {
	return func(g *Gate) {
		if prefix != "" {
			g.prefix = normalizePrefix(prefix)
		}
	}
}

// WithGateHost restricts token attachment to requests for host.
func WithGateHost(host string) GateOption {
	return func(g *Gate) {
		g.host = host
	}
}

// WithGateTransport sets the transport requests are forwarded to.
func WithGateTransport(rt http.RoundTripper) GateOption {
	return func(g *Gate) {
		if rt != nil {
			g.next = rt
		}
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(l Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate returns a gate reading the token from session.
func NewGate(session SessionSource, opts ...GateOption) *Gate {
	g := &Gate{
		session: session,
		next:    http.DefaultTransport,
		prefix:  DefaultAPIPrefix,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Bind sets the session source after construction, the controller and the
// gate need each other.
func (g *Gate) Bind(session SessionSource) {
	g.session = session
}

// IsAPIRequest reports whether req targets the API.
func (g *Gate) IsAPIRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	if g.host != "" && req.URL.Host != "" && !strings.EqualFold(req.URL.Host, g.host) {
		return false
	}
	path := req.URL.Path
	return path == g.prefix || strings.HasPrefix(path, g.prefix+"/")
}

// RoundTrip satisfies http.RoundTripper.
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	if !g.IsAPIRequest(req) || g.session == nil {
		return g.next.RoundTrip(req)
	}

	ctx := req.Context()
	out := req.Clone(ctx)
	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}

	if token, ok := g.session.GetToken(ctx); ok {
		out.Header.Set(HeaderAuthorization, bearerScheme+" "+token)
	} else {
		g.logger.Debug("gate: no token available for %s %s", req.Method, req.URL.Path)
	}

	res, err := g.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnauthorized {
		g.logger.Warn("gate: %s %s returned 401, logging out", req.Method, req.URL.Path)
		if lerr := g.session.Logout(context.WithoutCancel(ctx)); lerr != nil {
			g.logger.Error("gate: logout after 401 failed: %v", lerr)
		}
	}

	return res, nil
}
