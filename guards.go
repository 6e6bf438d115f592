package auth

import (
	"strings"
)

// Route requirements understood by Guard.
const (
	RequireNone RouteRequirement = iota
	RequireAuth
	RequireAdmin
)

// RouteRequirement is the access level a route needs.
type RouteRequirement int

// Default redirect targets used when a route is refused.
const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/"
)

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// GuardRule binds a path prefix to a requirement.
type GuardRule struct {
	Prefix      string
	Requirement RouteRequirement
}

// Guard decides whether the current session may enter a route. Protected
// areas default to /dashboard (any session with a token) and /admin (admin
// profile only).
type Guard struct {
	rules          []GuardRule
	adminProfileID int
	loginPath      string
	homePath       string
}

// GuardOption customizes the guard.
type GuardOption func(*Guard)

// WithGuardRules replaces the default rules.
func WithGuardRules(rules ...GuardRule) GuardOption {
	return func(g *Guard) {
		g.rules = append([]GuardRule(nil), rules...)
	}
}

// WithGuardAdminProfileID sets the perfil_id granting admin access.
func WithGuardAdminProfileID(id int) GuardOption {
	return func(g *Guard) {
		g.adminProfileID = id
	}
}

// WithGuardRedirects overrides where refused requests are sent.
func WithGuardRedirects(loginPath, homePath string) GuardOption {
	return func(g *Guard) {
		if loginPath != "" {
			g.loginPath = loginPath
		}
		if homePath != "" {
			g.homePath = homePath
		}
	}
}

// NewGuard returns a guard with the default portal rules.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		rules: []GuardRule{
			{Prefix: "/admin", Requirement: RequireAdmin},
			{Prefix: "/dashboard", Requirement: RequireAuth},
		},
		adminProfileID: DefaultAdminProfileID,
		loginPath:      DefaultLoginPath,
		homePath:       DefaultHomePath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Requirement returns the strictest requirement matching path.
func (g *Guard) Requirement(path string) RouteRequirement {
	req := RequireNone
	for _, rule := range g.rules {
		if matchPrefix(path, rule.Prefix) && rule.Requirement > req {
			req = rule.Requirement
		}
	}
	return req
}

// Check evaluates path against session. A session still restoring counts as
// authenticated but not as admin, since the profile is unknown.
func (g *Guard) Check(session Session, path string) Decision {
	switch g.Requirement(path) {
	case RequireAuth:
		if !session.HasToken() {
			return Decision{RedirectTo: g.loginPath}
		}
	case RequireAdmin:
		if !session.HasToken() {
			return Decision{RedirectTo: g.loginPath}
		}
		if !IsAdminUser(session.User, g.adminProfileID) {
			return Decision{RedirectTo: g.homePath}
		}
	}
	return Decision{Allowed: true}
}

// Navigation lists which menu entries a session may see.
type Navigation struct {
	ShowLogin     bool   `json:"show_login"`
	ShowRegister  bool   `json:"show_register"`
	ShowDashboard bool   `json:"show_dashboard"`
	ShowAdmin     bool   `json:"show_admin"`
	ShowLogout    bool   `json:"show_logout"`
	Greeting      string `json:"greeting,omitempty"`
}

// Navigation derives menu visibility from session.
func (g *Guard) Navigation(session Session) Navigation {
	if !session.HasToken() {
		return Navigation{ShowLogin: true, ShowRegister: true}
	}
	return Navigation{
		ShowDashboard: true,
		ShowAdmin:     IsAdminUser(session.User, g.adminProfileID),
		ShowLogout:    true,
		Greeting:      session.User.DisplayName(),
	}
}

func matchPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
