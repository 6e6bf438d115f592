package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultAPIPrefix is the path every portal API call lives under.
const DefaultAPIPrefix = "/api"

// HTTPAPI talks to the portal REST API over HTTP. Requests go through the
// Doer, which in a wired client carries the Gate transport.
type HTTPAPI struct {
	baseURL string
	prefix  string
	doer    Doer
	logger  Logger
}

var _ APIClient = (*HTTPAPI)(nil)

// HTTPAPIOption customizes HTTPAPI.
type HTTPAPIOption func(*HTTPAPI)

// WithDoer sets the HTTP client used for every call.
func WithDoer(d Doer) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if d != nil {
			a.doer = d
		}
	}
}

// WithAPIPrefix overrides DefaultAPIPrefix.
func WithAPIPrefix(prefix string) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if prefix != "" {
			a.prefix = normalizePrefix(prefix)
		}
	}
}

// WithAPILogger sets the logger.
func WithAPILogger(l Logger) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewHTTPAPI returns a client for the API rooted at baseURL.
func NewHTTPAPI(baseURL string, opts ...HTTPAPIOption) *HTTPAPI {
	a := &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  DefaultAPIPrefix,
		doer:    http.DefaultClient,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Login calls POST /auth/login.
func (a *HTTPAPI) Login(ctx context.Context, payload LoginRequest) (*LoginResponse, error) {
	res := &LoginResponse{}
	if err := a.Do(ctx, http.MethodPost, "/auth/login", payload, res, loginFallbackMessage); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &APIError{Status: http.StatusOK, Message: loginFallbackMessage}
	}
	return res, nil
}

// Register calls POST /auth/register.
func (a *HTTPAPI) Register(ctx context.Context, payload RegisterRequest) (*RegisterResponse, error) {
	res := &RegisterResponse{}
	if err := a.Do(ctx, http.MethodPost, "/auth/register", payload, res, registerFallbackMessage); err != nil {
		return nil, err
	}
	return res, nil
}

// GetUser calls GET /users/:id and unwraps the envelope.
func (a *HTTPAPI) GetUser(ctx context.Context, id int64) (*User, error) {
	body, err := a.Raw(ctx, http.MethodGet, "/users/"+strconv.FormatInt(id, 10), nil, userFallbackMessage)
	if err != nil {
		return nil, err
	}
	user := &User{}
	if err := Unwrap(body, user); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: userFallbackMessage, Body: body}
	}
	return user, nil
}

// Do sends body as JSON to path (relative to the API prefix) and decodes
// the response into out. Envelopes are not unwrapped, use Unwrap on the
// result of Raw for that.
func (a *HTTPAPI) Do(ctx context.Context, method, path string, body, out any, fallback string) error {
	raw, err := a.Raw(ctx, method, path, body, fallback)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: http.StatusOK, Message: fallback, Body: raw}
	}
	return nil
}

// Raw sends the request and returns the response body of a 2xx response.
// Any other outcome is an *APIError carrying a user facing message.
func (a *HTTPAPI) Raw(ctx context.Context, method, path string, body any, fallback string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	a.logger.Debug("api request %s %s", method, req.URL.Path)

	res, err := a.doer.Do(req)
	if err != nil {
		a.logger.Error("api request %s %s failed: %v", method, req.URL.Path, err)
		return nil, &APIError{Message: fallback}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &APIError{Status: res.StatusCode, Message: fallback}
	}

	a.logger.Debug("api response %s %s status=%d", method, req.URL.Path, res.StatusCode)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newAPIError(res.StatusCode, data, fallback)
	}
	return data, nil
}

// URL resolves path against the base URL and API prefix.
func (a *HTTPAPI) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasPrefix(path, a.prefix+"/") {
		path = a.prefix + path
	}
	return a.baseURL + path
}

// BaseHost returns the host of the base URL, empty when the base is relative.
func (a *HTTPAPI) BaseHost() string {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func messageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if s, ok := payload.Error.(string); ok {
		return s
	}
	return ""
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
