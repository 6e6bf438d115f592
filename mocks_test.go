package auth_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-portal-auth"
)

var testSigningKey = []byte("test-secret")

// MockAPIClient implements auth.APIClient
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Login(ctx context.Context, payload auth.LoginRequest) (*auth.LoginResponse, error) {
	args := m.Called(ctx, payload)
	if res, ok := args.Get(0).(*auth.LoginResponse); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPIClient) Register(ctx context.Context, payload auth.RegisterRequest) (*auth.RegisterResponse, error) {
	args := m.Called(ctx, payload)
	if res, ok := args.Get(0).(*auth.RegisterResponse); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPIClient) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	args := m.Called(ctx, id)
	if res, ok := args.Get(0).(*auth.User); ok {
		return res.Clone(), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTokenStore wraps a MemoryStore and lets tests fail individual calls.
type MockTokenStore struct {
	mock.Mock
	inner *auth.MemoryStore
}

func (m *MockTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return "", false, err
	}
	return m.inner.Get(ctx, key)
}

func (m *MockTokenStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.inner.Set(ctx, key, value)
}

func (m *MockTokenStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.inner.Remove(ctx, key)
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type sessionRecorder struct {
	mu       sync.Mutex
	sessions []auth.Session
}

func (r *sessionRecorder) listener(s auth.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *sessionRecorder) statuses() []auth.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.SessionStatus, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Status())
	}
	return out
}

func (r *sessionRecorder) all() []auth.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.Session(nil), r.sessions...)
}

type harness struct {
	api   *MockAPIClient
	store *auth.MemoryStore
	sink  *recordingSink
	ctrl  *auth.Controller
	now   time.Time
}

func newHarness(t *testing.T, opts ...auth.ControllerOption) *harness {
	t.Helper()
	h := &harness{
		api:   &MockAPIClient{},
		store: auth.NewMemoryStore(),
		sink:  &recordingSink{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []auth.ControllerOption{
		auth.WithLogger(auth.NoopLogger()),
		auth.WithActivitySink(h.sink),
		auth.WithClock(func() time.Time { return h.now }),
	}
	h.ctrl = auth.NewController(h.api, h.store, append(base, opts...)...)
	t.Cleanup(h.ctrl.Wait)
	return h
}

func (h *harness) mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	require.NoError(t, err)
	return token
}

func (h *harness) seedStore(t *testing.T, token string, user *auth.User) {
	t.Helper()
	ctx := context.Background()
	if token != "" {
		require.NoError(t, h.store.Set(ctx, auth.TokenKey, token))
	}
	if user != nil {
		raw, err := json.Marshal(user)
		require.NoError(t, err)
		require.NoError(t, h.store.Set(ctx, auth.UserKey, string(raw)))
	}
}

func (h *harness) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func validClaims(id int64) jwt.MapClaims {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return jwt.MapClaims{
		"id":  id,
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func userWithID(id int64, profile int) *auth.User {
	return &auth.User{
		ID:        json.Number(strconv.FormatInt(id, 10)),
		ProfileID: profile,
		FirstName: "Ana",
		LastName:  "García",
		Nick:      "ana" + strconv.FormatInt(id, 10),
		Email:     "ana@portal.test",
		Active:    true,
	}
}

func adminUser(id int64) *auth.User {
	u := userWithID(id, auth.DefaultAdminProfileID)
	u.Nick = "admin"
	return u
}
