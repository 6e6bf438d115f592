package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Controller orchestrates login, registration, logout and session
// restoration. It is the only writer of the SessionState and the TokenStore.
//
// Store writes and the publication that follows them happen under one lock,
// so listeners registered with Subscribe run while that lock is held. They
// must treat the Session they receive as read only and must not call back
// into the controller synchronously.
type Controller struct {
	api            APIClient
	store          TokenStore
	state          *SessionState
	decoder        TokenDecoder
	logger         Logger
	activitySink   ActivitySink
	now            func() time.Time
	adminProfileID int
	fetchTimeout   time.Duration

	mu sync.Mutex
	wg sync.WaitGroup
}

// ControllerOption customizes controller construction.
type ControllerOption func(*Controller)

// WithTokenDecoder overrides the default unverified decoder.
func WithTokenDecoder(d TokenDecoder) ControllerOption {
	return func(c *Controller) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithActivitySink sets the sink receiving session events.
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithAdminProfileID sets the perfil_id that makes a user an admin.
func WithAdminProfileID(id int) ControllerOption {
	return func(c *Controller) {
		c.adminProfileID = id
	}
}

// WithSessionState shares an existing state cell.
func WithSessionState(s *SessionState) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.state = s
		}
	}
}

// WithFetchTimeout bounds the background profile fetch started by
// RestoreSession.
func WithFetchTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.fetchTimeout = d
	}
}

// NewController returns a controller over api and store. The session starts
// anonymous, call RestoreSession to load what the store holds.
func NewController(api APIClient, store TokenStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:            api,
		store:          store,
		state:          NewSessionState(Session{}),
		decoder:        NewUnverifiedDecoder(),
		logger:         defLogger{},
		activitySink:   noopActivitySink{},
		now:            time.Now,
		adminProfileID: DefaultAdminProfileID,
		fetchTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State exposes the session cell for readers.
func (c *Controller) State() *SessionState {
	return c.state
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	return c.state.Current()
}

// Subscribe delivers the current session and every later one to fn.
func (c *Controller) Subscribe(fn SessionListener) func() {
	return c.state.Subscribe(fn)
}

// Wait blocks until background work started by RestoreSession finishes.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Login exchanges credentials for a token, validates it and loads the
// user record. Any failure after the API accepted the credentials leaves
// the client logged out.
func (c *Controller) Login(ctx context.Context, email, password string) (*User, error) {
	payload := LoginRequest{Email: email, Password: password}
	if err := payload.Validate(); err != nil {
		c.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"error": err.Error()})
		return nil, validationError(err)
	}

	// The gate heals a token missing from memory before sending, which
	// starts a new epoch. Heal first so that does not read as a logout.
	c.GetToken(ctx)
	epoch := c.state.Epoch()

	res, err := c.api.Login(ctx, payload)
	if err != nil {
		c.logger.Error("login request failed: %v", err)
		c.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"error": ErrorMessage(err)})
		return nil, wrapAPIError(err, loginFallbackMessage)
	}

	id, err := c.validateToken(res.Token)
	if err != nil {
		c.logger.Warn("login rejected token: %v", err)
		c.forceLogout(ctx, "login: "+ErrorMessage(err))
		c.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"error": ErrorMessage(err)})
		return nil, err
	}

	epoch, err = c.beginSession(ctx, epoch, res.Token)
	if err != nil {
		c.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"error": ErrorMessage(err)})
		return nil, err
	}

	user, err := c.fetchUser(ctx, epoch, id)
	if err != nil {
		c.logger.Error("login could not load user %d: %v", id, err)
		if !IsSessionSuperseded(err) {
			c.forceLogout(ctx, "login: user fetch failed")
		}
		c.emit(ctx, ActivityEventLoginFailure, fmt.Sprint(id), map[string]any{"error": ErrorMessage(err)})
		return nil, err
	}

	c.logger.Info("login succeeded for user %d", id)
	c.emit(ctx, ActivityEventLoginSuccess, fmt.Sprint(id), nil)
	return user, nil
}

// Register creates an account. It never touches the session.
func (c *Controller) Register(ctx context.Context, payload RegisterRequest) (*RegisterResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}

	res, err := c.api.Register(ctx, payload)
	if err != nil {
		c.logger.Error("register request failed: %v", err)
		return nil, wrapAPIError(err, registerFallbackMessage)
	}

	c.emit(ctx, ActivityEventRegister, "", map[string]any{"nick": payload.Nick})
	return res, nil
}

// Logout clears both store slots and publishes the anonymous session. It
// is idempotent.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	prev, err := c.logoutLocked(ctx)
	c.mu.Unlock()

	if prev.HasToken() {
		c.emit(ctx, ActivityEventLogout, userIDOf(prev.User), nil)
	}
	return err
}

// RestoreSession loads the persisted session. Corrupt, expired or
// subjectless tokens are dropped. A cached user record is trusted as is;
// without one the session is published as restoring and the user record is
// fetched in the background. A failed fetch keeps the token.
func (c *Controller) RestoreSession(ctx context.Context) error {
	c.mu.Lock()

	token, err := loadToken(ctx, c.store)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if token == "" {
		c.mu.Unlock()
		c.logger.Debug("restore: no stored token")
		return nil
	}

	claims, err := c.checkToken(token)
	if err != nil {
		return c.abortRestore(ctx, err)
	}
	id, hasID := ExtractSubjectID(claims)

	cached, err := loadUser(ctx, c.store)
	if err != nil {
		c.logger.Warn("restore: ignoring cached user: %v", err)
		if rerr := c.store.Remove(ctx, UserKey); rerr != nil {
			c.logger.Warn("restore: could not remove cached user: %v", rerr)
		}
		cached = nil
	}
	if uid, ok := cached.NumericID(); ok && hasID && uid != id {
		c.logger.Warn("restore: cached user %d does not match token subject %d", uid, id)
		cached = nil
	}

	if cached != nil {
		c.state.Replace(Session{Token: token, User: cached})
		c.mu.Unlock()
		c.emit(ctx, ActivityEventSessionRestored, userIDOf(cached), map[string]any{"source": "cache"})
		return nil
	}

	if !hasID {
		return c.abortRestore(ctx, ErrMissingSubject)
	}

	c.state.Replace(Session{Token: token})
	epoch := c.state.Epoch()
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		fetchCtx := context.WithoutCancel(ctx)
		if c.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.fetchTimeout)
			defer cancel()
		}

		if _, err := c.fetchUser(fetchCtx, epoch, id); err != nil {
			c.logger.Error("restore: user fetch failed, session stays restoring: %v", err)
			c.emit(fetchCtx, ActivityEventSessionRestoreError, fmt.Sprint(id), map[string]any{"error": ErrorMessage(err)})
			return
		}
		c.emit(fetchCtx, ActivityEventSessionRestored, fmt.Sprint(id), map[string]any{"source": "api"})
	}()

	return nil
}

// FetchUserData loads the user record for id, caches it and publishes it
// with the current token.
func (c *Controller) FetchUserData(ctx context.Context, id int64) (*User, error) {
	if !c.state.Current().HasToken() {
		return nil, ErrNoSession
	}
	user, err := c.fetchUser(ctx, c.state.Epoch(), id)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, ActivityEventUserRefreshed, fmt.Sprint(id), map[string]any{"source": "api"})
	return user, nil
}

// SetUser replaces the cached user record, used after a profile update.
func (c *Controller) SetUser(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("user is required")
	}

	c.mu.Lock()
	cur := c.state.Current()
	if !cur.HasToken() {
		c.mu.Unlock()
		return ErrNoSession
	}
	if err := c.ensureSameIdentity(cur.Token, user); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := saveUser(ctx, c.store, user); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.Replace(Session{Token: cur.Token, User: user})
	c.mu.Unlock()

	c.emit(ctx, ActivityEventUserRefreshed, userIDOf(user), map[string]any{"source": "local"})
	return nil
}

// GetToken returns the in-memory token. When memory is empty but the store
// holds a token, the token is published back into the session first.
func (c *Controller) GetToken(ctx context.Context) (string, bool) {
	if cur := c.state.Current(); cur.HasToken() {
		return cur.Token, true
	}

	c.mu.Lock()
	cur := c.state.Current()
	if cur.HasToken() {
		c.mu.Unlock()
		return cur.Token, true
	}

	token, err := loadToken(ctx, c.store)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("get token: %v", err)
		return "", false
	}
	if token == "" {
		c.mu.Unlock()
		return "", false
	}

	c.logger.Warn("token found in store but not in memory, syncing")
	c.state.Replace(Session{Token: token, User: cur.User})
	c.mu.Unlock()

	c.emit(ctx, ActivityEventSessionHealed, "", nil)
	return token, true
}

// IsAuthenticated reports whether a token is available.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	_, ok := c.GetToken(ctx)
	return ok
}

// IsAdmin reports whether the current user has the admin profile. No user
// record means not admin.
func (c *Controller) IsAdmin() bool {
	return IsAdminUser(c.state.Current().User, c.adminProfileID)
}

// CurrentUser returns the user record of the current session, if any.
func (c *Controller) CurrentUser() *User {
	return c.state.Current().User
}

// AdminProfileID returns the configured admin perfil_id.
func (c *Controller) AdminProfileID() int {
	return c.adminProfileID
}

// IsAdminUser reports whether user carries the admin profile id.
func IsAdminUser(user *User, adminProfileID int) bool {
	return user != nil && user.ProfileID == adminProfileID
}

// abortRestore drops the stored session. It must be called with c.mu held
// and releases it.
func (c *Controller) abortRestore(ctx context.Context, cause error) error {
	_, err := c.logoutLocked(ctx)
	c.mu.Unlock()
	c.logger.Warn("restore: dropping stored token: %v", cause)
	c.emit(ctx, ActivityEventSessionRestoreError, "", map[string]any{"error": ErrorMessage(cause)})
	return err
}

// checkToken decodes the token and rejects it when expired.
func (c *Controller) checkToken(token string) (Claims, error) {
	claims, err := c.decoder.Decode(token)
	if err != nil {
		if IsTokenDecodeError(err) {
			return nil, err
		}
		return nil, tokenDecodeError(err)
	}
	if claims.Expired(c.now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// validateToken runs checkToken and returns the subject id.
func (c *Controller) validateToken(token string) (int64, error) {
	claims, err := c.checkToken(token)
	if err != nil {
		return 0, err
	}
	id, ok := ExtractSubjectID(claims)
	if !ok {
		return 0, ErrMissingSubject
	}
	return id, nil
}

// beginSession persists the token and publishes it without a user. It
// fails when the session moved on since epoch was read.
func (c *Controller) beginSession(ctx context.Context, epoch uint64, token string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Epoch() != epoch {
		return 0, ErrSessionSuperseded
	}
	if err := c.store.Set(ctx, TokenKey, token); err != nil {
		return 0, fmt.Errorf("persist token: %w", err)
	}
	if err := c.store.Remove(ctx, UserKey); err != nil {
		c.logger.Warn("could not clear cached user: %v", err)
	}

	c.state.Replace(Session{Token: token})
	return c.state.Epoch(), nil
}

func (c *Controller) fetchUser(ctx context.Context, epoch uint64, id int64) (*User, error) {
	user, err := c.api.GetUser(ctx, id)
	if err != nil {
		return nil, userFetchError(id, err)
	}
	if uid, ok := user.NumericID(); ok && uid != id {
		return nil, userFetchError(id, fmt.Errorf("api returned user %d for subject %d", uid, id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Current()
	if c.state.Epoch() != epoch || !cur.HasToken() {
		c.logger.Info("discarding user %d, session changed while fetching", id)
		return nil, ErrSessionSuperseded
	}

	if err := saveUser(ctx, c.store, user); err != nil {
		c.logger.Warn("could not cache user %d: %v", id, err)
	}
	c.state.Replace(Session{Token: cur.Token, User: user})

	return user.Clone(), nil
}

func (c *Controller) ensureSameIdentity(token string, user *User) error {
	uid, ok := user.NumericID()
	if !ok {
		return nil
	}
	claims, err := c.decoder.Decode(token)
	if err != nil {
		return nil
	}
	if id, ok := ExtractSubjectID(claims); ok && id != uid {
		return fmt.Errorf("user %d does not belong to the session subject %d", uid, id)
	}
	return nil
}

func (c *Controller) logoutLocked(ctx context.Context) (Session, error) {
	prev := c.state.Current()
	errTok := c.store.Remove(ctx, TokenKey)
	errUsr := c.store.Remove(ctx, UserKey)
	c.state.Reset()
	return prev, errors.Join(errTok, errUsr)
}

func (c *Controller) forceLogout(ctx context.Context, reason string) {
	if err := c.Logout(ctx); err != nil {
		c.logger.Error("logout (%s) failed: %v", reason, err)
	}
}

func (c *Controller) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}
	if err := c.activitySink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink error: %v", err)
	}
}

func userIDOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID.String()
}
