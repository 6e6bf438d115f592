package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Client bundles a wired session core: the controller, the gate installed on
// the HTTP client and the API client using it.
type Client struct {
	Controller *Controller
	Gate       *Gate
	API        *HTTPAPI
	HTTP       *http.Client
	Guard      *Guard
	Store      TokenStore
	Status     *StatusTracker

	closers []func()
}

// Option customizes New.
type Option func(*clientOptions)

type clientOptions struct {
	store        TokenStore
	decoder      TokenDecoder
	logger       Logger
	activitySink ActivitySink
	transport    http.RoundTripper
	controller   []ControllerOption
	closers      []func()
}

// WithStore sets the durable token store, a MemoryStore by default.
func WithStore(store TokenStore) Option {
	return func(o *clientOptions) {
		if store != nil {
			o.store = store
		}
	}
}

// WithDecoder sets the token decoder used by the controller.
func WithDecoder(d TokenDecoder) Option {
	return func(o *clientOptions) {
		if d != nil {
			o.decoder = d
		}
	}
}

// WithClientLogger sets the logger shared by every component.
func WithClientLogger(l Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClientActivitySink sets the activity sink.
func WithClientActivitySink(sink ActivitySink) Option {
	return func(o *clientOptions) {
		o.activitySink = sink
	}
}

// WithTransport sets the transport the gate forwards to.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithControllerOptions passes extra options to the controller.
func WithControllerOptions(opts ...ControllerOption) Option {
	return func(o *clientOptions) {
		o.controller = append(o.controller, opts...)
	}
}

// WithCloser registers a func run by Client.Close, used for decoders and
// stores that hold background resources.
func WithCloser(fn func()) Option {
	return func(o *clientOptions) {
		if fn != nil {
			o.closers = append(o.closers, fn)
		}
	}
}

// New wires a client for cfg. It does not restore the session, call
// Restore once the client is built.
func New(cfg Config, opts ...Option) *Client {
	o := &clientOptions{
		logger:    defLogger{},
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}

	baseURL := cfg.GetBaseURL()
	prefix := cfg.GetAPIPrefix()

	gate := NewGate(nil,
		WithGatePrefix(prefix),
		WithGateHost(hostOf(baseURL)),
		WithGateTransport(o.transport),
		WithGateLogger(o.logger),
	)

	httpClient := &http.Client{Transport: gate, Timeout: cfg.GetRequestTimeout()}

	api := NewHTTPAPI(baseURL,
		WithDoer(httpClient),
		WithAPIPrefix(prefix),
		WithAPILogger(o.logger),
	)

	ctrlOpts := []ControllerOption{
		WithLogger(o.logger),
		WithActivitySink(o.activitySink),
		WithAdminProfileID(cfg.GetAdminProfileID()),
		WithFetchTimeout(fetchTimeout(cfg.GetRequestTimeout())),
	}
	if o.decoder != nil {
		ctrlOpts = append(ctrlOpts, WithTokenDecoder(o.decoder))
	}
	ctrlOpts = append(ctrlOpts, o.controller...)

	ctrl := NewController(api, o.store, ctrlOpts...)
	gate.Bind(ctrl)

	tracker := NewStatusTracker(ctrl.State(),
		WithTrackerActivitySink(o.activitySink),
		WithTrackerLogger(o.logger),
	)

	return &Client{
		Controller: ctrl,
		Gate:       gate,
		API:        api,
		HTTP:       httpClient,
		Guard:      NewGuard(WithGuardAdminProfileID(cfg.GetAdminProfileID())),
		Store:      o.store,
		Status:     tracker,
		closers:    o.closers,
	}
}

// Restore loads the persisted session, see Controller.RestoreSession.
func (c *Client) Restore(ctx context.Context) error {
	return c.Controller.RestoreSession(ctx)
}

// Close waits for background restoration and releases resources.
func (c *Client) Close() {
	c.Controller.Wait()
	c.Status.Close()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func fetchTimeout(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 30 * time.Second
	}
	return requestTimeout
}
