// Package apitest is an in-process fake of the portal REST API. It serves
// /api/auth/login, /api/auth/register, /api/users/:id and a protected
// /api/noticias listing, signing HS256 tokens the way the real API does.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-portal-auth"
)

// Account is a registered user with its password hash.
type Account struct {
	User         auth.User
	PasswordHash string
}

// Server holds the fake API state. The zero value is not usable, call
// NewServer.
type Server struct {
	App *fiber.App

	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
	cost       int
	claimKey   string
	bareUsers  bool

	mu         sync.Mutex
	accounts   map[int64]*Account
	byEmail    map[string]int64
	nextID     int64
	revoked    map[string]bool
	userFail   map[int64]int
	userGate   chan struct{}
	userHits   int
	lastBearer string
	requestIDs []string
}

// Option customizes the server.
type Option func(*Server)

// WithSigningKey sets the HS256 key, "portal-secret" by default.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		if len(key) > 0 {
			s.signingKey = key
		}
	}
}

// WithTokenTTL sets how long issued tokens live. A negative ttl issues
// tokens that are already expired.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.ttl = ttl
	}
}

// WithClock injects a custom clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.cost = cost
	}
}

// WithSubjectClaim sets the claim carrying the user id, "id" by default.
// An empty key issues tokens without any id.
func WithSubjectClaim(key string) Option {
	return func(s *Server) {
		s.claimKey = key
	}
}

// WithBareUsers answers GET /users/:id without the data envelope.
func WithBareUsers() Option {
	return func(s *Server) {
		s.bareUsers = true
	}
}

// NewServer returns a fake API with no accounts.
func NewServer(opts ...Option) *Server {
	s := &Server{
		signingKey: []byte("portal-secret"),
		ttl:        time.Hour,
		now:        time.Now,
		cost:       bcrypt.DefaultCost,
		claimKey:   "id",
		accounts:   map[int64]*Account{},
		byEmail:    map[string]int64{},
		revoked:    map[string]bool{},
		userFail:   map[int64]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.App = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.routes()
	return s
}

// Start serves the app on a local httptest server. Callers close it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(adaptor.FiberApp(s.App))
}

// Listen serves the app on addr until the app is shut down.
func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) routes() {
	api := s.App.Group("/api")
	api.Use(s.trackRequest)
	api.Post("/auth/login", s.login)
	api.Post("/auth/register", s.register)
	api.Get("/users/:id", s.requireToken, s.getUser)
	api.Get("/noticias", s.requireToken, s.listNews)
}

// AddUser registers an account directly and returns its id.
func (s *Server) AddUser(user auth.User, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return 0, fmt.Errorf("email %s already registered", user.Email)
	}

	s.nextID++
	id := s.nextID
	user.ID = json.Number(strconv.FormatInt(id, 10))
	if user.CreatedAt == "" {
		user.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	s.accounts[id] = &Account{User: user, PasswordHash: string(hash)}
	s.byEmail[email] = id
	return id, nil
}

// MustAddUser is AddUser that panics, for test setup.
func (s *Server) MustAddUser(user auth.User, password string) int64 {
	id, err := s.AddUser(user, password)
	if err != nil {
		panic(err)
	}
	return id
}

// Mint signs a token for claims with the server key.
func (s *Server) Mint(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// MintFor signs a token for id using the configured subject claim and ttl.
func (s *Server) MintFor(id int64) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	if s.claimKey != "" {
		claims[s.claimKey] = id
	}
	s.mu.Lock()
	if acc, ok := s.accounts[id]; ok {
		claims["correo"] = acc.User.Email
		claims["perfil_id"] = acc.User.ProfileID
	}
	s.mu.Unlock()
	return s.Mint(claims)
}

// Revoke makes every later request carrying token answer 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// FailUser makes GET /users/:id answer status for id.
func (s *Server) FailUser(id int64, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.userFail, id)
		return
	}
	s.userFail[id] = status
}

// HoldUsers blocks GET /users/:id until the returned func is called.
func (s *Server) HoldUsers() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.userGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.userGate == gate {
				s.userGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// UserHits returns how many times GET /users/:id was called.
func (s *Server) UserHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userHits
}

// LastBearer returns the last bearer token the API received.
func (s *Server) LastBearer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBearer
}

// RequestIDs returns the X-Request-ID values seen so far.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

func (s *Server) trackRequest(c *fiber.Ctx) error {
	s.mu.Lock()
	s.lastBearer = bearer(c.Get(fiber.HeaderAuthorization))
	if id := c.Get(auth.HeaderRequestID); id != "" {
		s.requestIDs = append(s.requestIDs, id)
	}
	s.mu.Unlock()
	return c.Next()
}

func (s *Server) login(c *fiber.Ctx) error {
	var payload auth.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, fiber.StatusBadRequest, "Solicitud inválida")
	}

	s.mu.Lock()
	id, ok := s.byEmail[strings.ToLower(payload.Email)]
	var hash string
	if ok {
		hash = s.accounts[id].PasswordHash
	}
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(payload.Password)) != nil {
		return fail(c, fiber.StatusUnauthorized, "Credenciales inválidas")
	}

	token, err := s.MintFor(id)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "No se pudo generar el token")
	}

	return c.JSON(auth.LoginResponse{Message: "Login exitoso", Token: token})
}

func (s *Server) register(c *fiber.Ctx) error {
	var payload auth.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, fiber.StatusBadRequest, "Solicitud inválida")
	}
	if err := payload.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	id, err := s.AddUser(auth.User{
		ProfileID: 2,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Nick:      payload.Nick,
		Email:     payload.Email,
		Active:    true,
	}, payload.Password)
	if err != nil {
		return fail(c, fiber.StatusConflict, "El correo ya está registrado")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Usuario registrado",
		"data":    fiber.Map{"id": id},
	})
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	token := bearer(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return fail(c, fiber.StatusUnauthorized, "Token requerido")
	}

	s.mu.Lock()
	revoked := s.revoked[token]
	s.mu.Unlock()
	if revoked {
		return fail(c, fiber.StatusUnauthorized, "Token revocado")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return fail(c, fiber.StatusUnauthorized, "Token inválido")
	}

	c.Locals("claims", parsed.Claims)
	return c.Next()
}

func (s *Server) getUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Id inválido")
	}

	s.mu.Lock()
	s.userHits++
	gate := s.userGate
	status := s.userFail[id]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if status != 0 {
		return fail(c, status, "Error al cargar usuario")
	}

	s.mu.Lock()
	acc, ok := s.accounts[id]
	var user auth.User
	if ok {
		user = acc.User
	}
	s.mu.Unlock()

	if !ok {
		return fail(c, fiber.StatusNotFound, "Usuario no encontrado")
	}

	if s.bareUsers {
		return c.JSON(user)
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

func (s *Server) listNews(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": []fiber.Map{
			{"id": 1, "titulo": "Portada", "categoria": "general"},
			{"id": 2, "titulo": "Deportes", "categoria": "deportes"},
		},
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
