package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/apitest"
)

func startAPI(t *testing.T, opts ...apitest.Option) (*apitest.Server, *httptest.Server) {
	t.Helper()
	srv := apitest.NewServer(append([]apitest.Option{apitest.WithBcryptCost(bcrypt.MinCost)}, opts...)...)
	ts := srv.Start()
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHTTPAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("login returns the token", func(t *testing.T) {
		srv, ts := startAPI(t)
		srv.MustAddUser(auth.User{Nick: "ana", Email: "ana@portal.test"}, "secreto1")

		api := auth.NewHTTPAPI(ts.URL, auth.WithAPILogger(auth.NoopLogger()))
		res, err := api.Login(ctx, auth.LoginRequest{Email: "ana@portal.test", Password: "secreto1"})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "Login exitoso", res.Message)
	})

	t.Run("server message is surfaced", func(t *testing.T) {
		_, ts := startAPI(t)
		api := auth.NewHTTPAPI(ts.URL, auth.WithAPILogger(auth.NoopLogger()))

		_, err := api.Login(ctx, auth.LoginRequest{Email: "nadie@portal.test", Password: "x"})
		var apiErr *auth.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, "Credenciales inválidas", apiErr.Message)
	})

	t.Run("error field and fallback", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/auth/register":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"Nick en uso"}`))
			default:
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`<html>oops</html>`))
			}
		}))
		defer ts.Close()

		api := auth.NewHTTPAPI(ts.URL, auth.WithAPILogger(auth.NoopLogger()))

		_, err := api.Register(ctx, auth.RegisterRequest{})
		assert.Equal(t, "Nick en uso", auth.ErrorMessage(err))

		_, err = api.Login(ctx, auth.LoginRequest{})
		assert.Equal(t, "Login failed", auth.ErrorMessage(err))

		_, err = api.GetUser(ctx, 1)
		assert.Equal(t, "Error al cargar usuario", auth.ErrorMessage(err))
	})

	t.Run("unreachable host uses the fallback", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		api := auth.NewHTTPAPI(url, auth.WithAPILogger(auth.NoopLogger()))
		_, err := api.Login(ctx, auth.LoginRequest{})
		var apiErr *auth.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Zero(t, apiErr.Status)
		assert.Equal(t, "Login failed", apiErr.Message)
	})

	t.Run("users come wrapped or bare", func(t *testing.T) {
		for _, bare := range []bool{false, true} {
			var opts []apitest.Option
			if bare {
				opts = append(opts, apitest.WithBareUsers())
			}
			srv, ts := startAPI(t, opts...)
			id := srv.MustAddUser(auth.User{Nick: "ana", Email: "ana@portal.test", ProfileID: 2}, "secreto1")
			token, err := srv.MintFor(id)
			require.NoError(t, err)

			state := auth.NewSessionState(auth.Session{Token: token})
			ctrl := auth.NewController(nil, auth.NewMemoryStore(),
				auth.WithSessionState(state),
				auth.WithLogger(auth.NoopLogger()),
			)
			gate := auth.NewGate(ctrl, auth.WithGateLogger(auth.NoopLogger()))
			api := auth.NewHTTPAPI(ts.URL,
				auth.WithDoer(&http.Client{Transport: gate}),
				auth.WithAPILogger(auth.NoopLogger()),
			)

			user, err := api.GetUser(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "ana", user.Nick)
			assert.Equal(t, 2, user.ProfileID)
			assert.Equal(t, token, srv.LastBearer())
		}
	})

	t.Run("register receipt", func(t *testing.T) {
		_, ts := startAPI(t)
		api := auth.NewHTTPAPI(ts.URL, auth.WithAPILogger(auth.NoopLogger()))

		payload := auth.RegisterRequest{FirstName: "Luis", LastName: "Paz", Nick: "luisp", Email: "luis@portal.test", Password: "secreto2"}
		res, err := api.Register(ctx, payload)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "Usuario registrado", res.Message)

		_, err = api.Register(ctx, payload)
		assert.Equal(t, "El correo ya está registrado", auth.ErrorMessage(err))
	})

	t.Run("url joins prefix once", func(t *testing.T) {
		api := auth.NewHTTPAPI("http://portal.test/", auth.WithAPIPrefix("api/"))
		assert.Equal(t, "http://portal.test/api/users/1", api.URL("/users/1"))
		assert.Equal(t, "http://portal.test/api/users/1", api.URL("api/users/1"))
		assert.Equal(t, "portal.test", api.BaseHost())
	})
}

func TestUnwrap(t *testing.T) {
	var user auth.User
	require.NoError(t, auth.Unwrap([]byte(`{"success":true,"data":{"id":3,"nick":"x"}}`), &user))
	assert.Equal(t, "x", user.Nick)

	user = auth.User{}
	require.NoError(t, auth.Unwrap([]byte(`{"id":4,"nick":"y"}`), &user))
	assert.Equal(t, "y", user.Nick)

	var list []map[string]any
	require.NoError(t, auth.Unwrap([]byte(`[{"id":1}]`), &list))
	assert.Len(t, list, 1)
}
