package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/apitest"
)

type cliEnv struct {
	baseURL string
	args    []string
}

func startCLIEnv(t *testing.T) (*cliEnv, *apitest.Server) {
	t.Helper()
	api := apitest.NewServer(apitest.WithBcryptCost(bcrypt.MinCost))
	api.MustAddUser(auth.User{ProfileID: 2, FirstName: "Ana", Nick: "ana", Email: "ana@portal.test", Active: true}, "secreto1")

	ts := api.Start()
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	return &cliEnv{
		baseURL: ts.URL,
		args: []string{
			"--env-file", filepath.Join(dir, "missing.env"),
			"--base-url", ts.URL,
			"--store", "file",
			"--store-path", filepath.Join(dir, "session.json"),
			"--log-level", "error",
		},
	}, api
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(append(append([]string{}, e.args...), args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	env, _ := startCLIEnv(t)

	out, _, err := env.run(t, "login", "--email", "ana@portal.test", "--password", "secreto1")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ana")

	out, _, err = env.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated"`)
	assert.Contains(t, out, "ana@portal.test")

	out, _, err = env.run(t, "get", "/noticias")
	require.NoError(t, err)
	assert.Contains(t, out, "Portada")

	out, _, err = env.run(t, "diagnose")
	require.NoError(t, err)
	assert.Contains(t, out, `"tokens_match": true`)

	out, _, err = env.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, _, err = env.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"anonymous"`)
}

func TestLoginPromptsForPassword(t *testing.T) {
	env, _ := startCLIEnv(t)

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewBufferString("ana@portal.test\nsecreto1\n"))
	root.SetArgs(append(append([]string{}, env.args...), "login"))

	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "Logged in as ana")
}

func TestLoginWrongPassword(t *testing.T) {
	env, _ := startCLIEnv(t)

	_, errOut, err := env.run(t, "login", "--email", "ana@portal.test", "--password", "incorrecta")
	require.Error(t, err)
	assert.Contains(t, errOut, "Credenciales inválidas")
}

func TestGetWithRevokedTokenLogsOut(t *testing.T) {
	env, api := startCLIEnv(t)

	_, _, err := env.run(t, "login", "--email", "ana@portal.test", "--password", "secreto1")
	require.NoError(t, err)
	api.Revoke(api.LastBearer())

	_, _, err = env.run(t, "get", "/noticias")
	require.Error(t, err)

	out, _, err := env.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"anonymous"`)
}

func TestRegister(t *testing.T) {
	env, _ := startCLIEnv(t)

	out, _, err := env.run(t, "register",
		"--nombre", "Luis", "--apellidos", "Paz", "--nick", "luisp",
		"--email", "luis@portal.test", "--password", "secreto2")
	require.NoError(t, err)
	assert.Contains(t, out, "Usuario registrado")

	out, _, err = env.run(t, "login", "--email", "luis@portal.test", "--password", "secreto2")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as luisp")
}

func TestGetChecksRouteAccess(t *testing.T) {
	env, _ := startCLIEnv(t)

	_, errOut, err := env.run(t, "get", "/dashboard/perfil")
	require.Error(t, err)
	assert.Contains(t, errOut, "go to /login")

	_, _, err = env.run(t, "login", "--email", "ana@portal.test", "--password", "secreto1")
	require.NoError(t, err)

	_, errOut, err = env.run(t, "get", "/admin/usuarios")
	require.Error(t, err)
	assert.Contains(t, errOut, "access to /admin/usuarios denied, go to /")
}
