package auth

import (
	"encoding/json"
	"strconv"
)

// DefaultAdminProfileID is the perfil_id the portal assigns to administrators.
const DefaultAdminProfileID = 1

// User is the portal user record as returned by GET /users/:id
type User struct {
	ID           json.Number `json:"id"`
	ProfileID    int         `json:"perfil_id"`
	FirstName    string      `json:"nombre"`
	LastName     string      `json:"apellidos"`
	Nick         string      `json:"nick"`
	Email        string      `json:"correo"`
	Active       bool        `json:"activo"`
	Bio          *string     `json:"bio,omitempty"`
	Avatar       *string     `json:"avatar,omitempty"`
	Verified     *bool       `json:"verificado,omitempty"`
	LastActivity *string     `json:"ultima_actividad,omitempty"`
	CreatedAt    string      `json:"createdAt,omitempty"`
	UpdatedAt    string      `json:"updatedAt,omitempty"`
}

// NumericID returns the user id as an integer, ok is false when the id is
// missing or not numeric.
func (u *User) NumericID() (int64, bool) {
	if u == nil || u.ID == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(u.ID.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// DisplayName prefers the nick and falls back to the full name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Nick != "" {
		return u.Nick
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Clone returns a shallow copy so callers can't mutate published state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"correo"`
	Password string `json:"contraseña"`
}

// LoginResponse is the body returned by POST /auth/login
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	FirstName string `json:"nombre"`
	LastName  string `json:"apellidos"`
	Nick      string `json:"nick"`
	Email     string `json:"correo"`
	Password  string `json:"contraseña"`
}

// RegisterResponse is the registration receipt.
type RegisterResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope is the standard API response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Unwrap decodes the envelope data into out. Responses that are not wrapped
// (bare objects or arrays) are decoded as a whole.
func Unwrap(body []byte, out any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err == nil {
		if data, ok := probe["data"]; ok && len(data) > 0 && string(data) != "null" {
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(body, out)
}
