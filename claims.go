package auth

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a portal token.
type Claims jwt.MapClaims

// ExpiresAt returns the exp claim, ok is false when the token carries none.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IssuedAt returns the iat claim, ok is false when the token carries none.
func (c Claims) IssuedAt() (time.Time, bool) {
	iat, err := jwt.MapClaims(c).GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}, false
	}
	return iat.Time, true
}

// Expired reports whether exp is strictly before now. Tokens without exp
// never expire on the client side.
func (c Claims) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return exp.Unix() < now.Unix()
}

// Email returns the correo claim if present.
func (c Claims) Email() string {
	if v, ok := c["correo"].(string); ok {
		return v
	}
	return ""
}

// ProfileID returns the perfil_id claim if present.
func (c Claims) ProfileID() (int64, bool) {
	return coerceID(c["perfil_id"])
}

// subjectAccessor reads one candidate location of the user id.
type subjectAccessor struct {
	name string
	get  func(Claims) (any, bool)
}

func field(name string) subjectAccessor {
	return subjectAccessor{
		name: name,
		get: func(c Claims) (any, bool) {
			v, ok := c[name]
			return v, ok
		},
	}
}

func nested(parent, name string) subjectAccessor {
	return subjectAccessor{
		name: parent + "." + name,
		get: func(c Claims) (any, bool) {
			obj, ok := c[parent].(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := obj[name]
			return v, ok
		},
	}
}

// subjectAccessors lists the historical claim names in priority order, flat
// fields first.
var subjectAccessors = []subjectAccessor{
	field("id"),
	field("usuario_id"),
	field("userId"),
	nested("usuario", "id"),
}

// ExtractSubjectID returns the numeric user id carried by the claims. The
// first candidate holding a usable positive integer wins.
func ExtractSubjectID(c Claims) (int64, bool) {
	id, _, ok := extractSubject(c)
	return id, ok
}

func extractSubject(c Claims) (int64, string, bool) {
	for _, acc := range subjectAccessors {
		raw, present := acc.get(c)
		if !present {
			continue
		}
		if id, ok := coerceID(raw); ok {
			return id, acc.name, true
		}
	}
	return 0, "", false
}

func coerceID(raw any) (int64, bool) {
	var id int64
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}
