package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenDecoderFunc adapts a function into a TokenDecoder.
type TokenDecoderFunc func(token string) (Claims, error)

// Decode satisfies the TokenDecoder interface.
func (f TokenDecoderFunc) Decode(token string) (Claims, error) {
	if f == nil {
		return nil, ErrTokenDecode
	}
	return f(token)
}

// UnverifiedDecoder reads the claims without checking the signature. The
// API is the one that verifies tokens, the client only needs the payload.
type UnverifiedDecoder struct {
	parser *jwt.Parser
}

// NewUnverifiedDecoder returns the default decoder.
func NewUnverifiedDecoder() *UnverifiedDecoder {
	return &UnverifiedDecoder{parser: jwt.NewParser()}
}

// Decode satisfies the TokenDecoder interface.
func (d *UnverifiedDecoder) Decode(token string) (Claims, error) {
	if token == "" {
		return nil, ErrTokenDecode
	}
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
		return nil, tokenDecodeError(err)
	}
	return Claims(claims), nil
}

// VerifyingDecoder checks the signature with a key func before returning the
// claims. Temporal claims are not validated here, expiry is the controller's
// call so an expired token still decodes.
type VerifyingDecoder struct {
	keyFunc jwt.Keyfunc
	methods []string
	logger  Logger
}

// NewHMACDecoder verifies HS256/384/512 tokens with a shared key.
func NewHMACDecoder(key []byte, logger Logger) *VerifyingDecoder {
	if logger == nil {
		logger = defLogger{}
	}
	return &VerifyingDecoder{
		keyFunc: func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				logger.Error("token decoder encountered unexpected signing method %v", t.Header["alg"])
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
		methods: []string{"HS256", "HS384", "HS512"},
		logger:  logger,
	}
}

// JWKSDecoder verifies tokens against a remote JSON Web Key Set.
type JWKSDecoder struct {
	*VerifyingDecoder
	jwks *keyfunc.JWKS
}

// NewJWKSDecoder fetches the key set at url and keeps it refreshed in the
// background until Close is called.
func NewJWKSDecoder(ctx context.Context, url string, client *http.Client, logger Logger) (*JWKSDecoder, error) {
	if logger == nil {
		logger = defLogger{}
	}
	if client == nil {
		client = http.DefaultClient
	}

	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Ctx:               ctx,
		Client:            client,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks %s: %w", url, err)
	}

	return &JWKSDecoder{
		VerifyingDecoder: &VerifyingDecoder{keyFunc: jwks.Keyfunc, logger: logger},
		jwks:             jwks,
	}, nil
}

// Close stops the background refresh.
func (d *JWKSDecoder) Close() {
	if d.jwks != nil {
		d.jwks.EndBackground()
	}
}

// Decode satisfies the TokenDecoder interface.
func (d *VerifyingDecoder) Decode(token string) (Claims, error) {
	if token == "" {
		return nil, ErrTokenDecode
	}

	opts := []jwt.ParserOption{jwt.WithoutClaimsValidation()}
	if len(d.methods) > 0 {
		opts = append(opts, jwt.WithValidMethods(d.methods))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, d.keyFunc, opts...)
	if err != nil {
		return nil, tokenDecodeError(err)
	}
	if !parsed.Valid {
		d.logger.Error("token decoder could not validate signature")
		return nil, ErrTokenDecode
	}
	return Claims(claims), nil
}

// MultiTokenDecoder tries decoders in order until one succeeds and returns
// the last failure otherwise.
type MultiTokenDecoder struct {
	decoders []TokenDecoder
}

// NewMultiTokenDecoder filters nil decoders and returns a composite decoder.
func NewMultiTokenDecoder(decoders ...TokenDecoder) *MultiTokenDecoder {
	filtered := make([]TokenDecoder, 0, len(decoders))
	for _, d := range decoders {
		if d != nil {
			filtered = append(filtered, d)
		}
	}
	return &MultiTokenDecoder{decoders: filtered}
}

// Decode satisfies the TokenDecoder interface.
func (m *MultiTokenDecoder) Decode(token string) (Claims, error) {
	var lastErr error
	for _, d := range m.decoders {
		claims, err := d.Decode(token)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenDecode
}
