package auth

import (
	"context"
	"time"
)

const diagnosticPreviewLength = 30

// DiagnosticReport compares the in-memory session with the durable store.
// It never contains a full token.
type DiagnosticReport struct {
	Timestamp       time.Time     `json:"timestamp"`
	Status          SessionStatus `json:"status"`
	Epoch           uint64        `json:"epoch"`
	TokenInMemory   bool          `json:"token_in_memory"`
	TokenInStore    bool          `json:"token_in_store"`
	TokensMatch     bool          `json:"tokens_match"`
	MemoryPreview   string        `json:"memory_preview,omitempty"`
	StorePreview    string        `json:"store_preview,omitempty"`
	TokenValid      bool          `json:"token_valid"`
	DecodeError     string        `json:"decode_error,omitempty"`
	SubjectID       int64         `json:"subject_id,omitempty"`
	SubjectClaim    string        `json:"subject_claim,omitempty"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty"`
	Expired         bool          `json:"expired"`
	SecondsLeft     int64         `json:"seconds_left,omitempty"`
	UserInMemory    bool          `json:"user_in_memory"`
	UserInStore     bool          `json:"user_in_store"`
	StoreUserError  string        `json:"store_user_error,omitempty"`
	IsAdmin         bool          `json:"is_admin"`
	StoreReadErrors []string      `json:"store_read_errors,omitempty"`
}

// Healthy reports whether memory and store agree and the token is usable.
func (r DiagnosticReport) Healthy() bool {
	if !r.TokenInMemory && !r.TokenInStore {
		return true
	}
	return r.TokensMatch && r.TokenValid && !r.Expired && len(r.StoreReadErrors) == 0
}

// Diagnose inspects the session without changing it. Unlike GetToken it
// does not heal a token missing from memory.
func (c *Controller) Diagnose(ctx context.Context) DiagnosticReport {
	cur := c.state.Current()
	now := c.now()

	report := DiagnosticReport{
		Timestamp:     now,
		Status:        cur.Status(),
		Epoch:         c.state.Epoch(),
		TokenInMemory: cur.HasToken(),
		UserInMemory:  cur.User != nil,
		IsAdmin:       IsAdminUser(cur.User, c.adminProfileID),
	}
	if cur.HasToken() {
		report.MemoryPreview = TokenPreview(cur.Token, diagnosticPreviewLength)
	}

	stored, err := loadToken(ctx, c.store)
	if err != nil {
		report.StoreReadErrors = append(report.StoreReadErrors, err.Error())
	}
	report.TokenInStore = stored != ""
	if stored != "" {
		report.StorePreview = TokenPreview(stored, diagnosticPreviewLength)
	}
	report.TokensMatch = cur.Token == stored

	if user, err := loadUser(ctx, c.store); err != nil {
		report.StoreUserError = err.Error()
	} else {
		report.UserInStore = user != nil
	}

	token := cur.Token
	if token == "" {
		token = stored
	}
	if token == "" {
		return report
	}

	claims, err := c.decoder.Decode(token)
	if err != nil {
		report.DecodeError = ErrorMessage(err)
		return report
	}
	report.TokenValid = true

	if id, claim, ok := extractSubject(claims); ok {
		report.SubjectID = id
		report.SubjectClaim = claim
	}

	if exp, ok := claims.ExpiresAt(); ok {
		report.ExpiresAt = &exp
		report.Expired = claims.Expired(now)
		if !report.Expired {
			report.SecondsLeft = exp.Unix() - now.Unix()
		}
	}

	return report
}
