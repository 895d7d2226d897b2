// Package approval implements the mesh's approval-token scheme for gating
// mutating tool calls: a compact, HMAC-signed token binding a tool name, its
// canonicalized arguments, a session id, and an expiry. It is deliberately
// not a JWT — the wire format is the bespoke
// base64url(payload) "." base64url(signature) shape used throughout the
// supervisor's Python originals, and a general JWT library would produce a
// different, incompatible token.
package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformed        = errors.New("invalid token format")
	ErrBadSignature     = errors.New("invalid token signature")
	ErrExpired          = errors.New("approval token expired")
	ErrToolMismatch     = errors.New("tool mismatch")
	ErrSessionMismatch  = errors.New("session mismatch")
	ErrArgsMismatch     = errors.New("args mismatch")
)

// payload is the canonicalized, signed body of a token. Field order here
// doesn't matter for signing since json.Marshal sorts map keys and struct
// fields are fixed at compile time either way — what matters is that the
// same struct shape is used for both generate and validate.
type payload struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	SessionID string         `json:"session_id"`
	IssuedAt  int64          `json:"iat"`
	ExpiresAt int64          `json:"exp"`
}

// Issuer generates and validates approval tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer constructs an Issuer. ttl is the default validity window used by
// Generate; a zero ttl selects 5 minutes, and a negative ttl issues tokens
// that are already expired.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Generate produces a signed token for the given tool call.
func (s *Issuer) Generate(tool string, args map[string]any, sessionID string) (string, error) {
	now := time.Now()
	p := payload{
		Tool:      tool,
		Args:      args,
		SessionID: sessionID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	return s.sign(p)
}

func (s *Issuer) sign(p payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode approval payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encoded + "." + sig, nil
}

// Validate checks a token against the expected tool, args, and session id.
// It returns the specific failure reason rather than a generic boolean so
// callers can log or surface why an approval was rejected.
func (s *Issuer) Validate(token, expectedTool string, expectedArgs map[string]any, expectedSession string) error {
	encoded, sig, ok := splitToken(token)
	if !ok {
		return ErrMalformed
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	wantSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(wantSig)) {
		return ErrBadSignature
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrMalformed
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return ErrMalformed
	}

	if time.Now().Unix() > p.ExpiresAt {
		return ErrExpired
	}
	if p.Tool != expectedTool {
		return ErrToolMismatch
	}
	if p.SessionID != expectedSession {
		return ErrSessionMismatch
	}
	if !argsEqual(p.Args, expectedArgs) {
		return ErrArgsMismatch
	}
	return nil
}

func splitToken(token string) (encoded, sig string, ok bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], token[:i] != "" && token[i+1:] != ""
		}
	}
	return "", "", false
}

// argsEqual compares two argument maps via their canonical JSON encoding so
// that key order and type shape (e.g. json.Number vs float64 from a decoded
// token) never cause a spurious mismatch.
func argsEqual(a, b map[string]any) bool {
	aj, err1 := json.Marshal(a)
	bj, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	var av, bv any
	if json.Unmarshal(aj, &av) != nil || json.Unmarshal(bj, &bv) != nil {
		return false
	}
	aj2, _ := json.Marshal(av)
	bj2, _ := json.Marshal(bv)
	return string(aj2) == string(bj2)
}
