package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// Form field, session key and header that carry the synchroniser token.
const (
	CSRFSessionKey = "csrf_token"
	CSRFFormField  = "csrf_token"
	CSRFHeader     = "X-CSRF-Token"
)

var errNoSession = errors.New("csrf: session missing")

// CSRFManager issues per-session tokens and checks them on unsafe requests.
// A token is a random nonce MACed with the session id, so a token lifted from
// one session is useless in another even before the stored copy is compared.
type CSRFManager struct {
	secret []byte
}

func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the session token, minting one on first use.
func (m *CSRFManager) EnsureToken(_ context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", errNoSession
	}
	if token := sess.Get(CSRFSessionKey); token != "" {
		return token, nil
	}
	return m.issue(sess), nil
}

// Rotate replaces the token. Login calls it right after the session id changes.
func (m *CSRFManager) Rotate(_ context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", errNoSession
	}
	return m.issue(sess), nil
}

// VerifyToken checks a submitted token against the session.
func (m *CSRFManager) VerifyToken(_ context.Context, sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) issue(sess *Session) string {
	nonce := uuid.New()
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sess.ID))
	mac.Write(nonce[:])
	raw := append(nonce[:], mac.Sum(nil)[:16]...)
	token := base64.RawURLEncoding.EncodeToString(raw)
	sess.Set(CSRFSessionKey, token)
	return token
}

// TokenFromRequest reads the token from the form body, multipart included, or the header.
func TokenFromRequest(r *http.Request) string {
	if token := r.PostFormValue(CSRFFormField); token != "" {
		return token
	}
	return r.Header.Get(CSRFHeader)
}
