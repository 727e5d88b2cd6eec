package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth admits connections presenting a shared token, either as the
// token query parameter or as a bearer Authorization header. An empty
// token admits everyone.
type TokenAuth struct {
	token string
}

// NewTokenAuth accepts requests carrying token. An empty token admits everyone.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// Authenticate checks the token query parameter or the bearer header.
func (a *TokenAuth) Authenticate(r *http.Request) error {
	if a == nil || a.token == "" {
		return nil
	}
	got := r.URL.Query().Get("token")
	if got == "" {
		got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
