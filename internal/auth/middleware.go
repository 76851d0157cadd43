// Package auth guards the HTTP surface with basic or API-key authentication.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/config"
)

// APIKeyHeader carries the API key; a bearer token in Authorization is accepted too.
const APIKeyHeader = "X-API-Key"

// excludedPaths bypass authentication.
var excludedPaths = map[string]bool{
	"/health": true,
}

// Middleware wraps a handler with an authentication check.
type Middleware func(http.Handler) http.Handler

// NewMiddleware creates the authentication middleware selected by settings.
func NewMiddleware(settings config.AuthSettings) (Middleware, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler { return next }, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return withExclusions(checkBasic(settings.Basic)), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return withExclusions(checkAPIKey(settings.APIKeys)), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// withExclusions turns a request check into a middleware that skips excluded paths.
func withExclusions(check func(w http.ResponseWriter, r *http.Request) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPaths[r.URL.Path] || check(w, r) {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
		})
	}
}

func checkBasic(settings config.BasicAuthSettings) func(w http.ResponseWriter, r *http.Request) bool {
	return func(w http.ResponseWriter, r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		if ok && userMatch && passMatch {
			return true
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="docchat"`)
		return false
	}
}

func checkAPIKey(apiKeys []string) func(w http.ResponseWriter, r *http.Request) bool {
	return func(_ http.ResponseWriter, r *http.Request) bool {
		key := requestKey(r)
		if key == "" {
			return false
		}
		valid := false
		for _, validKey := range apiKeys {
			// no early exit: every key is compared
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				valid = true
			}
		}
		return valid
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
