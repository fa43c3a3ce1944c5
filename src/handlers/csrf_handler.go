package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/username/finwatch/src/logger"
)

const (
	csrfCookieName = "_gorilla_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// newCSRFToken returns "nonce.signature", signed with key.
func newCSRFToken(key []byte) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)
	return nonce + "." + signCSRF(key, nonce), nil
}

func signCSRF(key []byte, nonce string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func validCSRFToken(key []byte, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(signCSRF(key, nonce)))
}

// GetCSRFToken issues a double-submit token as a cookie and in the body.
func GetCSRFToken(key []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := newCSRFToken(key)
		if err != nil {
			logger.FromContext(r.Context()).Error("Error generating CSRF token", "error", err)
			sendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			MaxAge:   3600,
		})
		w.Header().Set(csrfHeaderName, token)
		sendJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	}
}

// CSRFMiddleware checks that state-changing requests echo the CSRF cookie
// in the X-CSRF-Token header and that the token was signed with key.
// Safe methods pass through.
func CSRFMiddleware(key []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(csrfHeaderName)
			cookie, errCookie := r.Cookie(csrfCookieName)
			if headerToken != "" && errCookie == nil &&
				subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) == 1 &&
				validCSRFToken(key, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.FromContext(r.Context()).Warn("CSRF validation failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Bool("headerTokenPresent", headerToken != ""),
				slog.Bool("cookiePresent", errCookie == nil),
				slog.String("origin", r.Header.Get("Origin")),
			)
			sendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
