package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/erazemk/idear/internal/auth"
)

// Token checks shared by the handlers. Clients send the token in the JSON
// body, in the query string or as a bearer header, depending on the
// endpoint; all three are accepted.
type authenticator struct {
	DB        *sql.DB
	JWTSecret string
}

var errNoToken = errors.New("missing token")

// tokenFrom picks the first non-empty token source.
func tokenFrom(r *http.Request, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if t := r.FormValue("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (a *authenticator) claims(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, errNoToken
	}
	return auth.ValidateToken(a.JWTSecret, token)
}

// requireLevel writes an error response and returns false unless token is
// valid with a level of at most maxLevel.
func (a *authenticator) requireLevel(w http.ResponseWriter, token string, maxLevel int) (*auth.Claims, bool) {
	claims, err := a.claims(token)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	if claims.Level > maxLevel {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return nil, false
	}
	return claims, true
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if rec.status >= 500 {
			slog.Error("request", attrs...)
		} else {
			slog.Info("request", attrs...)
		}
	})
}
