package api

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/idear/internal/auth"
	"github.com/erazemk/idear/internal/store"
)

// AuthHandler handles login and session checks.
type AuthHandler struct {
	authenticator
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Level   int    `json:"level"`
	Message string `json:"message"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Login handles POST /trylogin.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.IssueToken(h.JWTSecret, user.Username, user.Level)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	if err := store.RecordIssuedToken(r.Context(), h.DB, user.Username, token); err != nil {
		slog.Error("failed to record token", "user", user.Username, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("user logged in", "user", user.Username, "level", user.Level)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, Level: user.Level, Message: "login successful"})
}

// IsLoggedIn handles POST /isLoggedIn. A token counts only while it is the
// last one issued to its user.
func (h *AuthHandler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	decodeJSON(r, &req)

	output := "false"
	if claims, err := h.claims(tokenFrom(r, req.Token)); err == nil {
		current, err := store.IsCurrentToken(r.Context(), h.DB, claims.Username, tokenFrom(r, req.Token))
		if err != nil {
			slog.Error("failed to check token", "user", claims.Username, "error", err)
		}
		if current {
			output = "true"
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"output": output})
}

// CheckToken handles POST /checkToken.
func (h *AuthHandler) CheckToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	decodeJSON(r, &req)

	claims, err := h.claims(tokenFrom(r, req.Token))
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	// The level may have changed since the token was issued.
	user, err := store.GetUserByUsername(r.Context(), h.DB, claims.Username)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"level": user.Level})
}
