package api

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/model"
	"github.com/erazemk/idear/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	authenticator
}

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Level    *int   `json:"level"`
	Token    string `json:"token"`
}

// List handles GET /getUsers.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelAdmin); !ok {
		return
	}

	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	accounts := make([]model.UserAccount, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, u.Account())
	}
	jsonResponse(w, http.StatusOK, map[string]any{"users": accounts})
}

// Create handles POST /register.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, req.Token), access.LevelAdmin)
	if !ok {
		return
	}

	if req.Username == "" || req.Password == "" || req.Level == nil {
		jsonError(w, http.StatusBadRequest, "username, password, and level required")
		return
	}
	if *req.Level < access.LevelAdmin || *req.Level > access.LevelNone {
		jsonError(w, http.StatusBadRequest, "invalid level")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if _, err := store.CreateUser(r.Context(), h.DB, req.Username, string(hash), *req.Level); err != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	slog.Info("user created", "user", req.Username, "level", *req.Level, "by", claims.Username)
	jsonResponse(w, http.StatusCreated, map[string]string{"message": "user created"})
}

// Update handles POST /updateUser. The password is changed only when one
// is given.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, req.Token), access.LevelAdmin)
	if !ok {
		return
	}

	if req.Username == model.ProtectedUsername {
		jsonError(w, http.StatusForbidden, "the admin account cannot be modified")
		return
	}
	if req.Level == nil || *req.Level < access.LevelAdmin || *req.Level > access.LevelNone {
		jsonError(w, http.StatusBadRequest, "invalid level")
		return
	}

	var hash []byte
	if req.Password != "" {
		if err := model.ValidatePassword(req.Password); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
	}

	found, err := store.UpdateUser(r.Context(), h.DB, req.Username, string(hash), *req.Level)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("user updated", "user", req.Username, "level", *req.Level, "by", claims.Username)
	jsonMessage(w, "user updated")
}

// Delete handles POST /deleteUser.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims, ok := h.requireLevel(w, tokenFrom(r, req.Token), access.LevelAdmin)
	if !ok {
		return
	}

	if req.Username == model.ProtectedUsername {
		jsonError(w, http.StatusForbidden, "the admin account cannot be deleted")
		return
	}

	found, err := store.DeleteUser(r.Context(), h.DB, req.Username)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("user deleted", "user", req.Username, "by", claims.Username)
	jsonMessage(w, "user deleted")
}
