// Package auth talks to the authentication and user management endpoints
// and keeps the session store consistent with the answers.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/client"
	"github.com/erazemk/idear/internal/model"
	"github.com/erazemk/idear/internal/session"
)

// Gateway wraps the remote auth calls.
type Gateway struct {
	session *session.Store
	client  *client.Client
	logger  *slog.Logger
}

// NewGateway creates a gateway. The client should use s as its token source.
func NewGateway(s *session.Store, c *client.Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{session: s, client: c, logger: logger}
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Token string
	Level int
}

// level decodes a number, a numeric string, or nothing.
type level struct {
	value int
	set   bool
}

func (l *level) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid level %s", data)
	}
	l.value, l.set = n, true
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Level   level  `json:"level"`
	Message string `json:"message"`
}

// Login exchanges credentials for a token. On failure the session is left
// as it was and the server's message is part of the returned error.
func (g *Gateway) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var resp loginResponse
	err := g.client.PostJSON(ctx, "/trylogin", loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		g.logger.Error("login failed", "user", username, "error", err)
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "no token in response"
		}
		g.logger.Error("login failed", "user", username, "error", msg)
		return LoginResult{}, fmt.Errorf("login: %w", &client.APIError{Status: 200, Message: msg})
	}

	if err := g.session.SetToken(ctx, resp.Token); err != nil {
		g.logger.Warn("token not persisted", "error", err)
	}
	g.session.AuthState.Publish(true)

	lvl := resp.Level.value
	if resp.Level.set {
		g.session.AuthLevel.Publish(lvl)
	} else {
		lvl = g.GetAuthLevel(ctx)
	}

	g.logger.Info("logged in", "user", username, "level", lvl)
	return LoginResult{Token: resp.Token, Level: lvl}, nil
}

// Logout forgets the token locally. The server is not told.
func (g *Gateway) Logout(ctx context.Context) error {
	err := g.session.ClearToken(ctx)
	g.session.AuthState.Publish(false)
	g.session.AuthLevel.Publish(access.LevelNone)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Token returns the current credential.
func (g *Gateway) Token() (string, bool) {
	return g.session.Token()
}

type tokenRequest struct {
	Token string `json:"token"`
}

// IsAuthenticated asks the server whether the token is still valid. Any
// failure counts as not authenticated.
func (g *Gateway) IsAuthenticated(ctx context.Context) bool {
	ok := g.isAuthenticated(ctx)
	g.session.AuthState.Publish(ok)
	return ok
}

func (g *Gateway) isAuthenticated(ctx context.Context) bool {
	token, ok := g.session.Token()
	if !ok {
		return false
	}
	var resp struct {
		Output any `json:"output"`
	}
	if err := g.client.PostJSON(ctx, "/isLoggedIn", tokenRequest{Token: token}, &resp); err != nil {
		g.logger.Error("session check failed", "error", err)
		return false
	}
	return fmt.Sprint(resp.Output) == "true"
}

// GetAuthLevel asks the server for the token's level. Any failure or a
// missing level yields access.LevelNone.
func (g *Gateway) GetAuthLevel(ctx context.Context) int {
	lvl := g.authLevel(ctx)
	g.session.AuthLevel.Publish(lvl)
	return lvl
}

func (g *Gateway) authLevel(ctx context.Context) int {
	token, ok := g.session.Token()
	if !ok {
		return access.LevelNone
	}
	var resp struct {
		Level level `json:"level"`
	}
	if err := g.client.PostJSON(ctx, "/checkToken", tokenRequest{Token: token}, &resp); err != nil {
		g.logger.Error("level check failed", "error", err)
		return access.LevelNone
	}
	if !resp.Level.set {
		return access.LevelNone
	}
	return resp.Level.value
}

// CheckLevel re-validates the level remotely and reports whether it
// satisfies required.
func (g *Gateway) CheckLevel(ctx context.Context, required int) bool {
	return access.CanAccess(g.GetAuthLevel(ctx), required)
}

// ErrNotLoggedIn is returned by calls that need a token when there is none.
var ErrNotLoggedIn = errors.New("not logged in")

func (g *Gateway) requireToken() (string, error) {
	token, ok := g.session.Token()
	if !ok {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// userEntry is one account in the /getUsers response.
type userEntry struct {
	Username string `json:"username"`
	Level    level  `json:"level"`
}

// ListUsers returns all accounts.
func (g *Gateway) ListUsers(ctx context.Context) ([]model.UserAccount, error) {
	var resp struct {
		Users json.RawMessage `json:"users"`
	}
	if err := g.client.Get(ctx, "/getUsers", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var entries []userEntry
	if len(resp.Users) > 0 && string(resp.Users) != "null" {
		if err := json.Unmarshal(resp.Users, &entries); err != nil {
			return nil, fmt.Errorf("decoding users: %w", err)
		}
	}
	users := make([]model.UserAccount, 0, len(entries))
	for _, e := range entries {
		lvl := access.LevelNone
		if e.Level.set {
			lvl = e.Level.value
		}
		users = append(users, model.UserAccount{Username: e.Username, Level: lvl})
	}
	return users, nil
}

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Level    *int   `json:"level,omitempty"`
	Token    string `json:"token"`
}

// CreateUser registers an account and returns the refreshed user list.
func (g *Gateway) CreateUser(ctx context.Context, username, password string, lvl int) ([]model.UserAccount, error) {
	token, err := g.requireToken()
	if err != nil {
		return nil, err
	}
	req := userRequest{Username: username, Password: password, Level: &lvl, Token: token}
	if err := g.client.PostJSON(ctx, "/register", req, nil); err != nil {
		g.logger.Error("creating user failed", "user", username, "error", err)
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}
	g.logger.Info("user created", "user", username, "level", lvl)
	return g.ListUsers(ctx)
}

// UpdateUser changes an account's password and level and returns the
// refreshed user list. The admin account is never touched: the call
// returns nil, nil without contacting the server.
func (g *Gateway) UpdateUser(ctx context.Context, username, password string, lvl int) ([]model.UserAccount, error) {
	if username == model.ProtectedUsername {
		g.logger.Warn("refusing to update protected account", "user", username)
		return nil, nil
	}
	token, err := g.requireToken()
	if err != nil {
		return nil, err
	}
	req := userRequest{Username: username, Password: password, Level: &lvl, Token: token}
	if err := g.client.PostJSON(ctx, "/updateUser", req, nil); err != nil {
		g.logger.Error("updating user failed", "user", username, "error", err)
		return nil, fmt.Errorf("updating user %s: %w", username, err)
	}
	g.logger.Info("user updated", "user", username, "level", lvl)
	return g.ListUsers(ctx)
}

// DeleteUser removes an account and returns the refreshed user list. Like
// UpdateUser it is a no-op for the admin account.
func (g *Gateway) DeleteUser(ctx context.Context, username string) ([]model.UserAccount, error) {
	if username == model.ProtectedUsername {
		g.logger.Warn("refusing to delete protected account", "user", username)
		return nil, nil
	}
	token, err := g.requireToken()
	if err != nil {
		return nil, err
	}
	if err := g.client.PostJSON(ctx, "/deleteUser", userRequest{Username: username, Token: token}, nil); err != nil {
		g.logger.Error("deleting user failed", "user", username, "error", err)
		return nil, fmt.Errorf("deleting user %s: %w", username, err)
	}
	g.logger.Info("user deleted", "user", username)
	return g.ListUsers(ctx)
}
