package api

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/idear/internal/auth"
	"github.com/erazemk/idear/internal/db"
	"github.com/erazemk/idear/internal/store"
)

// TestJWTSecret signs tokens issued by a TestServer.
const TestJWTSecret = "test-secret"

// TestPassword is the password of every user created by TestServer.AddUser.
const TestPassword = "password"

// TestServer is a development backend on an in-memory database.
type TestServer struct {
	*httptest.Server
	DB *sql.DB
}

// NewTestServer starts a backend with an admin user. BackupDir is a
// temporary directory.
func NewTestServer(t testing.TB) *TestServer {
	t.Helper()

	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(Config{
		DB:        database,
		JWTSecret: TestJWTSecret,
		BackupDir: t.TempDir(),
	}))
	t.Cleanup(server.Close)

	ts := &TestServer{Server: server, DB: database}
	ts.AddUser(t, "admin", 0)
	return ts
}

// AddUser creates a user with TestPassword.
func (s *TestServer) AddUser(t testing.TB, username string, level int) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	if _, err := store.CreateUser(context.Background(), s.DB, username, string(hash), level); err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
}

// Token issues and records a token for an existing user, as a login would.
func (s *TestServer) Token(t testing.TB, username string, level int) string {
	t.Helper()
	token, err := auth.IssueToken(TestJWTSecret, username, level)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	if err := store.RecordIssuedToken(context.Background(), s.DB, username, token); err != nil {
		t.Fatalf("recording token: %v", err)
	}
	return token
}
