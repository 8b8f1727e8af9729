package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/idear/internal/api"
	"github.com/erazemk/idear/internal/config"
	"github.com/erazemk/idear/internal/confirm"
)

type cli struct {
	t     *testing.T
	api   string
	state string
}

func newCLI(t *testing.T) (*cli, *api.TestServer) {
	t.Helper()
	ts := api.NewTestServer(t)
	return &cli{t: t, api: ts.URL, state: filepath.Join(t.TempDir(), "state.sqlite3")}, ts
}

// run executes one invocation sharing the session state with earlier ones.
func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--api", c.api, "--state", c.state}, args...)
	err := run(context.Background(), full, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	if err != nil {
		c.t.Fatalf("idear %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestLoginAndStatus(t *testing.T) {
	c, _ := newCLI(t)

	out := c.mustRun("status")
	if !strings.Contains(out, "not logged in") {
		t.Errorf("status before login = %q", out)
	}

	out = c.mustRun("login", "admin", "-p", api.TestPassword)
	if !strings.Contains(out, "Logged in as admin (admin)") {
		t.Errorf("login output = %q", out)
	}

	out = c.mustRun("status")
	if !strings.Contains(out, "User:    admin") || !strings.Contains(out, "Session: valid") || !strings.Contains(out, "Level:   0 (admin)") {
		t.Errorf("status after login = %q", out)
	}

	c.mustRun("logout")
	out = c.mustRun("status")
	if !strings.Contains(out, "not logged in") {
		t.Errorf("status after logout = %q", out)
	}
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	c, _ := newCLI(t)
	out, err := c.run(api.TestPassword+"\n", "login", "admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in") {
		t.Errorf("output = %q", out)
	}
}

func TestWrongPassword(t *testing.T) {
	c, _ := newCLI(t)
	if _, err := c.run("", "login", "admin", "-p", "nope"); err == nil {
		t.Fatal("expected login to fail")
	}
	out := c.mustRun("status")
	if !strings.Contains(out, "not logged in") {
		t.Errorf("status = %q", out)
	}
}

func TestItemsAddAndList(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)

	out := c.mustRun("--yes", "items", "add", "--name", "Screw", "--size", "M3", "--metric", "true", "--count", "12", "--shelf", "A")
	if !strings.Contains(out, "Added Screw") {
		t.Errorf("add output = %q", out)
	}

	out = c.mustRun("items", "list")
	if !strings.Contains(out, "Screw") || !strings.Contains(out, "M3") {
		t.Errorf("list output = %q", out)
	}

	out = c.mustRun("items", "fuzzy", "scrw")
	if !strings.Contains(out, "Screw") {
		t.Errorf("fuzzy output = %q", out)
	}
}

func TestAddRequiresConfirmation(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)

	_, err := c.run("n\n", "items", "add", "--name", "Bolt")
	if !errors.Is(err, confirm.ErrDeclined) {
		t.Fatalf("err = %v, want ErrDeclined", err)
	}
	if out := c.mustRun("items", "list"); strings.Contains(out, "Bolt") {
		t.Errorf("declined item was added: %q", out)
	}

	if _, err := c.run("y\n", "items", "add", "--name", "Bolt"); err != nil {
		t.Fatalf("confirmed add: %v", err)
	}
	if out := c.mustRun("items", "list"); !strings.Contains(out, "Bolt") {
		t.Errorf("confirmed item missing: %q", out)
	}
}

func TestWritesNeedLogin(t *testing.T) {
	c, _ := newCLI(t)
	_, err := c.run("", "--yes", "items", "add", "--name", "Bolt")
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("err = %v", err)
	}
}

func TestForbiddenForEditor(t *testing.T) {
	c, ts := newCLI(t)
	ts.AddUser(t, "editor", 1)
	c.mustRun("login", "editor", "-p", api.TestPassword)

	if _, err := c.run("", "users", "list"); !errors.Is(err, confirm.ErrForbidden) {
		t.Errorf("users list err = %v, want ErrForbidden", err)
	}
	if _, err := c.run("", "--yes", "files", "backup", "general"); !errors.Is(err, confirm.ErrForbidden) {
		t.Errorf("files backup err = %v, want ErrForbidden", err)
	}

	// Editors may still change stock.
	c.mustRun("--yes", "items", "add", "--name", "Washer")
}

func TestUserManagement(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)

	c.mustRun("--yes", "users", "add", "bob", "editor", "-p", "longenough")
	out := c.mustRun("users", "list")
	if !strings.Contains(out, "bob") || !strings.Contains(out, "editor") {
		t.Errorf("users list = %q", out)
	}

	c.mustRun("--yes", "users", "rm", "bob")
	if out := c.mustRun("users", "list"); strings.Contains(out, "bob") {
		t.Errorf("bob still listed: %q", out)
	}
}

func TestProtectedAdminAccount(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)

	for _, args := range [][]string{
		{"users", "rm", "admin"},
		{"users", "update", "admin", "none"},
	} {
		// No --yes and no input: a prompt would decline and fail.
		out, err := c.run("", args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if !strings.Contains(out, "protected; nothing changed") || strings.Contains(out, "Deleted") || strings.Contains(out, "Updated") {
			t.Errorf("%v output = %q", args, out)
		}
	}

	out := c.mustRun("users", "list")
	if !strings.Contains(out, "admin") {
		t.Errorf("admin missing from %q", out)
	}
	if out := c.mustRun("status"); !strings.Contains(out, "Level:   0 (admin)") {
		t.Errorf("admin level changed: %q", out)
	}
}

func TestUnsetMetricStaysUnset(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)
	c.mustRun("--yes", "items", "add", "--name", "Bolt")

	out := c.mustRun("items", "list")
	if strings.Contains(out, "False") {
		t.Errorf("unset metric flag was stored as False: %q", out)
	}
}

func TestItemsWatch(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)
	c.mustRun("--yes", "items", "add", "--name", "Spacer")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var out, errOut bytes.Buffer
	args := []string{"--api", c.api, "--state", c.state, "items", "list", "--watch", "--interval", "50ms"}
	if err := run(ctx, args, strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("watch: %v", err)
	}
	// Unchanged reloads are not printed again.
	if n := strings.Count(out.String(), "Spacer"); n != 1 {
		t.Errorf("Spacer printed %d times: %q", n, out.String())
	}
}

func TestFailedCommandClosesState(t *testing.T) {
	c, _ := newCLI(t)
	var out, errOut bytes.Buffer
	a := &app{v: config.New(), in: strings.NewReader(""), out: &out}
	args := []string{"--api", c.api, "--state", c.state, "login", "admin", "-p", "nope"}
	if err := a.execute(context.Background(), args, &errOut); err == nil {
		t.Fatal("expected login to fail")
	}
	if a.stateDB == nil {
		t.Fatal("state database was never opened")
	}
	if err := a.stateDB.Ping(); err == nil {
		t.Error("state database still open after a failed command")
	}
}

func TestElectricalPassiveWithSISuffix(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)

	c.mustRun("--yes", "electrical", "add", "passive", "--subtype", "resistor", "--value", "4.7k", "--count", "5")
	out := c.mustRun("electrical", "find", "passive", "--subtype", "resistor", "--value", "4700")
	if !strings.Contains(out, "4.7 kΩ") {
		t.Errorf("find output = %q", out)
	}

	out = c.mustRun("electrical", "inc", "passive", "3", "--subtype", "resistor", "--value", "4.7k")
	if !strings.HasSuffix(strings.TrimSpace(out), ": 8") {
		t.Errorf("inc output = %q", out)
	}
}

func TestFilesBackupAndList(t *testing.T) {
	c, _ := newCLI(t)
	c.mustRun("login", "admin", "-p", api.TestPassword)
	c.mustRun("--yes", "items", "add", "--name", "Nut")

	out := c.mustRun("--yes", "files", "backup", "general")
	if !strings.Contains(out, "Created items-") {
		t.Errorf("backup output = %q", out)
	}
	out = c.mustRun("files", "list", "general")
	if !strings.HasPrefix(out, "items-") {
		t.Errorf("list output = %q", out)
	}
}
