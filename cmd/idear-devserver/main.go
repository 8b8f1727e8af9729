// Command idear-devserver runs a local inventory backend that speaks the
// same HTTP contract as the production IDEAr API. It is meant for
// development and for exercising the idear client.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/api"
	"github.com/erazemk/idear/internal/db"
	"github.com/erazemk/idear/internal/logging"
	"github.com/erazemk/idear/internal/model"
	"github.com/erazemk/idear/internal/store"
)

type options struct {
	dbPath    string
	addr      string
	adminUser string
	logPath   string
	backupDir string
}

func parseFlags(args []string, usageOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("idear-devserver", flag.ContinueOnError)
	fs.SetOutput(usageOut)

	var o options
	fs.StringVar(&o.dbPath, "db", "idear.sqlite3", "")
	fs.StringVar(&o.dbPath, "d", "idear.sqlite3", "")
	fs.StringVar(&o.addr, "addr", "127.0.0.1:3000", "")
	fs.StringVar(&o.addr, "a", "127.0.0.1:3000", "")
	fs.StringVar(&o.adminUser, "user", model.ProtectedUsername, "")
	fs.StringVar(&o.adminUser, "u", model.ProtectedUsername, "")
	fs.StringVar(&o.logPath, "log", "", "")
	fs.StringVar(&o.logPath, "l", "", "")
	fs.StringVar(&o.backupDir, "backups", "backups", "")

	fs.Usage = func() {
		fmt.Fprint(usageOut, `Usage: idear-devserver [flags]

Flags:
  -d, -db <path>          SQLite database path (default: idear.sqlite3)
  -a, -addr <host:port>   listen address (default: 127.0.0.1:3000)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path, also served by /get_log
  -backups <dir>          backup and upload directory (default: backups)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return o, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stdout)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	_, closeLog, err := logging.Setup(logging.Options{Level: slog.LevelInfo, Path: o.logPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// Create the database with an admin account on first run.
	if _, err := os.Stat(o.dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(o.dbPath, o.adminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(os.Stdout, o.dbPath, o.adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(o.dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", o.dbPath)

	if err := os.MkdirAll(o.backupDir, 0o755); err != nil {
		slog.Error("failed to create backup directory", "error", err)
		os.Exit(1)
	}

	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr: o.addr,
		Handler: api.NewRouter(api.Config{
			DB:        database,
			JWTSecret: jwtSecret,
			BackupDir: o.backupDir,
			LogPath:   o.logPath,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", o.addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// initDatabase creates a new database, runs the migrations and creates the
// admin user with a random password.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	fail := func(format string, err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf(format, err)
	}

	if err := db.Migrate(database); err != nil {
		return fail("migrating: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail("hashing password: %w", err)
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, string(hash), access.LevelAdmin); err != nil {
		return fail("creating admin user: %w", err)
	}

	return database, password, nil
}

func printInitResult(w io.Writer, dbPath, username, password string) {
	fmt.Fprintf(w, "Database created: %s\n", dbPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
