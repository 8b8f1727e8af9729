// Command idear is a command-line client for the IDEAr inventory.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/auth"
	"github.com/erazemk/idear/internal/broadcast"
	"github.com/erazemk/idear/internal/client"
	"github.com/erazemk/idear/internal/config"
	"github.com/erazemk/idear/internal/confirm"
	"github.com/erazemk/idear/internal/db"
	"github.com/erazemk/idear/internal/files"
	"github.com/erazemk/idear/internal/inventory"
	"github.com/erazemk/idear/internal/logging"
	"github.com/erazemk/idear/internal/model"
	"github.com/erazemk/idear/internal/session"
	"github.com/erazemk/idear/internal/store"
)

// app holds everything a command needs. It is built in the root command's
// PersistentPreRunE and closed by run once the command returns.
type app struct {
	v   *viper.Viper
	cfg *config.Config

	in  io.Reader
	out io.Writer
	yes bool

	logger   *slog.Logger
	closeLog func()
	stateDB  *sql.DB

	session    *session.Store
	auth       *auth.Gateway
	access     *access.Controller
	changes    *broadcast.Topic[inventory.Change]
	items      *inventory.Gateway
	itemSearch *inventory.SearchView[model.Item]
	electrical *inventory.ElectricalGateway
	files      *files.Service
	dispatcher *confirm.Dispatcher
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "idear",
		Short:         "IDEAr inventory client",
		Long:          "Search and maintain the general and electrical stockroom inventory.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyAPI, client.DefaultBaseURL, "inventory API base URL")
	flags.String(config.KeyState, config.DefaultStatePath(), "session state database")
	flags.String(config.KeyLog, "", "also write logs to this file")
	flags.Duration("timeout", 0, "request timeout (0 means none)")
	flags.Bool(config.KeyEphemeral, false, "keep the session in memory only")
	flags.BoolP(config.KeyVerbose, "v", false, "log requests")
	flags.BoolVarP(&a.yes, "yes", "y", false, "do not ask for confirmation")

	a.v.BindPFlag(config.KeyAPI, flags.Lookup(config.KeyAPI))
	a.v.BindPFlag(config.KeyState, flags.Lookup(config.KeyState))
	a.v.BindPFlag(config.KeyLog, flags.Lookup(config.KeyLog))
	a.v.BindPFlag(config.KeyRequestTimeout, flags.Lookup("timeout"))
	a.v.BindPFlag(config.KeyEphemeral, flags.Lookup(config.KeyEphemeral))
	a.v.BindPFlag(config.KeyVerbose, flags.Lookup(config.KeyVerbose))

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newItemsCmd(a),
		newElectricalCmd(a),
		newUsersCmd(a),
		newFilesCmd(a),
		newLogCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Diagnostics go to stderr so they never mix with command output.
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger, closeLog, err := logging.Setup(logging.Options{
		Level:  level,
		Path:   cfg.Log,
		Stdout: cmd.ErrOrStderr(),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.logger, a.closeLog = logger, closeLog

	var persister session.Persister = session.NewMemoryPersister()
	if !cfg.Ephemeral {
		a.stateDB, err = db.OpenState(cfg.State)
		if err != nil {
			return fmt.Errorf("opening state: %w", err)
		}
		persister = &store.TokenStore{DB: a.stateDB}
	}

	ctx := cmd.Context()
	a.session, err = session.New(ctx, persister)
	if err != nil {
		return err
	}

	c := client.New(client.Config{BaseURL: cfg.API, Timeout: cfg.RequestTimeout}, a.session, logger)
	a.auth = auth.NewGateway(a.session, c, logger)
	a.access = access.NewController(a.session.AuthLevel)
	a.changes = inventory.NewChanges()
	a.items = inventory.NewGateway(c, a.session, a.changes, logger)
	a.itemSearch = inventory.NewSearchView[model.Item]()
	a.electrical = inventory.NewElectricalGateway(c, a.session, a.changes, logger)
	a.files = files.New(c, a.session, a.changes, logger)

	var prompter confirm.Prompter = &confirm.TerminalPrompter{In: a.in, Out: cmd.ErrOrStderr()}
	if a.yes {
		prompter = confirm.AutoConfirm{}
	}
	a.dispatcher = &confirm.Dispatcher{
		Access:     a.access,
		Prompter:   prompter,
		Items:      a.items,
		Electrical: a.electrical,
		Users:      a.auth,
		Files:      a.files,
		Logger:     logger,
	}
	return nil
}

func (a *app) close() {
	if a.stateDB != nil {
		a.stateDB.Close()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

// dispatch refreshes the session level from the server and runs the action
// through the confirmation dispatcher.
func (a *app) dispatch(ctx context.Context, action confirm.Action) error {
	if _, ok := a.session.Token(); !ok {
		return auth.ErrNotLoggedIn
	}
	a.auth.GetAuthLevel(ctx)
	return a.dispatcher.ConfirmAndDispatch(ctx, action)
}

// requireLevel refreshes the level and fails unless it satisfies g. Used by
// privileged reads that need no confirmation.
func (a *app) requireLevel(ctx context.Context, g access.Guard) error {
	if _, ok := a.session.Token(); !ok {
		return auth.ErrNotLoggedIn
	}
	a.auth.GetAuthLevel(ctx)
	if !a.access.Allows(g) {
		return confirm.ErrForbidden
	}
	return nil
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{v: config.New(), in: in, out: out}
	return a.execute(ctx, args, errOut)
}

// execute runs one command line and releases the state database and the
// log file however the command ends.
func (a *app) execute(ctx context.Context, args []string, errOut io.Writer) error {
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, confirm.ErrDeclined) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
