package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/auth"
)

func levelName(level int) string {
	switch level {
	case access.LevelAdmin:
		return "admin"
	case access.LevelEditor:
		return "editor"
	}
	return "none"
}

func newLoginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			res, err := a.auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", args[0], levelName(res.Level))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the session is valid and its access level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fmt.Fprintf(a.out, "Server:  %s\n", a.cfg.API)
			token, ok := a.session.Token()
			if !ok {
				fmt.Fprintln(a.out, "Session: not logged in")
				return nil
			}
			// Display only; the level below comes from the server.
			if claims, err := auth.PeekClaims(token); err == nil {
				fmt.Fprintf(a.out, "User:    %s\n", claims.Username)
			}

			if !a.auth.IsAuthenticated(ctx) {
				fmt.Fprintln(a.out, "Session: expired or revoked")
				return nil
			}
			level := a.auth.GetAuthLevel(ctx)
			fmt.Fprintln(a.out, "Session: valid")
			fmt.Fprintf(a.out, "Level:   %d (%s)\n", level, levelName(level))
			if exp := a.session.ExpiresAt(); !exp.IsZero() {
				fmt.Fprintf(a.out, "Expires: %s (%s)\n", exp.Local().Format(time.DateTime), humanize.Time(exp))
			}
			return nil
		},
	}
}

func newLogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the server log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLevel(cmd.Context(), access.BackupRestore); err != nil {
				return err
			}
			text, err := a.files.Log(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, text)
			return nil
		},
	}
}
