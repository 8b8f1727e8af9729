package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/confirm"
	"github.com/erazemk/idear/internal/model"
)

func parseLevel(s string) (int, error) {
	switch s {
	case "admin":
		return access.LevelAdmin, nil
	case "editor":
		return access.LevelEditor, nil
	case "none", "viewer":
		return access.LevelNone, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < access.LevelAdmin || n > access.LevelNone {
		return 0, fmt.Errorf("invalid level %q (admin, editor, none or 0-2)", s)
	}
	return n, nil
}

// protectedAccount reports, and tells the user, when username is the
// account that can be neither changed nor deleted.
func protectedAccount(a *app, username string) bool {
	if !(model.UserAccount{Username: username}).Protected() {
		return false
	}
	fmt.Fprintf(a.out, "%s account is protected; nothing changed\n", username)
	return true
}

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLevel(cmd.Context(), access.UserManagement); err != nil {
				return err
			}
			users, err := a.auth.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tLEVEL")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\n", u.Username, levelName(u.Level))
			}
			return tw.Flush()
		},
	}

	var password string
	add := &cobra.Command{
		Use:   "add <username> <level>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[1])
			if err != nil {
				return err
			}
			action := confirm.CreateUser{Username: args[0], Password: password, Level: level}
			if err := a.dispatch(cmd.Context(), action); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created user %s\n", args[0])
			return nil
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "initial password")
	add.MarkFlagRequired("password")

	var newPassword string
	update := &cobra.Command{
		Use:   "update <username> <level>",
		Short: "Change a user's level and optionally password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[1])
			if err != nil {
				return err
			}
			if protectedAccount(a, args[0]) {
				return nil
			}
			action := confirm.UpdateUser{Username: args[0], Password: newPassword, Level: level}
			if err := a.dispatch(cmd.Context(), action); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated user %s\n", args[0])
			return nil
		},
	}
	update.Flags().StringVarP(&newPassword, "password", "p", "", "new password")

	rm := &cobra.Command{
		Use:   "rm <username>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if protectedAccount(a, args[0]) {
				return nil
			}
			if err := a.dispatch(cmd.Context(), confirm.DeleteUser{Username: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted user %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, update, rm)
	return cmd
}
