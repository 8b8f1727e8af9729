package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/confirm"
	"github.com/erazemk/idear/internal/files"
)

func newFilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Back up, restore and import inventory tables",
	}

	backup := &cobra.Command{
		Use:   "backup <general|electrical>",
		Short: "Create a server-side backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := files.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := a.dispatch(cmd.Context(), confirm.Backup{Kind: kind}); err != nil {
				return err
			}
			names, err := a.files.ListBackups(cmd.Context(), kind)
			if err == nil && len(names) > 0 {
				fmt.Fprintf(a.out, "Created %s\n", names[0])
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list <general|electrical>",
		Short: "List server-side backups, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := files.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := a.requireLevel(cmd.Context(), access.BackupRestore); err != nil {
				return err
			}
			names, err := a.files.ListBackups(cmd.Context(), kind)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <general|electrical> <backup>",
		Short: "Replace a table with a server-side backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := files.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := a.dispatch(cmd.Context(), confirm.Restore{Kind: kind, Name: args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Restored %s from %s\n", kind, args[1])
			return nil
		},
	}

	cmd.AddCommand(backup, list, restore,
		newUploadCmd(a, false),
		newUploadCmd(a, true),
		newDownloadCmd(a),
	)
	return cmd
}

func newUploadCmd(a *app, appendRows bool) *cobra.Command {
	use, short := "upload", "Replace a table with a local CSV file"
	if appendRows {
		use, short = "append", "Add the rows of a local CSV file to a table"
	}
	return &cobra.Command{
		Use:   use + " <general|electrical> <file.csv>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := files.ParseKind(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			name := filepath.Base(args[1])
			action := confirm.Upload{Kind: kind, Name: name, Data: f, Append: appendRows}
			if err := a.dispatch(cmd.Context(), action); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %s into %s\n", name, kind)
			return nil
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <backup>",
		Short: "Save a server-side backup locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLevel(cmd.Context(), access.BackupRestore); err != nil {
				return err
			}
			if output == "" {
				output = filepath.Base(args[0])
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := a.files.Download(cmd.Context(), args[0], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return err
			}
			fmt.Fprintf(a.out, "Saved %s (%s)\n", output, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (defaults to the backup name)")
	return cmd
}
