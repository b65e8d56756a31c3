// Command roster migrates the database and moves members.csv in and out of it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"membership/internal/app"
	"membership/internal/config"
	"membership/internal/logging"
	"membership/internal/roster"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type env struct {
	app *app.App
	svc *roster.Service
	log *zap.Logger
}

// open wires the same services as the api from the same environment, so an
// import invalidates the shared insights cache and wakes the worker.
func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{app: a, svc: a.Roster, log: log}, nil
}

func (e *env) close() {
	_ = e.app.Close()
	_ = e.log.Sync()
}

// writeFile creates path and hands it to write. A failed write or close
// removes the partial file.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return write(f)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "roster",
		Short:        "Manage the member roster database",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newExportCmd(), newImportCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every member as " + roster.Filename,
		Long: `Write every member, ordered by name, in the members.csv format.

Without --out the CSV goes to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if out == "" {
				_, err := e.svc.Export(cmd.Context(), cmd.OutOrStdout())
				return err
			}
			var n int
			err = writeFile(out, func(w io.Writer) (err error) {
				n, err = e.svc.Export(cmd.Context(), w)
				return err
			})
			if err != nil {
				return fmt.Errorf("export to %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d members to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write instead of stdout")
	return cmd
}

func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Insert the members of a CSV file",
		Long: `Insert every row of a members.csv file in a single transaction.

Any row with an error rejects the whole file. Warnings (defaulted gender,
unrecognised boolean literals, unknown columns) are printed but do not block.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.svc.Import(cmd.Context(), f, dryRun)
			for _, is := range res.Issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %s: %s %s\n", args[0], is.Line, is.Severity, is.Column, is.Message)
			}
			if errors.Is(err, roster.ErrRejected) {
				return fmt.Errorf("%s: %d errors, nothing imported", args[0], len(res.Issues.Errors()))
			}
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows valid, nothing imported (dry run)\n", res.Rows)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d members\n", res.Imported)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}
