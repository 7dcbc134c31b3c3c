package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	applog "spesa/internal/log"
	"spesa/internal/store"
)

// Opener opens the item store a command works on.
type Opener func(ctx context.Context, verbose bool) (*Session, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string

	open Opener
	now  func() time.Time
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// withStore opens the store, runs fn and closes the store again.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(*store.ItemStore) error) error {
	sess, err := o.open(cmd.Context(), o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open item store", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: closing store: %v\n", err)
		}
	}()
	return fn(sess.Store)
}

// NewRootCommand creates the root command. A nil open uses DefaultOpener.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = DefaultOpener
	}
	opts := &RootOptions{open: open, now: time.Now}

	cmd := &cobra.Command{
		Use:   "spesa",
		Short: "Track grocery expenses",
		Long: `Spesa keeps a grocery list with prices and quantities, and summarizes
spending per category.

Items are stored in the backend selected by DATA_BACKEND (file, sqlite or
memory). Settings are read from the environment and from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (text|json|yaml)")

	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newEditCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newCategoriesCommand(opts))
	cmd.AddCommand(newSummaryCommand(opts))
	cmd.AddCommand(newExportCommand(opts))

	return cmd
}

// DefaultOpener reads configuration from the environment and opens the
// configured store. Logs go to stderr, at debug level when verbose.
func DefaultOpener(ctx context.Context, verbose bool) (*Session, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig(nil)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := SetupLogger(level, os.Stderr).WithComponent(applog.ComponentCLI)
	return OpenStore(ctx, cfg, logger)
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(nil)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
