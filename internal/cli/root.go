// Package cli implements the gazetteer command-line interface. Every
// property mutation is run through an editing form, so the commands apply
// the same validation, bilingual mirroring and save rules as an interactive
// editor.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// exitErr carries the process exit code of a failed command.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }

func (e *exitErr) Unwrap() error { return e.err }

// userError marks err as caused by bad input.
func userError(err error) error { return &exitErr{code: exitUserError, err: err} }

// sysError marks err as an environment or storage failure.
func sysError(err error) error { return &exitErr{code: exitSysError, err: err} }

// NewRootCmd creates the top-level "gazetteer" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gazetteer",
		Short: "Edit local land and property gazetteer records",
		Long: "gazetteer maintains BLPUs and their LPIs, provenances, cross references\n" +
			"and notes in a local store, with the same rules as the property editor.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .gazetteer-db)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newPropertyCmd())
	root.AddCommand(newLookupCmd())
	root.AddCommand(newSearchCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		os.Exit(exitSuccess)
	}
	fmt.Fprintln(os.Stderr, "gazetteer:", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var e *exitErr
	if errors.As(err, &e) {
		return e.code
	}
	return exitUserError
}

// newLogger returns a development logger with --verbose and a production
// logger that only reports warnings otherwise.
func newLogger() (*zap.Logger, error) {
	if flags.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
