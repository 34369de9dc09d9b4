package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/garagon/sifter"
)

var (
	flagConfig      string
	flagProjectRoot string
	flagNoColor     bool
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "sifter",
	Short: "Configuration-driven static analysis for large PHP trees",
	Long: `Sifter resolves a layered configuration into the set of files to parse and analyze,
runs a sharded two-phase analysis and reports the issues that survive filtering.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Project configuration file (default: .sifter.yml in the project root)")
	rootCmd.PersistentFlags().StringVar(&flagProjectRoot, "project-root", ".", "Project root directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// ExitError carries a process exit status for a command that finished its
// work but must report failure, such as an analysis that emitted issues.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 2
}

// Execute runs the root command. Errors other than *ExitError are printed to
// stderr before being returned.
func Execute() error {
	err := rootCmd.Execute()
	var ee *ExitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// configOptions returns the options shared by every command that resolves
// the project configuration.
func configOptions() []sifter.Option {
	opts := []sifter.Option{sifter.WithEnvironment(os.Environ)}
	if flagConfig != "" {
		opts = append(opts, sifter.WithConfigFile(absPath(flagConfig)))
	}
	return opts
}

// absPath makes a user-supplied path absolute so it does not get resolved
// against the project root.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
