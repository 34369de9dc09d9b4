package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garagon/sifter/internal/update"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	flagCheckUpdate bool
	releaseChecker  = update.NewChecker()
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "Check whether a newer release is available")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "sifter %s (commit: %s)\n", Version, Commit)
	if !flagCheckUpdate {
		return nil
	}

	rel, err := releaseChecker.Check(cmd.Context(), Version)
	switch {
	case errors.Is(err, update.ErrDevBuild):
		fmt.Fprintln(out, "development build, skipping release check")
		return nil
	case err != nil:
		return err
	case rel.Outdated():
		fmt.Fprintf(out, "sifter %s is available: %s\n", rel.Latest, rel.InstallHint())
	default:
		fmt.Fprintln(out, "up to date")
	}
	return nil
}
