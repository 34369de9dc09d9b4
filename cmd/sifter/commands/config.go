package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garagon/sifter"
)

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Print the effective configuration as YAML",
	Long:  `Resolves defaults, the project file, SIFTER_* environment variables and prints the result.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := flagProjectRoot
	if len(args) > 0 {
		root = args[0]
	}
	cfg, path, err := sifter.ResolveConfig(root, configOptions()...)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Map())
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	out := cmd.OutOrStdout()
	if path != "" {
		fmt.Fprintf(out, "# source: %s\n", path)
	} else {
		fmt.Fprintln(out, "# source: defaults")
	}
	_, err = out.Write(data)
	return err
}
