package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/garagon/sifter"
)

var flagListFormat string

var listPluginsCmd = &cobra.Command{
	Use:   "list-plugins",
	Short: "List the rules of every built-in plugin",
	Args:  cobra.NoArgs,
	RunE:  runListPlugins,
}

func init() {
	listPluginsCmd.Flags().StringVar(&flagListFormat, "format", "table", "Output format (table, json)")
	rootCmd.AddCommand(listPluginsCmd)
}

func runListPlugins(cmd *cobra.Command, args []string) error {
	infos, err := sifter.ListPlugins()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	switch strings.ToLower(flagListFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q (want table or json)", flagListFormat)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Plugin", "ID", "Name", "Severity")
	for _, p := range infos {
		if err := table.Append(p.Plugin, p.ID, p.Name, p.Severity); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d plugin rules\n", len(infos))
	return nil
}
