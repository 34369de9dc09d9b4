package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var flagHook bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Scaffold sifter configuration files",
	Long:  `Creates .sifter.yml and .sifterignore in the given directory. Existing files are left untouched.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagHook, "hook", false, "Create a git pre-commit hook that runs sifter")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	out := cmd.OutOrStdout()

	if flagHook {
		return initHook(out, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	files := []struct {
		path    string
		content string
	}{
		{path: filepath.Join(dir, ".sifter.yml"), content: configTemplate},
		{path: filepath.Join(dir, ".sifterignore"), content: ignoreTemplate},
	}
	for _, f := range files {
		if err := scaffold(out, f.path, f.content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func initHook(out io.Writer, dir string) error {
	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return fmt.Errorf("no .git directory found in %s (is this a git repository?)", dir)
	}
	return scaffold(out, filepath.Join(gitDir, "hooks", "pre-commit"), preCommitTemplate, 0o755)
}

// scaffold writes content to path unless the file already exists.
func scaffold(out io.Writer, path, content string, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "  skip %s (already exists)\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(out, "  create %s\n", path)
	return nil
}

const configTemplate = `# sifter project configuration
# Command-line flags and SIFTER_* environment variables override these values.

# Directories to parse. Declarations found here are visible to analysis.
directory_list:
  - .

# Directories parsed for declarations but never analyzed.
exclude_analysis_directory_list:
  - vendor/

# Files to parse and analyze in addition to directory_list.
# file_list: []

# Files never parsed.
# exclude_file_list: []
# exclude_file_regex: '@^vendor/.*/(tests?|Tests?)/@'

analyzed_file_extensions:
  - php

# Issue filtering. whitelist_issue_types, when set, is the only set reported.
# suppress_issue_types:
#   - PhanUnreferencedClass
# whitelist_issue_types: []

# low, normal or critical (or 0, 5, 10)
minimum_severity: low

# Number of shards analyzed in parallel.
processes: 1

# Built-in plugins: DollarDollarPlugin, RemoveDebugStatementPlugin, UnsafeCodePlugin
plugins: []

# quick_mode: false
# dead_code_detection: false
`

const ignoreTemplate = `# sifter ignore patterns (gitignore syntax)
# Matching files are never parsed.

# Generated code
generated/

# Editor and temp files
*.swp
*.tmp
*~
`

const preCommitTemplate = `#!/bin/sh
# sifter pre-commit hook
echo "Running sifter analysis..."
sifter analyze --changed --no-color --no-progress-bar
exit $?
`
