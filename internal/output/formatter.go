// Package output formats analysis reports for terminal (ANSI), JSON, SARIF,
// Markdown, HTML and Checkstyle output.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/garagon/sifter/internal/types"
)

// Formatter is the interface for outputting reports.
type Formatter interface {
	Format(w io.Writer, report *types.Report) error
}

// Modes lists the accepted output modes.
var Modes = []string{"text", "json", "sarif", "markdown", "html", "checkstyle"}

// New returns the formatter for an output mode. NO_COLOR in the environment
// disables ANSI color for the text mode.
func New(mode string, noColor bool) (Formatter, error) {
	switch mode {
	case "", "text":
		return &TerminalFormatter{NoColor: noColor || os.Getenv("NO_COLOR") != ""}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "sarif":
		return &SARIFFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	case "html":
		return &HTMLFormatter{}, nil
	case "checkstyle":
		return &CheckstyleFormatter{}, nil
	}
	return nil, fmt.Errorf("unknown output mode %q (valid: %v)", mode, Modes)
}

var severities = []types.Severity{
	types.SeverityCritical,
	types.SeverityNormal,
	types.SeverityLow,
}

func filterBySeverity(issues []types.Issue, sev types.Severity) []types.Issue {
	var result []types.Issue
	for _, is := range issues {
		if is.Severity == sev {
			result = append(result, is)
		}
	}
	return result
}

func countBySeverity(issues []types.Issue) map[types.Severity]int {
	counts := map[types.Severity]int{}
	for _, is := range issues {
		counts[is.Severity]++
	}
	return counts
}

type categoryCount struct {
	category string
	severity types.Severity
	count    int
}

// countByCategory returns per-category counts ordered by count, then name.
func countByCategory(issues []types.Issue) []categoryCount {
	idx := map[string]int{}
	var out []categoryCount
	for _, is := range issues {
		i, ok := idx[is.Category]
		if !ok {
			i = len(out)
			idx[is.Category] = i
			out = append(out, categoryCount{category: is.Category, severity: is.Severity})
		}
		out[i].count++
		out[i].severity = max(out[i].severity, is.Severity)
	}
	sortCounts(out)
	return out
}

func sortCounts(c []categoryCount) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].count != c[j].count {
			return c[i].count > c[j].count
		}
		return c[i].category < c[j].category
	})
}

type fileGroup struct {
	filePath string
	issues   []types.Issue
}

// groupByFile groups issues by file, keeping first-seen order. Report issues
// are already sorted by file so this is the file order.
func groupByFile(issues []types.Issue) []fileGroup {
	var result []fileGroup
	idx := map[string]int{}
	for _, is := range issues {
		i, ok := idx[is.File]
		if !ok {
			i = len(result)
			idx[is.File] = i
			result = append(result, fileGroup{filePath: is.File})
		}
		result[i].issues = append(result[i].issues, is)
	}
	return result
}
