package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/garagon/sifter/internal/types"
)

// MarkdownFormatter outputs issues as GitHub-flavored markdown for job
// summaries and PR comments.
type MarkdownFormatter struct {
	// NoDetails renders plain headings instead of collapsible <details>
	// blocks, for renderers that drop raw HTML.
	NoDetails bool
}

func (f *MarkdownFormatter) Format(w io.Writer, report *types.Report) error {
	if len(report.Issues) == 0 {
		fmt.Fprintf(w, "### :white_check_mark: Sifter Analysis: no issues found\n\n")
		fmt.Fprintf(w, "> %d files parsed · %d analyzed · %.2fs\n\n",
			report.FilesParsed, report.FilesAnalyzed, report.Duration.Seconds())
	} else {
		f.printSummary(w, report)
		f.printIssues(w, report.Issues)
		f.printCategories(w, report.Issues)
	}
	f.printFailures(w, report.Failures)

	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "*Analyzed by [sifter](https://github.com/garagon/sifter) %s*\n", ToolVersion)
	return nil
}

func (f *MarkdownFormatter) printSummary(w io.Writer, report *types.Report) {
	fmt.Fprintf(w, "### :rotating_light: Sifter Analysis: %d issues\n\n", len(report.Issues))
	fmt.Fprintf(w, "> %d files parsed · %d analyzed · %d shards · %.2fs\n\n",
		report.FilesParsed, report.FilesAnalyzed, report.Shards, report.Duration.Seconds())

	counts := countBySeverity(report.Issues)
	var badges []string
	for _, sev := range severities {
		if c := counts[sev]; c > 0 {
			badges = append(badges, fmt.Sprintf("%s **%d %s**", severityEmoji(sev), c, sev.String()))
		}
	}
	fmt.Fprintf(w, "%s\n\n", strings.Join(badges, " · "))
}

func (f *MarkdownFormatter) printIssues(w io.Writer, issues []types.Issue) {
	for _, sev := range severities {
		filtered := filterBySeverity(issues, sev)
		if len(filtered) == 0 {
			continue
		}

		if f.NoDetails {
			fmt.Fprintf(w, "#### %s %s (%d)\n\n", severityEmoji(sev), sev.String(), len(filtered))
		} else {
			open := ""
			if sev == types.SeverityCritical {
				open = " open"
			}
			fmt.Fprintf(w, "<details%s>\n", open)
			fmt.Fprintf(w, "<summary>%s <strong>%s (%d)</strong></summary>\n\n", severityEmoji(sev), sev.String(), len(filtered))
		}

		fmt.Fprintf(w, "| Category | Message | File | Line |\n")
		fmt.Fprintf(w, "|----------|---------|------|------|\n")
		for _, is := range filtered {
			fmt.Fprintf(w, "| `%s` | %s | `%s` | L%d |\n",
				is.Category, escapeMarkdown(truncate(is.Message, 120)), is.File, is.Line)
		}

		if f.NoDetails {
			fmt.Fprintf(w, "\n")
		} else {
			fmt.Fprintf(w, "\n</details>\n\n")
		}
	}
}

func (f *MarkdownFormatter) printCategories(w io.Writer, issues []types.Issue) {
	counts := countByCategory(issues)
	if len(counts) < 2 {
		return
	}
	fmt.Fprintf(w, "**Issues by category:**\n\n")
	fmt.Fprintf(w, "| Category | Count |\n")
	fmt.Fprintf(w, "|----------|-------|\n")
	for _, c := range counts {
		fmt.Fprintf(w, "| `%s` | %d |\n", c.category, c.count)
	}
	fmt.Fprintf(w, "\n")
}

func (f *MarkdownFormatter) printFailures(w io.Writer, failures []types.ShardFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "#### :x: Shard failures (%d)\n\n", len(failures))
	fmt.Fprintf(w, "Issues from failed shards are not reported; results are partial.\n\n")
	fmt.Fprintf(w, "| Shard | Phase | File | Error |\n")
	fmt.Fprintf(w, "|-------|-------|------|-------|\n")
	for _, sf := range failures {
		fmt.Fprintf(w, "| %d | %s | `%s` | %s |\n", sf.ShardID, sf.Phase, sf.File, escapeMarkdown(truncate(sf.Err, 120)))
	}
	fmt.Fprintf(w, "\n")
}

func severityEmoji(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return ":red_circle:"
	case types.SeverityNormal:
		return ":yellow_circle:"
	case types.SeverityLow:
		return ":blue_circle:"
	default:
		return ":white_circle:"
	}
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
