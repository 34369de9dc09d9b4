package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/garagon/sifter/internal/types"
)

// ANSI color codes
const (
	reset     = "\033[0m"
	bold      = "\033[1m"
	dim       = "\033[2m"
	underline = "\033[4m"
	red       = "\033[31m"
	yellow    = "\033[33m"
	blue      = "\033[34m"
	cyan      = "\033[36m"
)

const (
	barWidth      = 40
	lineWidth     = 72
	categoryWidth = 32
	messageWidth  = 80
)

// TerminalFormatter outputs issues grouped by severity and file.
type TerminalFormatter struct {
	NoColor bool
	Verbose bool
}

func (f *TerminalFormatter) color(code, text string) string {
	if f.NoColor {
		return text
	}
	return code + text + reset
}

func (f *TerminalFormatter) Format(w io.Writer, report *types.Report) error {
	f.printHeader(w, report)

	if len(report.Issues) == 0 {
		fmt.Fprintf(w, "\n  %s No issues found.\n", f.color(cyan, "✔"))
	} else {
		f.printDashboard(w, countBySeverity(report.Issues))
		for _, sev := range severities {
			filtered := filterBySeverity(report.Issues, sev)
			if len(filtered) > 0 {
				f.printSeveritySection(w, sev, filtered)
			}
		}
		if err := f.printCategories(w, report.Issues); err != nil {
			return err
		}
	}

	f.printFailures(w, report.Failures)
	f.printFooter(w, report)
	return nil
}

func (f *TerminalFormatter) separator() string {
	return strings.Repeat("─", lineWidth)
}

func (f *TerminalFormatter) sectionHeader(title string) string {
	prefix := "── " + title + " "
	remaining := max(lineWidth-utf8.RuneCountInString(prefix), 0)
	return prefix + strings.Repeat("─", remaining)
}

func (f *TerminalFormatter) printHeader(w io.Writer, report *types.Report) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.color(dim, sep))
	fmt.Fprintf(w, "  %s\n", f.color(bold, "SIFTER ANALYSIS RESULTS"))

	parts := []string{}
	if report.Root != "" {
		parts = append(parts, fmt.Sprintf("Root: %s", report.Root))
	}
	parts = append(parts, fmt.Sprintf("%d parsed", report.FilesParsed))
	parts = append(parts, fmt.Sprintf("%d analyzed", report.FilesAnalyzed))
	parts = append(parts, fmt.Sprintf("%d shards", report.Shards))
	if report.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.2fs", report.Duration.Seconds()))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  ·  "))
	fmt.Fprintf(w, "%s\n", f.color(dim, sep))
}

func (f *TerminalFormatter) printDashboard(w io.Writer, counts map[types.Severity]int) {
	most := 0
	total := 0
	for _, c := range counts {
		most = max(most, c)
		total += c
	}
	if most == 0 {
		return
	}

	fmt.Fprintln(w)
	for _, sev := range severities {
		c := counts[sev]
		if c == 0 {
			continue
		}
		label := fmt.Sprintf("  %-10s", sev.String())
		fmt.Fprintf(w, "%s %s %4d\n", f.color(bold, label), f.renderBar(c, most, barWidth, sev), c)
	}
	fmt.Fprintf(w, "\n  %s\n", f.color(bold, fmt.Sprintf("%d issues", total)))
}

func (f *TerminalFormatter) printSeveritySection(w io.Writer, sev types.Severity, issues []types.Issue) {
	header := f.sectionHeader(fmt.Sprintf("%s (%d)", sev.String(), len(issues)))
	fmt.Fprintf(w, "\n%s\n", f.color(bold, header))

	for _, group := range groupByFile(issues) {
		fmt.Fprintf(w, "\n  %s\n", f.color(bold+underline, group.filePath))
		for _, is := range group.issues {
			f.printIssue(w, is)
		}
	}
}

func (f *TerminalFormatter) printIssue(w io.Writer, is types.Issue) {
	category := fmt.Sprintf("%-*s", categoryWidth, is.Category)
	fmt.Fprintf(w, "    %s %s %s\n",
		f.severityIcon(is.Severity),
		f.color(bold, category),
		f.color(cyan, fmt.Sprintf("L%d", is.Line)),
	)
	msg := is.Message
	if !f.Verbose {
		msg = truncate(msg, messageWidth)
	}
	if msg != "" {
		fmt.Fprintf(w, "      %s %s\n", f.color(dim, "│"), msg)
	}
}

func (f *TerminalFormatter) printCategories(w io.Writer, issues []types.Issue) error {
	header := f.sectionHeader("ISSUES BY CATEGORY")
	fmt.Fprintf(w, "\n%s\n\n", f.color(bold, header))

	table := tablewriter.NewWriter(w)
	table.Header("Category", "Severity", "Count")
	for _, c := range countByCategory(issues) {
		if err := table.Append(c.category, c.severity.String(), fmt.Sprint(c.count)); err != nil {
			return err
		}
	}
	return table.Render()
}

func (f *TerminalFormatter) printFailures(w io.Writer, failures []types.ShardFailure) {
	if len(failures) == 0 {
		return
	}
	header := f.sectionHeader(fmt.Sprintf("SHARD FAILURES (%d)", len(failures)))
	fmt.Fprintf(w, "\n%s\n\n", f.color(red+bold, header))
	for _, sf := range failures {
		fmt.Fprintf(w, "  %s %s\n", f.color(red+bold, "✖"), sf.Error())
	}
	fmt.Fprintf(w, "\n  %s\n", f.color(yellow, "Issues from failed shards are not reported; results are partial."))
}

func (f *TerminalFormatter) printFooter(w io.Writer, report *types.Report) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.color(dim, sep))

	parts := []string{
		fmt.Sprintf("%d files analyzed", report.FilesAnalyzed),
		fmt.Sprintf("%d issues", len(report.Issues)),
	}
	if n := len(report.Failures); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed shards", n))
	}
	if report.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.2fs", report.Duration.Seconds()))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " · "))
	fmt.Fprintf(w, "%s\n", f.color(dim, sep))
}

func (f *TerminalFormatter) severityIcon(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return f.color(red+bold, "✖")
	case types.SeverityNormal:
		return f.color(yellow, "■")
	case types.SeverityLow:
		return f.color(blue, "●")
	default:
		return "?"
	}
}

func severityColor(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return red + bold
	case types.SeverityNormal:
		return yellow
	case types.SeverityLow:
		return blue
	default:
		return ""
	}
}

func (f *TerminalFormatter) renderBar(count, most, width int, sev types.Severity) string {
	filled := count * width / most
	if filled == 0 && count > 0 {
		filled = 1
	}
	// Keep one empty block so the bar boundary stays visible.
	if filled >= width {
		filled = width - 1
	}
	return f.color(severityColor(sev), strings.Repeat("█", filled)) +
		f.color(dim, strings.Repeat("░", width-filled))
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
