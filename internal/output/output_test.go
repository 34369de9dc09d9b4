package output_test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garagon/sifter/internal/output"
	"github.com/garagon/sifter/internal/types"
)

func sampleReport() *types.Report {
	return &types.Report{
		RunID: "01JBZ6Q7X8Y9Z0ABCDEFGHJKMN",
		Issues: []types.Issue{
			{Category: "PhanUndeclaredInterface", Severity: types.SeverityCritical, File: "modules/file_test/src/Form/FileTestForm.php", Line: 15, Message: `Class implements undeclared interface \Drupal\Core\Form\Missing`},
			{Category: "PhanPluginDollarDollar", Severity: types.SeverityLow, File: "modules/file_test/file_test.module", Line: 4, Message: "Variable variable ($$name)"},
			{Category: "PhanRedefineClass", Severity: types.SeverityNormal, File: "modules/file_test/file_test.module", Line: 9, Message: "Class Foo | Bar <x> previously defined at a.php:3"},
		},
		FilesParsed:   12,
		FilesAnalyzed: 7,
		Shards:        4,
		Duration:      1500 * time.Millisecond,
		Root:          "drupal",
	}
}

func failedReport() *types.Report {
	r := sampleReport()
	r.Failures = []types.ShardFailure{
		{ShardID: 2, Phase: types.PhaseAnalyze, File: "core/lib/Drupal.php", Err: "analyzer crashed"},
	}
	return r
}

func TestNew(t *testing.T) {
	for _, mode := range output.Modes {
		f, err := output.New(mode, true)
		require.NoError(t, err, mode)
		require.NotNil(t, f)
	}
	f, err := output.New("", false)
	require.NoError(t, err)
	require.IsType(t, &output.TerminalFormatter{}, f)

	_, err = output.New("yaml", false)
	require.ErrorContains(t, err, "unknown output mode")
}

func TestTerminalFormatterNoIssues(t *testing.T) {
	f := &output.TerminalFormatter{NoColor: true}
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, &types.Report{FilesParsed: 5, FilesAnalyzed: 5, Shards: 1, Root: "drupal"}))
	out := buf.String()
	require.Contains(t, out, "No issues found")
	require.Contains(t, out, "SIFTER ANALYSIS RESULTS")
	require.Contains(t, out, "Root: drupal")
	require.Contains(t, out, "5 files analyzed")
	require.Contains(t, out, "0 issues")
	require.NotContains(t, out, "\033[")
}

func TestTerminalFormatterWithIssues(t *testing.T) {
	f := &output.TerminalFormatter{NoColor: true}
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, sampleReport()))
	out := buf.String()
	require.Contains(t, out, "CRITICAL (1)")
	require.Contains(t, out, "NORMAL (1)")
	require.Contains(t, out, "LOW (1)")
	require.Contains(t, out, "PhanUndeclaredInterface")
	require.Contains(t, out, "modules/file_test/src/Form/FileTestForm.php")
	require.Contains(t, out, "L15")
	require.Contains(t, out, "ISSUES BY CATEGORY")
	require.Contains(t, out, "3 issues")
	require.Contains(t, out, "1.50s")
	require.NotContains(t, out, "SHARD FAILURES")
}

func TestTerminalFormatterColor(t *testing.T) {
	f := &output.TerminalFormatter{}
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, sampleReport()))
	require.Contains(t, buf.String(), "\033[")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.JSONFormatter{}).Format(&buf, failedReport()))

	var parsed struct {
		RunID      string               `json:"run_id"`
		Issues     []types.Issue        `json:"issues"`
		Failures   []types.ShardFailure `json:"failures"`
		Shards     int                  `json:"shards"`
		DurationMS int64                `json:"duration_ms"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Issues, 3)
	require.Equal(t, types.SeverityCritical, parsed.Issues[0].Severity)
	require.Len(t, parsed.Failures, 1)
	require.Equal(t, 2, parsed.Failures[0].ShardID)
	require.Equal(t, 4, parsed.Shards)
	require.Equal(t, int64(1500), parsed.DurationMS)
	require.Contains(t, buf.String(), `"severity": "CRITICAL"`)
}

func TestJSONFormatterEmptyIssuesIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.JSONFormatter{}).Format(&buf, &types.Report{}))
	require.Contains(t, buf.String(), `"issues": []`)
	require.NotContains(t, buf.String(), `"failures"`)
}

func TestSARIFFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.SARIFFormatter{}).Format(&buf, failedReport()))

	var log struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Invocations []struct {
				ExecutionSuccessful        bool `json:"executionSuccessful"`
				ToolExecutionNotifications []struct {
					Level string `json:"level"`
				} `json:"toolExecutionNotifications"`
			} `json:"invocations"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						Region struct {
							StartLine int `json:"startLine"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	require.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	require.Equal(t, "sifter", run.Tool.Driver.Name)
	require.Len(t, run.Tool.Driver.Rules, 3)
	require.Len(t, run.Results, 3)
	require.Equal(t, "error", run.Results[0].Level)
	require.Equal(t, "note", run.Results[1].Level)
	require.Equal(t, "warning", run.Results[2].Level)
	require.Equal(t, 15, run.Results[0].Locations[0].PhysicalLocation.Region.StartLine)
	require.False(t, run.Invocations[0].ExecutionSuccessful)
	require.Len(t, run.Invocations[0].ToolExecutionNotifications, 1)
}

func TestSARIFFormatterEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.SARIFFormatter{}).Format(&buf, &types.Report{}))
	require.Contains(t, buf.String(), `"results": []`)
	require.Contains(t, buf.String(), `"executionSuccessful": true`)
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.MarkdownFormatter{}).Format(&buf, sampleReport()))
	out := buf.String()
	require.Contains(t, out, "Sifter Analysis: 3 issues")
	require.Contains(t, out, "<details open>")
	require.Contains(t, out, "| `PhanUndeclaredInterface` |")
	require.Contains(t, out, "L15")
	require.Contains(t, out, `Foo \| Bar &lt;x&gt;`)
	require.Contains(t, out, "Issues by category")
	require.NotContains(t, out, "Shard failures")
}

func TestMarkdownFormatterNoIssues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.MarkdownFormatter{}).Format(&buf, &types.Report{FilesParsed: 3}))
	require.Contains(t, buf.String(), "no issues found")
	require.NotContains(t, buf.String(), "<details")
}

func TestHTMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.HTMLFormatter{}).Format(&buf, failedReport()))
	out := buf.String()
	require.Contains(t, out, "<!DOCTYPE html>")
	require.Contains(t, out, "<title>sifter report 01JBZ6Q7X8Y9Z0ABCDEFGHJKMN</title>")
	require.Contains(t, out, "<table>")
	require.Contains(t, out, "<code>PhanUndeclaredInterface</code>")
	require.Contains(t, out, "Shard failures (1)")
	require.NotContains(t, out, "<details")
}

func TestCheckstyleFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&output.CheckstyleFormatter{}).Format(&buf, failedReport()))

	var parsed struct {
		Files []struct {
			Name   string `xml:"name,attr"`
			Errors []struct {
				Line     int    `xml:"line,attr"`
				Severity string `xml:"severity,attr"`
				Source   string `xml:"source,attr"`
			} `xml:"error"`
		} `xml:"file"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Files, 3)
	require.Equal(t, "modules/file_test/src/Form/FileTestForm.php", parsed.Files[0].Name)
	require.Equal(t, "error", parsed.Files[0].Errors[0].Severity)
	require.Equal(t, "modules/file_test/file_test.module", parsed.Files[1].Name)
	require.Len(t, parsed.Files[1].Errors, 2)
	require.Equal(t, "info", parsed.Files[1].Errors[0].Severity)
	require.Equal(t, "sifter.ShardFailure", parsed.Files[2].Errors[0].Source)
}

func TestFailuresRenderedInEveryFormat(t *testing.T) {
	for _, mode := range output.Modes {
		t.Run(mode, func(t *testing.T) {
			f, err := output.New(mode, true)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, f.Format(&buf, failedReport()))
			require.Contains(t, buf.String(), "core/lib/Drupal.php")
		})
	}
}
