package output

import (
	"encoding/json"
	"io"

	"github.com/garagon/sifter/internal/types"
)

// ToolVersion is the sifter version reported in SARIF and Markdown output.
var ToolVersion = "dev"

// SARIFFormatter outputs issues in SARIF 2.1.0 format for code scanning.
type SARIFFormatter struct{}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations"`
	Results     []sarifResult     `json:"results"`
	Properties  map[string]any    `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func (f *SARIFFormatter) Format(w io.Writer, report *types.Report) error {
	ruleIndex := map[string]int{}
	rules := []sarifRule{}
	results := []sarifResult{}
	for _, is := range report.Issues {
		if _, ok := ruleIndex[is.Category]; !ok {
			ruleIndex[is.Category] = len(rules)
			rules = append(rules, sarifRule{
				ID:               is.Category,
				ShortDescription: sarifMessage{Text: is.Category},
				DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(is.Severity)},
			})
		}
		results = append(results, sarifResult{
			RuleID:    is.Category,
			RuleIndex: ruleIndex[is.Category],
			Level:     severityToLevel(is.Severity),
			Message:   sarifMessage{Text: is.Message},
			Locations: []sarifLocation{location(is.File, max(is.Line, 1))},
		})
	}

	inv := sarifInvocation{ExecutionSuccessful: !report.Failed()}
	for _, sf := range report.Failures {
		n := sarifNotification{Level: "error", Message: sarifMessage{Text: sf.Error()}}
		if sf.File != "" {
			n.Locations = []sarifLocation{location(sf.File, 0)}
		}
		inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, n)
	}

	log := sarifLog{
		Schema:  "https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "sifter",
						Version:        ToolVersion,
						InformationURI: "https://github.com/garagon/sifter",
						Rules:          rules,
					},
				},
				Invocations: []sarifInvocation{inv},
				Results:     results,
				Properties: map[string]any{
					"run_id":      report.RunID,
					"duration_ms": report.Duration.Milliseconds(),
				},
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func location(file string, line int) sarifLocation {
	loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: file}}}
	if line > 0 {
		loc.PhysicalLocation.Region = &sarifRegion{StartLine: line}
	}
	return loc
}

func severityToLevel(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return "error"
	case types.SeverityNormal:
		return "warning"
	default:
		return "note"
	}
}
