// Package types defines shared data structures (Issue, Severity, ResolvedFile,
// Report) used across discovery, runner, filter and output packages to
// prevent import cycles.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Severity represents the severity level of an issue. The numeric values
// match the constants used in analyzer configuration files (0, 5, 10).
type Severity int

const (
	SeverityLow      Severity = 0
	SeverityNormal   Severity = 5
	SeverityCritical Severity = 10
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityNormal:
		return "NORMAL"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the three defined levels.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityNormal || s == SeverityCritical
}

// ParseSeverity converts a name (low, normal, critical) or a numeric level
// (0, 5, 10) to a Severity.
func ParseSeverity(s string) (Severity, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "CRITICAL":
		return SeverityCritical, nil
	case "NORMAL":
		return SeverityNormal, nil
	case "LOW":
		return SeverityLow, nil
	}
	if n, err := strconv.Atoi(v); err == nil && Severity(n).Valid() {
		return Severity(n), nil
	}
	return SeverityLow, fmt.Errorf("unknown severity: %q", s)
}

// MarshalText renders the severity by name so JSON and YAML output stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseSeverity accepts.
func (s *Severity) UnmarshalText(b []byte) error {
	sev, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Mode says how much work a resolved file receives.
type Mode int

const (
	// ModeParseOnly files contribute declarations to the symbol table only.
	ModeParseOnly Mode = iota
	// ModeParseAndAnalyze files are parsed and then analyzed for issues.
	ModeParseAndAnalyze
)

func (m Mode) String() string {
	switch m {
	case ModeParseAndAnalyze:
		return "parse+analyze"
	default:
		return "parse-only"
	}
}

// ResolvedFile is a project-relative path (forward slashes) plus its mode.
type ResolvedFile struct {
	Path string `json:"path"`
	Mode Mode   `json:"mode"`
}

// Issue represents a single issue raised by an analyzer.
type Issue struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
}

// Less orders issues by file, line and category, then by message and
// severity so that the order is total and output is reproducible.
func (i Issue) Less(o Issue) bool {
	if i.File != o.File {
		return i.File < o.File
	}
	if i.Line != o.Line {
		return i.Line < o.Line
	}
	if i.Category != o.Category {
		return i.Category < o.Category
	}
	if i.Message != o.Message {
		return i.Message < o.Message
	}
	return i.Severity < o.Severity
}

// Phase names where a shard can fail.
const (
	PhaseParse   = "parse"
	PhaseAnalyze = "analyze"
)

// ShardFailure records a shard that crashed or whose analyzer raised an
// unrecoverable error. Issues from a failed shard are not reported.
type ShardFailure struct {
	ShardID int    `json:"shard_id"`
	Phase   string `json:"phase"`
	File    string `json:"file,omitempty"`
	Err     string `json:"error"`
}

func (f ShardFailure) Error() string {
	if f.File != "" {
		return fmt.Sprintf("shard %d failed during %s of %s: %s", f.ShardID, f.Phase, f.File, f.Err)
	}
	return fmt.Sprintf("shard %d failed during %s: %s", f.ShardID, f.Phase, f.Err)
}

// Report holds the complete result of an analysis run.
type Report struct {
	RunID         string         `json:"run_id"`
	Issues        []Issue        `json:"issues"`
	Failures      []ShardFailure `json:"failures,omitempty"`
	FilesParsed   int            `json:"files_parsed"`
	FilesAnalyzed int            `json:"files_analyzed"`
	Shards        int            `json:"shards"`
	Duration      time.Duration  `json:"-"`
	Root          string         `json:"-"`
}

// Failed reports whether any shard failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// MarshalJSON implements custom JSON marshaling so Duration serializes as milliseconds.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(struct {
		Alias
		DurationMS int64 `json:"duration_ms"`
	}{
		Alias:      Alias(r),
		DurationMS: r.Duration.Milliseconds(),
	})
}
