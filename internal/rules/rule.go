// Package rules loads the line-pattern plugins named by the plugins option.
// A plugin is a YAML file of one or more rule documents; each rule raises
// issues whose category is the rule ID.
package rules

import (
	"regexp"

	"github.com/garagon/sifter/internal/types"
)

// MatchMode determines how multiple patterns are combined.
type MatchMode int

const (
	MatchAny MatchMode = iota // any pattern match raises an issue
	MatchAll                  // every pattern must match somewhere in the file
)

// PatternType represents the type of a pattern.
type PatternType string

const (
	PatternRegex    PatternType = "regex"
	PatternContains PatternType = "contains"
)

// RawPattern is a single pattern as defined in YAML.
type RawPattern struct {
	Type  PatternType `yaml:"type"`
	Value string      `yaml:"value"`
}

// RawExamples contains snippets used to self-test a rule.
type RawExamples struct {
	TruePositive  []string `yaml:"true_positive"`
	FalsePositive []string `yaml:"false_positive"`
}

// RawRule is the YAML representation of a plugin rule.
type RawRule struct {
	ID              string       `yaml:"id"`
	Plugin          string       `yaml:"plugin"`
	Name            string       `yaml:"name"`
	Description     string       `yaml:"description"`
	Severity        string       `yaml:"severity"`
	Targets         []string     `yaml:"targets"`
	MatchMode       string       `yaml:"match_mode"`
	Patterns        []RawPattern `yaml:"patterns"`
	ExcludePatterns []RawPattern `yaml:"exclude_patterns"`
	Examples        RawExamples  `yaml:"examples"`
}

// CompiledPattern is a pattern ready for matching.
type CompiledPattern struct {
	Type  PatternType
	Regex *regexp.Regexp // set when Type == PatternRegex
	Value string         // set when Type == PatternContains (lowercased)
}

// CompiledRule is a rule compiled and ready for execution.
type CompiledRule struct {
	ID              string
	Plugin          string
	Name            string
	Description     string
	Severity        types.Severity
	Targets         []string
	MatchMode       MatchMode
	Patterns        []CompiledPattern
	ExcludePatterns []CompiledPattern
	Examples        RawExamples
}
