package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/garagon/sifter/internal/types"
)

// Compile converts a RawRule into a CompiledRule ready for execution.
func Compile(raw RawRule) (*CompiledRule, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("rule missing ID")
	}
	if len(raw.Patterns) == 0 {
		return nil, fmt.Errorf("rule %s: no patterns defined", raw.ID)
	}

	sev, err := types.ParseSeverity(raw.Severity)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", raw.ID, err)
	}

	var mode MatchMode
	switch strings.ToLower(raw.MatchMode) {
	case "", "any":
		mode = MatchAny
	case "all":
		mode = MatchAll
	default:
		return nil, fmt.Errorf("rule %s: unknown match_mode %q", raw.ID, raw.MatchMode)
	}

	for _, g := range raw.Targets {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("rule %s: invalid target glob %q", raw.ID, g)
		}
	}

	compiled := &CompiledRule{
		ID:          raw.ID,
		Plugin:      raw.Plugin,
		Name:        raw.Name,
		Description: raw.Description,
		Severity:    sev,
		Targets:     raw.Targets,
		MatchMode:   mode,
		Examples:    raw.Examples,
	}

	for i, p := range raw.Patterns {
		cp, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("rule %s pattern %d: %w", raw.ID, i, err)
		}
		compiled.Patterns = append(compiled.Patterns, cp)
	}

	for i, p := range raw.ExcludePatterns {
		cp, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("rule %s exclude_pattern %d: %w", raw.ID, i, err)
		}
		compiled.ExcludePatterns = append(compiled.ExcludePatterns, cp)
	}

	return compiled, nil
}

func compilePattern(p RawPattern) (CompiledPattern, error) {
	cp := CompiledPattern{Type: p.Type, Value: p.Value}
	switch p.Type {
	case PatternRegex:
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return cp, fmt.Errorf("invalid regex: %w", err)
		}
		cp.Regex = re
	case PatternContains:
		if p.Value == "" {
			return cp, fmt.Errorf("empty contains pattern")
		}
		cp.Value = strings.ToLower(p.Value)
	default:
		return cp, fmt.Errorf("unknown type %q", p.Type)
	}
	return cp, nil
}

// CompileAll compiles a slice of raw rules, returning compiled rules and any errors.
func CompileAll(raws []RawRule) ([]*CompiledRule, []error) {
	var rules []*CompiledRule
	var errs []error
	for _, raw := range raws {
		cr, err := Compile(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, cr)
	}
	return rules, errs
}
