// Package pattern runs plugin rules over source text: regex and contains
// matching with per-line exclude patterns.
package pattern

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/garagon/sifter/internal/analysis"
	"github.com/garagon/sifter/internal/rules"
	"github.com/garagon/sifter/internal/symbols"
	"github.com/garagon/sifter/internal/types"
)

const maxMatchedText = 80

// Matcher implements analysis.Analyzer using compiled plugin rules.
type Matcher struct {
	rules []*rules.CompiledRule
}

// NewMatcher creates a new pattern matcher with the given compiled rules.
func NewMatcher(compiled []*rules.CompiledRule) *Matcher {
	return &Matcher{rules: compiled}
}

func (m *Matcher) Name() string { return "pattern" }

// Analyze ignores the symbol table; rules only see the file text.
func (m *Matcher) Analyze(ctx context.Context, src *analysis.Source, _ *symbols.Table) ([]types.Issue, error) {
	var issues []types.Issue
	content := string(src.Content)
	lines := src.Lines()

	for _, rule := range m.rules {
		if ctx.Err() != nil {
			return issues, ctx.Err()
		}
		if !matchesTarget(rule.Targets, src.RelPath) {
			continue
		}

		switch rule.MatchMode {
		case rules.MatchAny:
			issues = append(issues, m.matchAny(rule, content, lines, src)...)
		case rules.MatchAll:
			issues = append(issues, m.matchAll(rule, content, lines, src)...)
		}
	}
	return issues, nil
}

func (m *Matcher) matchAny(rule *rules.CompiledRule, content string, lines []string, src *analysis.Source) []types.Issue {
	var issues []types.Issue
	reported := make(map[int]bool)
	for _, pat := range rule.Patterns {
		for _, hit := range matchPattern(pat, content) {
			if reported[hit.line] || isExcluded(rule.ExcludePatterns, lines, hit.line) {
				continue
			}
			reported[hit.line] = true
			issues = append(issues, analysis.Issue(src, rule.ID, rule.Severity, hit.line, message(rule, hit.text)))
		}
	}
	return issues
}

func (m *Matcher) matchAll(rule *rules.CompiledRule, content string, lines []string, src *analysis.Source) []types.Issue {
	var first []matchHit
	for i, pat := range rule.Patterns {
		hits := matchPattern(pat, content)
		if len(hits) == 0 {
			return nil
		}
		if i == 0 {
			first = hits
		}
	}
	// The issue is located at the first hit of the first pattern.
	hit := first[0]
	if isExcluded(rule.ExcludePatterns, lines, hit.line) {
		return nil
	}
	return []types.Issue{analysis.Issue(src, rule.ID, rule.Severity, hit.line, message(rule, hit.text))}
}

func message(rule *rules.CompiledRule, matched string) string {
	matched = strings.TrimSpace(matched)
	if len(matched) > maxMatchedText {
		matched = matched[:maxMatchedText] + "..."
	}
	desc := rule.Description
	if desc == "" {
		desc = rule.Name
	}
	return fmt.Sprintf("%s (%s)", desc, matched)
}

type matchHit struct {
	line int
	text string
}

// isExcluded reports whether the matched line matches an exclude pattern.
func isExcluded(excludes []rules.CompiledPattern, lines []string, lineNum int) bool {
	if len(excludes) == 0 || lineNum < 1 || lineNum > len(lines) {
		return false
	}
	line := lines[lineNum-1]
	for _, ep := range excludes {
		switch ep.Type {
		case rules.PatternRegex:
			if ep.Regex != nil && ep.Regex.MatchString(line) {
				return true
			}
		case rules.PatternContains:
			if strings.Contains(asciiLower(line), ep.Value) {
				return true
			}
		}
	}
	return false
}

func matchPattern(pat rules.CompiledPattern, content string) []matchHit {
	var hits []matchHit
	switch pat.Type {
	case rules.PatternRegex:
		if pat.Regex == nil {
			return nil
		}
		for _, loc := range pat.Regex.FindAllStringIndex(content, -1) {
			// Skip a leading newline consumed by a (?:^|[^...]) prefix.
			start := loc[0]
			for start < loc[1] && content[start] == '\n' {
				start++
			}
			hits = append(hits, matchHit{line: lineNumberAtOffset(content, start), text: content[start:loc[1]]})
		}
	case rules.PatternContains:
		lower := asciiLower(content)
		target := pat.Value // already lowercased during compilation
		idx := 0
		for {
			pos := strings.Index(lower[idx:], target)
			if pos == -1 {
				break
			}
			absPos := idx + pos
			hits = append(hits, matchHit{
				line: lineNumberAtOffset(content, absPos),
				text: content[absPos : absPos+len(target)],
			})
			idx = absPos + len(target)
		}
	}
	return hits
}

// asciiLower folds A-Z only, so byte offsets into the result are valid in s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func lineNumberAtOffset(content string, offset int) int {
	return strings.Count(content[:min(offset, len(content))], "\n") + 1
}

func matchesTarget(globs []string, relPath string) bool {
	if len(globs) == 0 {
		return true
	}
	base := path.Base(relPath)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}
