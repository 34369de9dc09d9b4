// Package filter decides which raised issues are reported.
//
// Checks run in a fixed order and the first match decides: a non-empty
// whitelist narrows the accepted categories, suppression then vetoes
// categories even when they are whitelisted, and the minimum severity is the
// final threshold. Every predicate here is pure and safe for concurrent use.
package filter

import (
	"github.com/garagon/sifter/internal/config"
	"github.com/garagon/sifter/internal/types"
)

// Set is a set of issue categories.
type Set map[string]struct{}

// NewSet builds a Set from a list of categories.
func NewSet(categories []string) Set {
	s := make(Set, len(categories))
	for _, c := range categories {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether category is a member.
func (s Set) Has(category string) bool {
	_, ok := s[category]
	return ok
}

// Accept reports whether issue is emitted under the given threshold,
// suppression list and whitelist.
func Accept(issue types.Issue, minimumSeverity types.Severity, suppress, whitelist Set) bool {
	if len(whitelist) > 0 && !whitelist.Has(issue.Category) {
		return false
	}
	if suppress.Has(issue.Category) {
		return false
	}
	return issue.Severity >= minimumSeverity
}

// Predicate is an additional veto applied after Accept.
type Predicate interface {
	Suppresses(issue types.Issue) bool
}

// Filter holds the precomputed sets of one run. It is immutable after New.
type Filter struct {
	minimum   types.Severity
	suppress  Set
	whitelist Set
	extra     []Predicate
}

// New builds a Filter from a resolved configuration. Extra predicates, such
// as a loaded baseline, veto issues that pass the configured checks.
func New(cfg config.Config, extra ...Predicate) *Filter {
	f := &Filter{
		minimum:   cfg.MinimumSeverity,
		suppress:  NewSet(cfg.SuppressIssueTypes),
		whitelist: NewSet(cfg.WhitelistIssueTypes),
	}
	for _, p := range extra {
		if p != nil {
			f.extra = append(f.extra, p)
		}
	}
	return f
}

// Accept applies the configured checks and then every extra predicate.
func (f *Filter) Accept(issue types.Issue) bool {
	if !Accept(issue, f.minimum, f.suppress, f.whitelist) {
		return false
	}
	for _, p := range f.extra {
		if p.Suppresses(issue) {
			return false
		}
	}
	return true
}

// Apply returns the accepted issues in their original order.
func (f *Filter) Apply(issues []types.Issue) []types.Issue {
	var out []types.Issue
	for _, i := range issues {
		if f.Accept(i) {
			out = append(out, i)
		}
	}
	return out
}
