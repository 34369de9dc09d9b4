// Package analysis defines the collaborator interfaces driven by the runner:
// a Parser that extracts declarations during the parse phase and Analyzers
// that raise issues once the symbol table is frozen.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/garagon/sifter/internal/config"
	"github.com/garagon/sifter/internal/symbols"
	"github.com/garagon/sifter/internal/types"
)

// Source is a file loaded for parsing or analysis.
type Source struct {
	Path    string // absolute or root-joined path on disk
	RelPath string // project-relative slash path, used in issues
	Content []byte
}

// NewSource returns an unloaded Source for a resolved file below root.
func NewSource(root string, f types.ResolvedFile) *Source {
	p := filepath.FromSlash(f.Path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return &Source{Path: p, RelPath: f.Path}
}

// Load reads the file content into memory.
func (s *Source) Load() error {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return err
	}
	s.Content = data
	return nil
}

// Lines returns the content split into lines.
func (s *Source) Lines() []string {
	return strings.Split(string(s.Content), "\n")
}

// Hash returns the hex SHA-256 of the content.
func (s *Source) Hash() string {
	sum := sha256.Sum256(s.Content)
	return hex.EncodeToString(sum[:])
}

// Parser extracts declarations from a source during the parse phase.
type Parser interface {
	Parse(ctx context.Context, src *Source) ([]symbols.Declaration, error)
}

// Analyzer raises issues for a source against the frozen symbol table.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, src *Source, table *symbols.Table) ([]types.Issue, error)
}

// Options carries settings the resolver passes through without
// interpreting them.
type Options struct {
	Toggles            map[string]bool
	RunkitSuperglobals []string
	GlobalsTypeMap     map[string]string
}

// OptionsFromConfig copies the pass-through settings of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Toggles:            maps.Clone(cfg.Toggles),
		RunkitSuperglobals: append([]string(nil), cfg.RunkitSuperglobals...),
		GlobalsTypeMap:     maps.Clone(cfg.GlobalsTypeMap),
	}
}

// Enabled reports whether the named toggle is on.
func (o Options) Enabled(name string) bool {
	return o.Toggles[name]
}

// Issue builds an issue located in src.
func Issue(src *Source, category string, sev types.Severity, line int, msg string) types.Issue {
	return types.Issue{
		Category: category,
		Severity: sev,
		File:     src.RelPath,
		Line:     line,
		Message:  msg,
	}
}
