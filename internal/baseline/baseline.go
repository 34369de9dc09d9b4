// Package baseline records the issues a project has accepted so later runs
// only report new ones. A baseline maps each file to the issue categories
// suppressed in it.
package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/garagon/sifter/internal/types"
)

// DefaultPath is the baseline location relative to the project root.
const DefaultPath = ".sifter/baseline.json"

const version = 1

// Baseline is immutable once built and safe for concurrent use.
type Baseline struct {
	set map[string]map[string]struct{}
}

type fileFormat struct {
	Version          int                 `json:"version"`
	FileSuppressions map[string][]string `json:"file_suppressions"`
}

// FromIssues builds a baseline covering every (file, category) pair of issues.
func FromIssues(issues []types.Issue) *Baseline {
	b := &Baseline{set: make(map[string]map[string]struct{})}
	for _, i := range issues {
		cats, ok := b.set[i.File]
		if !ok {
			cats = make(map[string]struct{})
			b.set[i.File] = cats
		}
		cats[i.Category] = struct{}{}
	}
	return b
}

// Load reads a baseline file. Symlinks are rejected.
func Load(path string) (*Baseline, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("baseline file is a symlink (rejected): %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if f.Version != version {
		return nil, fmt.Errorf("baseline %s: unsupported version %d", path, f.Version)
	}
	b := &Baseline{set: make(map[string]map[string]struct{}, len(f.FileSuppressions))}
	for file, cats := range f.FileSuppressions {
		s := make(map[string]struct{}, len(cats))
		for _, c := range cats {
			s[c] = struct{}{}
		}
		b.set[file] = s
	}
	return b, nil
}

// Save writes the baseline, creating parent directories with 0o700 and the
// file with 0o600. Output is stable: files and categories are sorted.
func (b *Baseline) Save(path string) error {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("baseline file is a symlink (rejected): %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f := fileFormat{Version: version, FileSuppressions: make(map[string][]string, len(b.set))}
	for file, cats := range b.set {
		list := make([]string, 0, len(cats))
		for c := range cats {
			list = append(list, c)
		}
		sort.Strings(list)
		f.FileSuppressions[file] = list
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// Suppresses reports whether the issue's category is recorded for its file.
func (b *Baseline) Suppresses(issue types.Issue) bool {
	if b == nil {
		return false
	}
	_, ok := b.set[issue.File][issue.Category]
	return ok
}

// Len returns the number of suppressed (file, category) pairs.
func (b *Baseline) Len() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, cats := range b.set {
		n += len(cats)
	}
	return n
}
