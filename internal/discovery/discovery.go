// Package discovery resolves the configured directory and file lists into the
// ordered, deduplicated set of files a run parses and analyzes.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/garagon/sifter/internal/config"
	"github.com/garagon/sifter/internal/types"
)

// IgnoreFileName is the gitignore-style file read from the project root.
const IgnoreFileName = ".sifterignore"

var skipDirs = map[string]struct{}{
	".git":    {},
	".hg":     {},
	".svn":    {},
	".sifter": {},
}

// Spec holds the inputs of Resolve.
type Spec struct {
	DirectoryList                []string
	ExcludeAnalysisDirectoryList []string
	ExcludeFileList              []string
	ExcludeFileRegex             string
	FileList                     []string
	AnalyzedFileExtensions       []string
	// ChangedOnly downgrades files without uncommitted git changes to
	// parse-only. Explicit file_list entries are never downgraded.
	ChangedOnly bool
}

// SpecFromConfig extracts the discovery inputs from a resolved configuration.
func SpecFromConfig(cfg config.Config) Spec {
	return Spec{
		DirectoryList:                cfg.DirectoryList,
		ExcludeAnalysisDirectoryList: cfg.ExcludeAnalysisDirectoryList,
		ExcludeFileList:              cfg.ExcludeFileList,
		ExcludeFileRegex:             cfg.ExcludeFileRegex,
		FileList:                     cfg.FileList,
		AnalyzedFileExtensions:       cfg.AnalyzedFileExtensions,
	}
}

// SkipDir reports whether a directory with the given base name is never
// descended into.
func SkipDir(name string) bool {
	_, ok := skipDirs[name]
	return ok
}

type matcher struct {
	root       string
	extensions map[string]struct{}
	excluded   map[string]struct{}
	globs      []string
	regex      *regexp.Regexp
	analysis   []string
	explicit   map[string]struct{}
	ignore     *ignore.GitIgnore
}

// Resolve walks every directory of spec.DirectoryList below root (in listed
// order, lexicographic within a directory) and returns the files to process.
//
// A path appears at most once. Files under an exclude-analysis directory are
// parse-only unless some other rule grants analysis; explicit file_list
// entries always get analysis. Entries of exclude_file_list, glob or exact,
// and paths matching exclude_file_regex are dropped whatever else matched
// them. A missing directory or explicit file is a *config.Error.
func Resolve(root string, spec Spec) ([]types.ResolvedFile, error) {
	m, err := newMatcher(root, spec)
	if err != nil {
		return nil, err
	}

	var files []types.ResolvedFile
	index := make(map[string]int)
	add := func(rel string, mode types.Mode) {
		if i, ok := index[rel]; ok {
			if mode == types.ModeParseAndAnalyze {
				files[i].Mode = mode
			}
			return
		}
		index[rel] = len(files)
		files = append(files, types.ResolvedFile{Path: rel, Mode: mode})
	}

	for _, dir := range spec.DirectoryList {
		if err := m.walk(dir, add); err != nil {
			return nil, err
		}
	}

	for _, entry := range spec.FileList {
		rel := m.normalize(entry)
		if m.isExcluded(rel) {
			continue
		}
		info, err := os.Stat(m.abs(rel))
		if err != nil {
			return nil, &config.Error{Key: config.KeyFileList, Source: entry, Err: err}
		}
		if info.IsDir() {
			return nil, &config.Error{Key: config.KeyFileList, Source: entry, Err: errors.New("is a directory")}
		}
		add(rel, types.ModeParseAndAnalyze)
	}

	if spec.ChangedOnly {
		changed, inRepo, err := GitChangedFiles(m.root)
		if err != nil {
			return nil, err
		}
		if inRepo {
			downgradeUnchanged(files, changed, m.explicit)
		}
	}
	return files, nil
}

func newMatcher(root string, spec Spec) (*matcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	m := &matcher{
		root:       absRoot,
		extensions: make(map[string]struct{}, len(spec.AnalyzedFileExtensions)),
		excluded:   make(map[string]struct{}),
		explicit:   make(map[string]struct{}, len(spec.FileList)),
	}
	for _, ext := range spec.AnalyzedFileExtensions {
		m.extensions[normalizeExt(ext)] = struct{}{}
	}
	for _, entry := range spec.ExcludeFileList {
		rel := m.normalize(entry)
		if isGlob(rel) {
			if !doublestar.ValidatePattern(rel) {
				return nil, &config.Error{Key: config.KeyExcludeFileList, Source: entry, Err: doublestar.ErrBadPattern}
			}
			m.globs = append(m.globs, rel)
			continue
		}
		m.excluded[rel] = struct{}{}
	}
	if spec.ExcludeFileRegex != "" {
		re, err := regexp.Compile(spec.ExcludeFileRegex)
		if err != nil {
			return nil, &config.Error{Key: config.KeyExcludeFileRegex, Err: err}
		}
		m.regex = re
	}
	for _, dir := range spec.ExcludeAnalysisDirectoryList {
		m.analysis = append(m.analysis, m.normalize(dir))
	}
	for _, entry := range spec.FileList {
		m.explicit[m.normalize(entry)] = struct{}{}
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(absRoot, IgnoreFileName)); err == nil {
		m.ignore = gi
	}
	return m, nil
}

func (m *matcher) walk(dir string, add func(string, types.Mode)) error {
	start := m.abs(m.normalize(dir))
	info, err := os.Stat(start)
	if err != nil {
		return &config.Error{Key: config.KeyDirectoryList, Source: dir, Err: err}
	}
	if !info.IsDir() {
		return &config.Error{Key: config.KeyDirectoryList, Source: dir, Err: errors.New("not a directory")}
	}

	return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if p != start && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel := m.rel(p)
		_, explicit := m.explicit[rel]
		if !explicit {
			if !m.hasExtension(rel) {
				return nil
			}
			if m.ignore != nil && m.ignore.MatchesPath(rel) {
				return nil
			}
		}
		if m.isExcluded(rel) {
			return nil
		}
		if explicit || !m.underAnalysisExclusion(rel) {
			add(rel, types.ModeParseAndAnalyze)
		} else {
			add(rel, types.ModeParseOnly)
		}
		return nil
	})
}

func (m *matcher) hasExtension(rel string) bool {
	_, ok := m.extensions[normalizeExt(path.Ext(rel))]
	return ok
}

func (m *matcher) isExcluded(rel string) bool {
	if _, ok := m.excluded[rel]; ok {
		return true
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return m.regex != nil && m.regex.MatchString(rel)
}

func (m *matcher) underAnalysisExclusion(rel string) bool {
	for _, dir := range m.analysis {
		if underDir(rel, dir) {
			return true
		}
	}
	return false
}

// normalize turns a configured path into a cleaned slash path relative to
// the root when it lies below it.
func (m *matcher) normalize(p string) string {
	if filepath.IsAbs(p) {
		return m.rel(p)
	}
	return path.Clean(filepath.ToSlash(p))
}

func (m *matcher) rel(p string) string {
	r, err := filepath.Rel(m.root, p)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p))
	}
	return filepath.ToSlash(r)
}

func (m *matcher) abs(rel string) string {
	if path.IsAbs(rel) {
		return filepath.FromSlash(rel)
	}
	return filepath.Join(m.root, filepath.FromSlash(rel))
}

// underDir matches whole path segments: "vendor" covers "vendor/a.php" but
// not "vendorx/a.php". "." covers everything.
func underDir(rel, dir string) bool {
	if dir == "." || dir == "" {
		return true
	}
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func downgradeUnchanged(files []types.ResolvedFile, changed []string, explicit map[string]struct{}) {
	set := make(map[string]struct{}, len(changed))
	for _, c := range changed {
		set[path.Clean(c)] = struct{}{}
	}
	for i := range files {
		if _, ok := explicit[files[i].Path]; ok {
			continue
		}
		if _, ok := set[files[i].Path]; !ok {
			files[i].Mode = types.ModeParseOnly
		}
	}
}
