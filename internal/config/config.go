// Package config resolves the effective analysis configuration from layered
// sources: built-in defaults, a project file (.sifter.yml / .sifter.json),
// SIFTER_* environment variables and command-line flags.
//
// Every layer is a partial Overrides value. Later layers win field by field,
// and list-valued fields are replaced rather than appended. The resolved
// Config is validated once and treated as read-only afterwards.
package config

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/garagon/sifter/internal/types"
)

// Recognized configuration keys.
const (
	KeyDirectoryList                = "directory_list"
	KeyExcludeAnalysisDirectoryList = "exclude_analysis_directory_list"
	KeyExcludeFileList              = "exclude_file_list"
	KeyExcludeFileRegex             = "exclude_file_regex"
	KeyFileList                     = "file_list"
	KeyAnalyzedFileExtensions       = "analyzed_file_extensions"
	KeySuppressIssueTypes           = "suppress_issue_types"
	KeyWhitelistIssueTypes          = "whitelist_issue_types"
	KeyMinimumSeverity              = "minimum_severity"
	KeyProcesses                    = "processes"
	KeyPlugins                      = "plugins"
	KeyRunkitSuperglobals           = "runkit_superglobals"
	KeyGlobalsTypeMap               = "globals_type_map"
)

// ToggleKeys are boolean feature switches that the resolver does not
// interpret. They are handed to the analysis collaborator unchanged.
var ToggleKeys = []string{
	"allow_missing_properties",
	"analyze_signature_compatibility",
	"backward_compatibility_checks",
	"dead_code_detection",
	"generic_types_enabled",
	"ignore_undeclared_variables_in_global_scope",
	"null_casts_as_any_type",
	"quick_mode",
	"scalar_implicit_cast",
	"should_visit_all_nodes",
	"simplify_ast",
}

// Config is the effective configuration for one run.
type Config struct {
	DirectoryList                []string
	ExcludeAnalysisDirectoryList []string
	ExcludeFileList              []string
	ExcludeFileRegex             string
	FileList                     []string
	AnalyzedFileExtensions       []string
	SuppressIssueTypes           []string
	WhitelistIssueTypes          []string
	MinimumSeverity              types.Severity
	Processes                    int
	Plugins                      []string
	RunkitSuperglobals           []string
	GlobalsTypeMap               map[string]string
	Toggles                      map[string]bool
}

// Overrides is a partial Config. A nil field is not set by the layer.
type Overrides struct {
	DirectoryList                *[]string
	ExcludeAnalysisDirectoryList *[]string
	ExcludeFileList              *[]string
	ExcludeFileRegex             *string
	FileList                     *[]string
	AnalyzedFileExtensions       *[]string
	SuppressIssueTypes           *[]string
	WhitelistIssueTypes          *[]string
	MinimumSeverity              *types.Severity
	Processes                    *int
	Plugins                      *[]string
	RunkitSuperglobals           *[]string
	GlobalsTypeMap               map[string]string
	// Toggles are applied key by key; each toggle is its own field.
	Toggles map[string]bool
}

// Error is a fatal configuration problem. It is raised before any work
// starts and is never retried.
type Error struct {
	Key    string
	Source string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.Source != "":
		return fmt.Sprintf("config %s: %s: %v", e.Source, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
	case e.Source != "":
		return fmt.Sprintf("config %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DirectoryList:          []string{"."},
		AnalyzedFileExtensions: []string{"php"},
		MinimumSeverity:        types.SeverityLow,
		Processes:              1,
	}
}

// Merge overlays the project layer and then the command-line layer on top
// of defaults.
func Merge(defaults Config, project, cli Overrides) (Config, error) {
	return Resolve(defaults, project, cli)
}

// Resolve applies layers in order on a copy of defaults and validates the
// result.
func Resolve(defaults Config, layers ...Overrides) (Config, error) {
	cfg := defaults.Clone()
	for _, l := range layers {
		l.apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that cannot be expressed in the type system.
func (c Config) Validate() error {
	if !c.MinimumSeverity.Valid() {
		return &Error{Key: KeyMinimumSeverity, Err: fmt.Errorf("must be LOW, NORMAL or CRITICAL, got %d", int(c.MinimumSeverity))}
	}
	if c.Processes < 1 {
		return &Error{Key: KeyProcesses, Err: fmt.Errorf("must be >= 1, got %d", c.Processes)}
	}
	if c.ExcludeFileRegex != "" {
		if _, err := regexp.Compile(c.ExcludeFileRegex); err != nil {
			return &Error{Key: KeyExcludeFileRegex, Err: err}
		}
	}
	for k := range c.Toggles {
		if !slices.Contains(ToggleKeys, k) {
			return &Error{Key: k, Err: fmt.Errorf("unknown toggle")}
		}
	}
	return nil
}

// Clone returns a deep copy. Nil slices and maps stay nil.
func (c Config) Clone() Config {
	out := c
	out.DirectoryList = slices.Clone(c.DirectoryList)
	out.ExcludeAnalysisDirectoryList = slices.Clone(c.ExcludeAnalysisDirectoryList)
	out.ExcludeFileList = slices.Clone(c.ExcludeFileList)
	out.FileList = slices.Clone(c.FileList)
	out.AnalyzedFileExtensions = slices.Clone(c.AnalyzedFileExtensions)
	out.SuppressIssueTypes = slices.Clone(c.SuppressIssueTypes)
	out.WhitelistIssueTypes = slices.Clone(c.WhitelistIssueTypes)
	out.Plugins = slices.Clone(c.Plugins)
	out.RunkitSuperglobals = slices.Clone(c.RunkitSuperglobals)
	out.GlobalsTypeMap = maps.Clone(c.GlobalsTypeMap)
	out.Toggles = maps.Clone(c.Toggles)
	return out
}

// Toggle returns the value of a pass-through toggle (false when unset).
func (c Config) Toggle(name string) bool {
	return c.Toggles[name]
}

func (o Overrides) apply(c *Config) {
	replace(&c.DirectoryList, o.DirectoryList)
	replace(&c.ExcludeAnalysisDirectoryList, o.ExcludeAnalysisDirectoryList)
	replace(&c.ExcludeFileList, o.ExcludeFileList)
	replace(&c.FileList, o.FileList)
	replace(&c.AnalyzedFileExtensions, o.AnalyzedFileExtensions)
	replace(&c.SuppressIssueTypes, o.SuppressIssueTypes)
	replace(&c.WhitelistIssueTypes, o.WhitelistIssueTypes)
	replace(&c.Plugins, o.Plugins)
	replace(&c.RunkitSuperglobals, o.RunkitSuperglobals)
	if o.ExcludeFileRegex != nil {
		c.ExcludeFileRegex = *o.ExcludeFileRegex
	}
	if o.MinimumSeverity != nil {
		c.MinimumSeverity = *o.MinimumSeverity
	}
	if o.Processes != nil {
		c.Processes = *o.Processes
	}
	if o.GlobalsTypeMap != nil {
		c.GlobalsTypeMap = maps.Clone(o.GlobalsTypeMap)
	}
	if len(o.Toggles) > 0 {
		if c.Toggles == nil {
			c.Toggles = make(map[string]bool, len(o.Toggles))
		}
		maps.Copy(c.Toggles, o.Toggles)
	}
}

func replace(dst *[]string, src *[]string) {
	if src == nil {
		return
	}
	v := slices.Clone(*src)
	if v == nil {
		v = []string{}
	}
	*dst = v
}

// IsZero reports whether the layer sets nothing.
func (o Overrides) IsZero() bool {
	return o.DirectoryList == nil && o.ExcludeAnalysisDirectoryList == nil &&
		o.ExcludeFileList == nil && o.ExcludeFileRegex == nil && o.FileList == nil &&
		o.AnalyzedFileExtensions == nil && o.SuppressIssueTypes == nil &&
		o.WhitelistIssueTypes == nil && o.MinimumSeverity == nil && o.Processes == nil &&
		o.Plugins == nil && o.RunkitSuperglobals == nil && o.GlobalsTypeMap == nil &&
		len(o.Toggles) == 0
}
