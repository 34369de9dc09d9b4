package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/garagon/sifter/internal/types"
)

// EnvPrefix is the prefix of environment variables read by FromEnv.
const EnvPrefix = "SIFTER_"

// ProjectFiles are the file names looked up by LoadProject, in priority order.
var ProjectFiles = []string{".sifter.yml", ".sifter.yaml", ".sifter.json"}

const maxConfigSize = 1 << 20

// LoadProject reads the project configuration layer. When explicit is
// non-empty that file must exist; otherwise the first of ProjectFiles found
// in dir is used. If no file is found it returns a zero Overrides and an
// empty path (not an error).
func LoadProject(dir, explicit string) (Overrides, string, error) {
	if explicit != "" {
		ov, err := LoadFile(explicit)
		return ov, explicit, err
	}
	for _, name := range ProjectFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Overrides{}, "", &Error{Source: path, Err: err}
		}
		ov, err := LoadFile(path)
		return ov, path, err
	}
	return Overrides{}, "", nil
}

// LoadFile parses a single configuration file. YAML files are decoded with
// yaml.v3, JSON files through koanf. Unknown keys are rejected.
func LoadFile(path string) (Overrides, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Overrides{}, &Error{Source: path, Err: err}
	}
	if info.Size() > maxConfigSize {
		return Overrides{}, &Error{Source: path, Err: fmt.Errorf("file too large (%d bytes, max 1 MB)", info.Size())}
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
			return Overrides{}, &Error{Source: path, Err: fmt.Errorf("parsing: %w", err)}
		}
		raw = k.Raw()
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Overrides{}, &Error{Source: path, Err: err}
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Overrides{}, &Error{Source: path, Err: fmt.Errorf("parsing: %w", err)}
		}
	}
	return FromRaw(raw, path)
}

// FromEnv builds the environment layer from SIFTER_* variables, e.g.
// SIFTER_PROCESSES=4 or SIFTER_SUPPRESS_ISSUE_TYPES=PhanUndeclaredMethod,PhanNoopArray.
// environ is usually os.Environ.
func FromEnv(environ func() []string) (Overrides, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
		EnvironFunc: environ,
	}), nil)
	if err != nil {
		return Overrides{}, &Error{Source: "environment", Err: err}
	}
	return FromRaw(k.Raw(), "environment")
}

// FromMap builds a layer from an in-memory key/value map, such as the set of
// command-line flags the user changed.
func FromMap(m map[string]any, source string) (Overrides, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return Overrides{}, &Error{Source: source, Err: err}
	}
	return FromRaw(k.Raw(), source)
}

// FromRaw converts a decoded key/value tree into an Overrides layer,
// rejecting unknown keys and out-of-range values.
func FromRaw(raw map[string]any, source string) (Overrides, error) {
	var ov Overrides
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := raw[key]
		var err error
		switch key {
		case KeyDirectoryList:
			ov.DirectoryList, err = stringList(val)
		case KeyExcludeAnalysisDirectoryList:
			ov.ExcludeAnalysisDirectoryList, err = stringList(val)
		case KeyExcludeFileList:
			ov.ExcludeFileList, err = stringList(val)
		case KeyFileList:
			ov.FileList, err = stringList(val)
		case KeyAnalyzedFileExtensions:
			ov.AnalyzedFileExtensions, err = stringList(val)
		case KeySuppressIssueTypes:
			ov.SuppressIssueTypes, err = stringList(val)
		case KeyWhitelistIssueTypes:
			ov.WhitelistIssueTypes, err = stringList(val)
		case KeyPlugins:
			ov.Plugins, err = stringList(val)
		case KeyRunkitSuperglobals:
			ov.RunkitSuperglobals, err = stringList(val)
		case KeyExcludeFileRegex:
			var s string
			s, err = scalarString(val)
			ov.ExcludeFileRegex = &s
		case KeyMinimumSeverity:
			var s string
			if s, err = scalarString(val); err == nil {
				var sev types.Severity
				if sev, err = types.ParseSeverity(s); err == nil {
					ov.MinimumSeverity = &sev
				}
			}
		case KeyProcesses:
			var n int
			if n, err = integer(val); err == nil {
				ov.Processes = &n
			}
		case KeyGlobalsTypeMap:
			ov.GlobalsTypeMap, err = stringMap(val)
		default:
			if !slices.Contains(ToggleKeys, key) {
				return Overrides{}, &Error{Key: key, Source: source, Err: fmt.Errorf("unknown option")}
			}
			var b bool
			if b, err = boolean(val); err == nil {
				if ov.Toggles == nil {
					ov.Toggles = make(map[string]bool)
				}
				ov.Toggles[key] = b
			}
		}
		if err != nil {
			return Overrides{}, &Error{Key: key, Source: source, Err: err}
		}
	}
	return ov, nil
}

// Map renders the configuration with its external key names. Toggles are
// flattened to top-level keys, matching the file format.
func (c Config) Map() map[string]any {
	m := map[string]any{
		KeyDirectoryList:                orEmpty(c.DirectoryList),
		KeyExcludeAnalysisDirectoryList: orEmpty(c.ExcludeAnalysisDirectoryList),
		KeyExcludeFileList:              orEmpty(c.ExcludeFileList),
		KeyFileList:                     orEmpty(c.FileList),
		KeyAnalyzedFileExtensions:       orEmpty(c.AnalyzedFileExtensions),
		KeySuppressIssueTypes:           orEmpty(c.SuppressIssueTypes),
		KeyWhitelistIssueTypes:          orEmpty(c.WhitelistIssueTypes),
		KeyMinimumSeverity:              strings.ToLower(c.MinimumSeverity.String()),
		KeyProcesses:                    c.Processes,
		KeyPlugins:                      orEmpty(c.Plugins),
	}
	if c.ExcludeFileRegex != "" {
		m[KeyExcludeFileRegex] = c.ExcludeFileRegex
	}
	if len(c.RunkitSuperglobals) > 0 {
		m[KeyRunkitSuperglobals] = c.RunkitSuperglobals
	}
	if len(c.GlobalsTypeMap) > 0 {
		m[KeyGlobalsTypeMap] = c.GlobalsTypeMap
	}
	for k, v := range c.Toggles {
		m[k] = v
	}
	return m
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func stringList(v any) (*[]string, error) {
	var out []string
	switch t := v.(type) {
	case nil:
		out = []string{}
	case string:
		out = splitList(t)
	case []string:
		out = slices.Clone(t)
	case []any:
		out = make([]string, 0, len(t))
		for _, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
	return &out, nil
}

func splitList(s string) []string {
	out := []string{}
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

func integer(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("expected an integer, got %v", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func boolean(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("expected a boolean, got %q", t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}

func stringMap(v any) (map[string]string, error) {
	out := map[string]string{}
	switch t := v.(type) {
	case nil:
	case map[string]string:
		for k, s := range t {
			out[k] = s
		}
	case map[string]any:
		for k, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = s
		}
	default:
		return nil, fmt.Errorf("expected a mapping of strings, got %T", v)
	}
	return out, nil
}
