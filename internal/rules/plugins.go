package rules

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/garagon/sifter/internal/config"
	"github.com/garagon/sifter/internal/rules/builtin"
)

// Builtin returns the embedded plugin rules grouped by plugin name.
func Builtin() (map[string][]RawRule, error) {
	raws, err := LoadFromFS(builtin.FS())
	if err != nil {
		return nil, fmt.Errorf("loading built-in plugins: %w", err)
	}
	out := make(map[string][]RawRule)
	for _, r := range raws {
		out[r.Plugin] = append(out[r.Plugin], r)
	}
	return out, nil
}

// BuiltinNames returns the sorted names of the embedded plugins.
func BuiltinNames() ([]string, error) {
	byName, err := Builtin()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Load resolves plugins entries to compiled rules. An entry is either the
// name of a built-in plugin, a path ending in <Name>.php whose base name is
// a built-in plugin, or a YAML file relative to root. Rule IDs must be
// unique across the loaded plugins.
func Load(root string, entries []string) ([]*CompiledRule, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	byName, err := Builtin()
	if err != nil {
		return nil, err
	}

	var raws []RawRule
	loaded := make(map[string]bool)
	for _, entry := range entries {
		name := builtinName(entry)
		if loaded[name] {
			continue
		}
		loaded[name] = true

		if rs, ok := byName[name]; ok {
			raws = append(raws, rs...)
			continue
		}
		if !isYAML(entry) {
			return nil, &config.Error{Key: config.KeyPlugins, Source: entry, Err: fmt.Errorf("unknown plugin")}
		}
		p := filepath.FromSlash(entry)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		rs, err := LoadFile(p)
		if err != nil {
			return nil, &config.Error{Key: config.KeyPlugins, Source: entry, Err: err}
		}
		for i := range rs {
			if rs[i].Plugin == "" {
				rs[i].Plugin = strings.TrimSuffix(path.Base(filepath.ToSlash(entry)), path.Ext(entry))
			}
		}
		raws = append(raws, rs...)
	}

	compiled, errs := CompileAll(raws)
	if len(errs) > 0 {
		return nil, &config.Error{Key: config.KeyPlugins, Err: errs[0]}
	}
	seen := make(map[string]string, len(compiled))
	for _, r := range compiled {
		if prev, ok := seen[r.ID]; ok {
			return nil, &config.Error{Key: config.KeyPlugins, Err: fmt.Errorf("rule %s defined by both %s and %s", r.ID, prev, r.Plugin)}
		}
		seen[r.ID] = r.Plugin
	}
	return compiled, nil
}

// builtinName maps ".phan/plugins/DollarDollarPlugin.php" style entries to
// the plugin name.
func builtinName(entry string) string {
	if strings.HasSuffix(strings.ToLower(entry), ".php") {
		base := path.Base(filepath.ToSlash(entry))
		return base[:len(base)-len(".php")]
	}
	return entry
}
