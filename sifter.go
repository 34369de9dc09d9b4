// Package sifter provides a public API for configuration-driven static
// analysis of large PHP trees: layered configuration, file selection,
// issue filtering and sharded two-phase analysis.
//
// This is the library entry point. For the CLI tool, see cmd/sifter/.
package sifter

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/garagon/sifter/internal/analysis"
	"github.com/garagon/sifter/internal/analysis/pattern"
	"github.com/garagon/sifter/internal/analysis/php"
	"github.com/garagon/sifter/internal/baseline"
	"github.com/garagon/sifter/internal/cache"
	"github.com/garagon/sifter/internal/config"
	"github.com/garagon/sifter/internal/discovery"
	"github.com/garagon/sifter/internal/filter"
	"github.com/garagon/sifter/internal/rules"
	"github.com/garagon/sifter/internal/runner"
	"github.com/garagon/sifter/internal/types"
)

// Re-export core types so consumers don't need to import internal packages.
type (
	Severity     = types.Severity
	Issue        = types.Issue
	Report       = types.Report
	ShardFailure = types.ShardFailure
	ResolvedFile = types.ResolvedFile
	Config       = config.Config
	Overrides    = config.Overrides
	ConfigError  = config.Error
	ProgressFunc = runner.ProgressFunc
)

const (
	SeverityLow      = types.SeverityLow
	SeverityNormal   = types.SeverityNormal
	SeverityCritical = types.SeverityCritical
)

// PluginInfo provides summary metadata about a built-in plugin rule.
type PluginInfo struct {
	Plugin      string `json:"plugin"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// ResolveConfig builds the effective configuration for the project at root
// from defaults, the project file, the environment (WithEnvironment) and
// WithOverrides layers. It also returns the project file used, if any.
func ResolveConfig(root string, opts ...Option) (Config, string, error) {
	return resolveConfig(root, applyOpts(opts))
}

// ResolveFiles returns the files the configuration selects below root.
func ResolveFiles(root string, opts ...Option) ([]ResolvedFile, error) {
	o := applyOpts(opts)
	cfg, _, err := resolveConfig(root, o)
	if err != nil {
		return nil, err
	}
	return resolveFiles(root, cfg, o)
}

// Analyze resolves configuration and files for root and runs the parse and
// analyze phases. Shard failures are reported in Report.Failures, not as an
// error; configuration problems return a *ConfigError.
func Analyze(ctx context.Context, root string, opts ...Option) (*Report, error) {
	o := applyOpts(opts)
	cfg, _, err := resolveConfig(root, o)
	if err != nil {
		return nil, err
	}
	return analyze(ctx, root, cfg, o)
}

// AnalyzeConfig runs analysis with an already resolved configuration.
func AnalyzeConfig(ctx context.Context, root string, cfg Config, opts ...Option) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return analyze(ctx, root, cfg.Clone(), applyOpts(opts))
}

// ListPlugins returns the rules of every built-in plugin, sorted by plugin
// then rule ID.
func ListPlugins() ([]PluginInfo, error) {
	byName, err := rules.Builtin()
	if err != nil {
		return nil, err
	}
	var infos []PluginInfo
	for plugin, raws := range byName {
		for _, raw := range raws {
			compiled, err := rules.Compile(raw)
			if err != nil {
				return nil, fmt.Errorf("built-in plugin %s: %w", plugin, err)
			}
			infos = append(infos, PluginInfo{
				Plugin:      plugin,
				ID:          compiled.ID,
				Name:        compiled.Name,
				Severity:    compiled.Severity.String(),
				Description: compiled.Description,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Plugin != infos[j].Plugin {
			return infos[i].Plugin < infos[j].Plugin
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// SaveBaseline writes a baseline suppressing every issue of report.
func SaveBaseline(path string, report *Report) error {
	return baseline.FromIssues(report.Issues).Save(path)
}

// --- internal helpers ---

func resolveConfig(root string, o *options) (Config, string, error) {
	project, path, err := config.LoadProject(root, o.configFile)
	if err != nil {
		return Config{}, "", err
	}
	layers := []Overrides{project}
	if o.environ != nil {
		env, err := config.FromEnv(o.environ)
		if err != nil {
			return Config{}, "", err
		}
		layers = append(layers, env)
	}
	layers = append(layers, o.overrides...)
	cfg, err := config.Resolve(config.Defaults(), layers...)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

func resolveFiles(root string, cfg Config, o *options) ([]ResolvedFile, error) {
	spec := discovery.SpecFromConfig(cfg)
	spec.ChangedOnly = o.changedOnly
	return discovery.Resolve(root, spec)
}

func analyze(ctx context.Context, root string, cfg Config, o *options) (*Report, error) {
	files, err := resolveFiles(root, cfg, o)
	if err != nil {
		return nil, err
	}

	compiled, err := rules.Load(root, cfg.Plugins)
	if err != nil {
		return nil, err
	}

	var predicates []filter.Predicate
	if o.baselinePath != "" {
		b, err := baseline.Load(projectPath(root, o.baselinePath))
		if err != nil {
			return nil, &config.Error{Source: o.baselinePath, Err: fmt.Errorf("loading baseline: %w", err)}
		}
		predicates = append(predicates, b)
	}

	engine := php.New(analysis.OptionsFromConfig(cfg))
	r := runner.New(root, cfg.Processes)
	r.SetParser(engine)
	r.RegisterAnalyzer(engine)
	if len(compiled) > 0 {
		r.RegisterAnalyzer(pattern.NewMatcher(compiled))
	}
	r.SetFilter(filter.New(cfg, predicates...))
	r.SetLogger(o.logger)
	r.SetProgress(o.progress)

	if o.cachePath != "" {
		store, err := cache.Open(projectPath(root, o.cachePath))
		if err != nil {
			o.logger.Warn("declaration cache disabled", "error", err)
		} else {
			defer store.Close()
			r.SetCache(store)
		}
	}

	o.logger.Debug("starting analysis", "files", len(files), "processes", cfg.Processes, "plugins", len(compiled))
	return r.Run(ctx, files)
}

// projectPath resolves a path option relative to the project root.
func projectPath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
