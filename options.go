package sifter

import (
	"log/slog"
)

// options holds the resolved settings for an operation.
type options struct {
	configFile   string
	environ      func() []string
	overrides    []Overrides
	changedOnly  bool
	cachePath    string
	baselinePath string
	logger       *slog.Logger
	progress     ProgressFunc
}

// Option configures an operation.
type Option func(*options)

// WithConfigFile uses path as the project configuration file instead of
// looking up .sifter.yml, .sifter.yaml or .sifter.json in the root.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// WithEnvironment reads SIFTER_* variables from environ (usually
// os.Environ) as a layer above the project file.
func WithEnvironment(environ func() []string) Option {
	return func(o *options) {
		o.environ = environ
	}
}

// WithOverrides adds a configuration layer above the project file and the
// environment. Later layers win.
func WithOverrides(ov Overrides) Option {
	return func(o *options) {
		o.overrides = append(o.overrides, ov)
	}
}

// WithProcesses sets the number of shards.
func WithProcesses(n int) Option {
	return WithOverrides(Overrides{Processes: &n})
}

// WithMinimumSeverity sets the minimum severity of reported issues.
func WithMinimumSeverity(sev Severity) Option {
	return WithOverrides(Overrides{MinimumSeverity: &sev})
}

// WithChangedOnly analyzes only files changed in git; other files are
// parsed for declarations.
func WithChangedOnly(on bool) Option {
	return func(o *options) {
		o.changedOnly = on
	}
}

// WithCache enables the declaration cache at path (relative to the root
// unless absolute).
func WithCache(path string) Option {
	return func(o *options) {
		o.cachePath = path
	}
}

// WithBaseline suppresses the (file, category) pairs recorded in the
// baseline at path (relative to the root unless absolute).
func WithBaseline(path string) Option {
	return func(o *options) {
		o.baselinePath = path
	}
}

// WithLogger sets the logger for operator warnings. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgress sets a progress callback, called from worker goroutines.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

func applyOpts(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
