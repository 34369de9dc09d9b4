// Package runner drives a two-phase analysis over partitioned shards: every
// shard parses its files, the declarations are merged into a frozen symbol
// table at the parse barrier, and only then are files analyzed.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/garagon/sifter/internal/analysis"
	"github.com/garagon/sifter/internal/cache"
	"github.com/garagon/sifter/internal/filter"
	"github.com/garagon/sifter/internal/symbols"
	"github.com/garagon/sifter/internal/types"
)

// ProgressFunc receives phase progress. It is called from worker goroutines.
type ProgressFunc func(phase string, done, total int)

// Runner orchestrates parse and analyze phases.
type Runner struct {
	root      string
	processes int
	parser    analysis.Parser
	analyzers []analysis.Analyzer
	filter    *filter.Filter
	cache     *cache.Store
	logger    *slog.Logger
	progress  ProgressFunc
}

// New creates a Runner for files relative to root. processes below 1 is
// treated as 1.
func New(root string, processes int) *Runner {
	return &Runner{
		root:      root,
		processes: max(processes, 1),
		logger:    slog.New(slog.DiscardHandler),
	}
}

// SetParser sets the collaborator that extracts declarations.
func (r *Runner) SetParser(p analysis.Parser) {
	r.parser = p
}

// RegisterAnalyzer adds an analyzer to the analyze phase.
func (r *Runner) RegisterAnalyzer(a analysis.Analyzer) {
	r.analyzers = append(r.analyzers, a)
}

// SetFilter sets the issue filter applied inside each worker. A nil filter
// accepts every issue.
func (r *Runner) SetFilter(f *filter.Filter) {
	r.filter = f
}

// SetCache enables the declaration cache.
func (r *Runner) SetCache(c *cache.Store) {
	r.cache = c
}

// SetLogger sets the logger for operator warnings.
func (r *Runner) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// SetProgress sets the progress callback.
func (r *Runner) SetProgress(fn ProgressFunc) {
	r.progress = fn
}

type parseResult struct {
	decls   []symbols.Declaration
	fresh   map[string][]symbols.Declaration
	sources []*analysis.Source
	parsed  int
	failure *types.ShardFailure
}

type analyzeResult struct {
	issues   []types.Issue
	analyzed int
	failure  *types.ShardFailure
}

// Run partitions files and executes both phases. The context is checked
// between phases only; a started shard runs to completion. Shard failures
// are recorded in the report and never returned as an error.
func (r *Runner) Run(ctx context.Context, files []types.ResolvedFile) (*types.Report, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shards := Partition(files, r.processes)
	report := &types.Report{
		RunID:  ulid.Make().String(),
		Shards: len(shards),
		Root:   r.root,
	}

	// Parse phase.
	parsed := make([]parseResult, len(shards))
	tick := r.counter(types.PhaseParse, len(files))
	var pg errgroup.Group
	pg.SetLimit(r.processes)
	for i, sh := range shards {
		pg.Go(func() error {
			parsed[i] = r.parseShard(ctx, sh, tick)
			return nil
		})
	}
	_ = pg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Barrier: merge sequentially, then freeze.
	builder := symbols.NewBuilder()
	fresh := make(map[string][]symbols.Declaration)
	for _, p := range parsed {
		if p.failure != nil {
			report.Failures = append(report.Failures, *p.failure)
			continue
		}
		builder.Add(p.decls...)
		maps.Copy(fresh, p.fresh)
		report.FilesParsed += p.parsed
	}
	table := builder.Freeze()
	r.logger.Debug("parse barrier reached", "files", report.FilesParsed, "declarations", table.Len())

	if r.cache != nil && len(fresh) > 0 {
		if err := r.cache.PutBatch(fresh); err != nil {
			r.logger.Warn("declaration cache write failed", "error", err)
		}
	}

	// Analyze phase.
	analyzed := make([]analyzeResult, len(shards))
	total := 0
	for _, p := range parsed {
		total += len(p.sources)
	}
	tick = r.counter(types.PhaseAnalyze, total)
	var ag errgroup.Group
	ag.SetLimit(r.processes)
	for i, sh := range shards {
		if parsed[i].failure != nil {
			continue
		}
		ag.Go(func() error {
			analyzed[i] = r.analyzeShard(ctx, sh.ID, parsed[i].sources, table, tick)
			return nil
		})
	}
	_ = ag.Wait()

	// Merge.
	var issues []types.Issue
	for _, a := range analyzed {
		if a.failure != nil {
			report.Failures = append(report.Failures, *a.failure)
			continue
		}
		issues = append(issues, a.issues...)
		report.FilesAnalyzed += a.analyzed
	}
	report.Issues = mergeIssues(issues)
	report.Duration = time.Since(start)

	for _, f := range report.Failures {
		r.logger.Warn("shard failed", "shard", f.ShardID, "phase", f.Phase, "file", f.File, "error", f.Err)
	}
	return report, nil
}

func (r *Runner) parseShard(ctx context.Context, sh Shard, tick func()) (res parseResult) {
	var current string
	defer func() {
		if p := recover(); p != nil {
			r.logger.Debug("parse panic", "shard", sh.ID, "stack", string(debug.Stack()))
			res = parseResult{failure: failure(sh.ID, types.PhaseParse, current, fmt.Sprint(p))}
		}
	}()

	res.fresh = make(map[string][]symbols.Declaration)
	for _, f := range sh.Files {
		current = f.Path
		src := analysis.NewSource(r.root, f)
		if err := src.Load(); err != nil {
			return parseResult{failure: failure(sh.ID, types.PhaseParse, f.Path, err.Error())}
		}

		decls, err := r.declarations(ctx, src, res.fresh)
		if err != nil {
			return parseResult{failure: failure(sh.ID, types.PhaseParse, f.Path, err.Error())}
		}
		res.decls = append(res.decls, decls...)
		res.parsed++
		if f.Mode == types.ModeParseAndAnalyze {
			res.sources = append(res.sources, src)
		}
		tick()
	}
	return res
}

func (r *Runner) declarations(ctx context.Context, src *analysis.Source, fresh map[string][]symbols.Declaration) ([]symbols.Declaration, error) {
	if r.parser == nil {
		return nil, nil
	}
	if r.cache == nil {
		return r.parser.Parse(ctx, src)
	}
	hash := src.Hash()
	if decls, ok := r.cache.Get(hash, src.RelPath); ok {
		return decls, nil
	}
	decls, err := r.parser.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	fresh[hash] = decls
	return decls, nil
}

func (r *Runner) analyzeShard(ctx context.Context, id int, sources []*analysis.Source, table *symbols.Table, tick func()) (res analyzeResult) {
	var current string
	defer func() {
		if p := recover(); p != nil {
			r.logger.Debug("analyze panic", "shard", id, "stack", string(debug.Stack()))
			res = analyzeResult{failure: failure(id, types.PhaseAnalyze, current, fmt.Sprint(p))}
		}
	}()

	for _, src := range sources {
		current = src.RelPath
		for _, a := range r.analyzers {
			found, err := a.Analyze(ctx, src, table)
			if err != nil {
				return analyzeResult{failure: failure(id, types.PhaseAnalyze, src.RelPath, fmt.Sprintf("%s: %v", a.Name(), err))}
			}
			for _, is := range found {
				if r.filter == nil || r.filter.Accept(is) {
					res.issues = append(res.issues, is)
				}
			}
		}
		res.analyzed++
		tick()
	}
	return res
}

func (r *Runner) counter(phase string, total int) func() {
	if r.progress == nil {
		return func() {}
	}
	var done atomic.Int64
	r.progress(phase, 0, total)
	return func() {
		r.progress(phase, int(done.Add(1)), total)
	}
}

func failure(shard int, phase, file, msg string) *types.ShardFailure {
	return &types.ShardFailure{ShardID: shard, Phase: phase, File: file, Err: msg}
}
