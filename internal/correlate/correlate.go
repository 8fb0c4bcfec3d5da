// Package correlate matches functions between two programs by comparing
// their instruction bulks and symbol names.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"patchdiff/internal/bulk"
	"patchdiff/internal/logger"
	"patchdiff/internal/metrics"
	"patchdiff/internal/program"
)

// Correlator runs bulk instruction correlation with fixed, validated options.
// A Correlator holds no per-run state and may be used concurrently.
type Correlator struct {
	opts    Options
	workers int
	log     *zap.Logger
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithWorkers sets the number of goroutines used for bulk extraction and
// pair scoring. n <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Correlator) { c.workers = n }
}

// WithLogger sets the logger. Without it the logger is taken from the
// context passed to Correlate.
func WithLogger(l *zap.Logger) Option {
	return func(c *Correlator) { c.log = l }
}

// New validates opts and returns a Correlator.
func New(opts Options, options ...Option) (*Correlator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Correlator{opts: opts}
	for _, o := range options {
		o(c)
	}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	return c, nil
}

// Options returns the correlator's settings.
func (c *Correlator) Options() Options { return c.opts }

// CorrelatePrograms resolves the functions of both programs within their
// address sets and correlates them.
func (c *Correlator) CorrelatePrograms(ctx context.Context,
	src program.Program, srcSet program.AddressSet,
	dst program.Program, dstSet program.AddressSet,
) (MatchSet, error) {
	srcFns, err := src.Functions(srcSet)
	if err != nil {
		return nil, fmt.Errorf("source functions: %w", err)
	}
	dstFns, err := dst.Functions(dstSet)
	if err != nil {
		return nil, fmt.Errorf("destination functions: %w", err)
	}
	return c.Correlate(ctx, srcFns, dstFns)
}

// Correlate scores every (source, destination) pair and returns the pairs
// that pass the name filter and both thresholds, ordered by descending
// similarity, descending confidence, source address, destination address.
// Empty inputs yield an empty set. Any instruction walk failure or context
// cancellation aborts the run without a partial result.
func (c *Correlator) Correlate(ctx context.Context, src, dst []program.Function) (MatchSet, error) {
	log := c.log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	start := time.Now()
	ms, pairs, err := c.run(ctx, src, dst)
	elapsed := time.Since(start)
	metrics.RunDuration.Observe(elapsed.Seconds())
	metrics.PairsEvaluatedTotal.Add(float64(pairs))

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RunsTotal.WithLabelValues("canceled").Inc()
		log.Warn("correlation canceled", zap.Int64("pairs", pairs), zap.Duration("elapsed", elapsed))
		return nil, fmt.Errorf("correlate: %w", err)
	case err != nil:
		metrics.RunsTotal.WithLabelValues("error").Inc()
		log.Error("correlation failed", zap.Error(err))
		return nil, fmt.Errorf("correlate: %w", err)
	}

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.MatchesTotal.Add(float64(len(ms)))
	log.Info("correlation finished",
		zap.String("correlator", Name),
		zap.Int("source_functions", len(src)),
		zap.Int("destination_functions", len(dst)),
		zap.Int64("pairs", pairs),
		zap.Int("matches", len(ms)),
		zap.Duration("elapsed", elapsed),
	)
	return ms, nil
}

func (c *Correlator) run(ctx context.Context, src, dst []program.Function) (MatchSet, int64, error) {
	if len(src) == 0 || len(dst) == 0 {
		return MatchSet{}, 0, nil
	}

	// Bulks are computed once per function before any pair is scored;
	// scoring workers only read the table.
	table := bulk.NewTable()
	all := make([]program.Function, 0, len(src)+len(dst))
	all = append(all, src...)
	all = append(all, dst...)
	if err := table.Fill(ctx, all, c.workers); err != nil {
		return nil, 0, err
	}
	metrics.FunctionsBulkedTotal.Add(float64(table.Len()))

	candidates := c.candidateRows(dst)
	rows := make([]MatchSet, len(src))

	var (
		wg    sync.WaitGroup
		pairs int64
		mu    sync.Mutex
	)
	next := make(chan int)
	for w := 0; w < min(c.workers, len(src)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local int64
			for i := range next {
				rows[i], local = c.scoreRow(src[i], candidates(src[i]), table, local)
			}
			mu.Lock()
			pairs += local
			mu.Unlock()
		}()
	}

	// Cancellation is observed between source rows.
	var err error
feed:
	for i := range src {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()
	if err != nil {
		return nil, pairs, err
	}

	var ms MatchSet
	for _, row := range rows {
		ms = append(ms, row...)
	}
	if ms == nil {
		ms = MatchSet{}
	}
	ms.sort()
	return ms, pairs, nil
}

// candidateRows returns, per source function, the destinations that may be
// paired with it. When names must match only same-named destinations are
// visited; the outcome equals filtering the full cross product.
func (c *Correlator) candidateRows(dst []program.Function) func(program.Function) []program.Function {
	if !c.opts.SymbolNamesMustMatch {
		return func(program.Function) []program.Function { return dst }
	}
	byName := make(map[string][]program.Function)
	for _, d := range dst {
		byName[d.Name()] = append(byName[d.Name()], d)
	}
	return func(s program.Function) []program.Function { return byName[s.Name()] }
}

func (c *Correlator) scoreRow(s program.Function, dst []program.Function, table *bulk.Table, pairs int64) (MatchSet, int64) {
	var row MatchSet
	sb := table.Get(s)
	for _, d := range dst {
		pairs++
		if c.opts.SymbolNamesMustMatch && s.Name() != d.Name() {
			continue
		}
		sim := bulk.Similarity(sb, table.Get(d))
		if sim < c.opts.SimilarityThreshold {
			continue
		}
		conf := Confidence(s, d)
		if conf < c.opts.ConfidenceThreshold {
			continue
		}
		row = append(row, Match{Source: s, Destination: d, Similarity: sim, Confidence: conf})
	}
	return row, pairs
}
