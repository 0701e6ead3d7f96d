// Package replacer expands subrequests whose URI or body reference the
// responses of earlier requests in the same batch.
//
// Every distinct {{id.field@path}} expression in a request is resolved to
// its list of matches; the request is then emitted once per combination of
// matches. Earlier expressions (URI before body, document order within
// each) vary slowest.
package replacer

import (
	"context"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/query"
	"github.com/agentic-research/subreq/internal/respindex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Replacer resolves batches. It holds no per-batch state and may be shared.
type Replacer struct {
	logger  *zap.Logger
	metrics *Metrics
	workers int
}

// Option configures a Replacer.
type Option func(*Replacer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Replacer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables outcome counters.
func WithMetrics(m *Metrics) Option {
	return func(r *Replacer) { r.metrics = m }
}

// WithWorkers bounds how many subrequests are expanded concurrently.
// Output order does not depend on it.
func WithWorkers(n int) Option {
	return func(r *Replacer) {
		if n > 0 {
			r.workers = n
		}
	}
}

func New(opts ...Option) *Replacer {
	r := &Replacer{logger: zap.NewNop(), workers: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplaceBatch expands every pending subrequest against responses and
// returns the concatenation, keeping batch order: all variants of
// pending[i] precede those of pending[i+1].
func (r *Replacer) ReplaceBatch(pending []api.Subrequest, responses []api.Response) []api.Subrequest {
	out, _, _ := r.ReplaceBatchReport(context.Background(), pending, responses)
	return out
}

// ReplaceBatchContext is ReplaceBatch with cancellation. The only error
// is ctx's.
func (r *Replacer) ReplaceBatchContext(ctx context.Context, pending []api.Subrequest, responses []api.Response) ([]api.Subrequest, error) {
	out, _, err := r.ReplaceBatchReport(ctx, pending, responses)
	return out, err
}

// ReplaceBatchReport is ReplaceBatchContext plus a per-request Report.
func (r *Replacer) ReplaceBatchReport(ctx context.Context, pending []api.Subrequest, responses []api.Response) ([]api.Subrequest, *Report, error) {
	index := respindex.Build(responses, respindex.WithLogger(r.logger))
	skipped := index.Failures()
	r.metrics.failures(len(skipped))

	exp := &expander{
		index:   index,
		paths:   query.NewCache(),
		logger:  r.logger,
		metrics: r.metrics,
	}

	parts := make([][]api.Subrequest, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = exp.expand(pending[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	report := &Report{Variants: make([]int, len(pending)), Skipped: skipped}
	total := 0
	for i, p := range parts {
		report.Variants[i] = len(p)
		if len(p) == 0 {
			report.Dropped = append(report.Dropped, i)
		}
		total += len(p)
	}

	out := make([]api.Subrequest, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}

	r.logger.Debug("replaced batch",
		zap.Int("pending", len(pending)),
		zap.Int("responses", len(responses)),
		zap.Int("emitted", total),
		zap.Int("dropped", len(report.Dropped)))
	return out, report, nil
}
