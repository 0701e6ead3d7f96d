package replacer

import (
	"maps"
	"slices"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/query"
	"github.com/agentic-research/subreq/internal/respindex"
	"github.com/agentic-research/subreq/internal/token"
	"github.com/agentic-research/subreq/internal/value"
	"go.uber.org/zap"
)

// expander materializes one subrequest against a fixed response index.
type expander struct {
	index   *respindex.Index
	paths   *query.Cache
	logger  *zap.Logger
	metrics *Metrics
}

// plan is the discovery result for one subrequest.
type plan struct {
	uri        *stringTemplate
	body       *valueTemplate
	exprs      []token.Expr
	candidates [][]value.Value
}

func (e *expander) discover(req api.Subrequest) *plan {
	var set exprSet
	// URI first: its expressions vary slowest.
	p := &plan{
		uri:  compileString(req.URI, &set),
		body: compileValue(req.Body, &set),
	}
	p.exprs = set.exprs
	return p
}

// expand returns the concrete variants of req. Requests without tokens come
// back unchanged; requests with an unresolvable expression produce none.
func (e *expander) expand(req api.Subrequest) []api.Subrequest {
	p := e.discover(req)
	if len(p.exprs) == 0 {
		e.metrics.passthrough()
		return []api.Subrequest{req}
	}

	p.candidates = make([][]value.Value, len(p.exprs))
	for i, x := range p.exprs {
		c := e.resolve(req.RequestID, x)
		if len(c) == 0 {
			e.logger.Debug("dropping subrequest: expression has no matches",
				zap.String("request_id", req.RequestID),
				zap.Stringer("expr", x))
			e.metrics.dropped()
			return nil
		}
		p.candidates[i] = c
	}

	out := make([]api.Subrequest, 0, combinations(p.candidates, maxPrealloc))
	forEachCombination(p.candidates, func(binding []value.Value) {
		out = append(out, materialize(req, p, binding))
	})
	e.metrics.expanded(len(out))
	return out
}

// resolve concatenates the matches of x over every response under its
// request ID, in fan order.
func (e *expander) resolve(requestID string, x token.Expr) []value.Value {
	entries := e.index.Lookup(x.RequestID)
	if len(entries) == 0 {
		return nil
	}
	path, err := e.paths.Compile(x.Path)
	if err != nil {
		e.logger.Warn("cannot evaluate token path",
			zap.String("request_id", requestID),
			zap.Stringer("expr", x),
			zap.Error(err))
		return nil
	}

	var out []value.Value
	for _, en := range entries {
		part, ok := selectField(en, x.Field)
		if !ok {
			continue
		}
		out = append(out, path.Eval(part)...)
	}
	return out
}

// selectField picks the response part a token queries. Only the body is
// addressable.
func selectField(en respindex.Entry, field string) (value.Value, bool) {
	if field == token.FieldBody {
		return en.Body, true
	}
	return nil, false
}

func materialize(req api.Subrequest, p *plan, binding []value.Value) api.Subrequest {
	out := req
	if p.uri != nil {
		out.URI = p.uri.text(binding)
	}
	if p.body != nil {
		out.Body = p.body.render(binding)
	}
	out.Headers = maps.Clone(req.Headers)
	out.WaitFor = slices.Clone(req.WaitFor)
	out.Resolved = true
	return out
}

// forEachCombination walks the cartesian product of lists like nested
// loops: lists[0] is the outermost loop, the last list the innermost. The
// binding slice is reused between calls. Every list must be non-empty.
func forEachCombination(lists [][]value.Value, fn func(binding []value.Value)) {
	if len(lists) == 0 {
		return
	}
	pos := make([]int, len(lists))
	binding := make([]value.Value, len(lists))
	for {
		for i, l := range lists {
			binding[i] = l[pos[i]]
		}
		fn(binding)

		k := len(lists) - 1
		for ; k >= 0; k-- {
			pos[k]++
			if pos[k] < len(lists[k]) {
				break
			}
			pos[k] = 0
		}
		if k < 0 {
			return
		}
	}
}

// maxPrealloc caps the variant slice reserved up front; larger products
// grow by append.
const maxPrealloc = 1 << 12

// combinations returns the size of the cartesian product of lists, or limit
// when the product exceeds it.
func combinations(lists [][]value.Value, limit int) int {
	n := 1
	for _, l := range lists {
		if len(l) == 0 {
			return 0
		}
		if n > limit/len(l) {
			return limit
		}
		n *= len(l)
	}
	return n
}
