// Package respindex groups completed responses by logical request ID.
//
// A request that was expanded into several physical requests answers with
// one response per variant, identified as "<id>#<n>". The index keys every
// decoded body by "<id>" and orders them by n.
package respindex

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/value"
	"go.uber.org/zap"
)

// Entry is one decoded response body under a root ID.
type Entry struct {
	Fan  uint32
	Body value.Value
}

type rootEntries struct {
	fans   *roaring.Bitmap
	bodies map[uint32][]value.Value
}

// Index maps a request ID root to its decoded response bodies. It is
// read-only after Build and safe for concurrent lookups.
type Index struct {
	roots    map[string]*rootEntries
	order    []string
	failures []Failure
}

// Failure records a response that could not be indexed.
type Failure struct {
	ResponseID string
	Err        error
}

type options struct {
	logger *zap.Logger
}

// Option configures Build.
type Option func(*options)

// WithLogger sets the logger used to report skipped responses.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// ParseID splits "<root>#<n>" into root and n. IDs without a numeric
// suffix are their own root with fan index 0 and split=false.
func ParseID(id string) (root string, fan uint32, split bool) {
	i := strings.LastIndexByte(id, '#')
	if i < 0 || i == len(id)-1 {
		return id, 0, false
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 32)
	if err != nil {
		return id, 0, false
	}
	return id[:i], uint32(n), true
}

// Build decodes every response body once and groups it by root ID.
// Responses with no identifier or an undecodable body are skipped and
// reported through Failures; they never abort the build.
func Build(responses []api.Response, opts ...Option) *Index {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{roots: make(map[string]*rootEntries)}
	for i, r := range responses {
		id := r.Identifier()
		if id == "" {
			o.logger.Warn("skipping response without identifier", zap.Int("position", i))
			idx.failures = append(idx.failures, Failure{Err: errMissingID{position: i}})
			continue
		}
		body, err := value.Decode(r.Body)
		if err != nil {
			o.logger.Warn("skipping undecodable response body",
				zap.String("response_id", id), zap.Error(err))
			idx.failures = append(idx.failures, Failure{ResponseID: id, Err: err})
			continue
		}
		root, fan, _ := ParseID(id)
		idx.add(root, fan, body)
	}
	return idx
}

func (idx *Index) add(root string, fan uint32, body value.Value) {
	re, ok := idx.roots[root]
	if !ok {
		re = &rootEntries{fans: roaring.New(), bodies: make(map[uint32][]value.Value)}
		idx.roots[root] = re
		idx.order = append(idx.order, root)
	}
	re.fans.Add(fan)
	re.bodies[fan] = append(re.bodies[fan], body)
}

// Lookup returns the bodies under root in ascending fan order. Bodies that
// share a fan index keep response-list order. Unknown roots yield nil.
func (idx *Index) Lookup(root string) []Entry {
	re, ok := idx.roots[root]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, re.fans.GetCardinality())
	for _, fan := range re.fans.ToArray() {
		for _, body := range re.bodies[fan] {
			out = append(out, Entry{Fan: fan, Body: body})
		}
	}
	return out
}

// Roots returns the indexed root IDs in first-seen order.
func (idx *Index) Roots() []string {
	return append([]string(nil), idx.order...)
}

// Failures returns the responses skipped during Build.
func (idx *Index) Failures() []Failure {
	return append([]Failure(nil), idx.failures...)
}

type errMissingID struct{ position int }

func (e errMissingID) Error() string {
	return "response " + strconv.Itoa(e.position) + " has no id or " + api.ContentIDHeader + " header"
}
