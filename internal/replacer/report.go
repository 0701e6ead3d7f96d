package replacer

import (
	"fmt"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/respindex"
)

// Report describes what happened to each pending subrequest.
type Report struct {
	// Variants[i] is the number of concrete requests emitted for pending[i].
	Variants []int
	// Dropped lists positions of pending requests that produced nothing.
	Dropped []int
	// Skipped lists responses left out of the index.
	Skipped []respindex.Failure
}

type RequestSummary struct {
	RequestID string `json:"requestId"`
	Variants  int    `json:"variants"`
	Dropped   bool   `json:"dropped,omitempty"`
}

// Summary is the serializable form of a Report.
type Summary struct {
	Requests         []RequestSummary `json:"requests"`
	SkippedResponses []string         `json:"skippedResponses,omitempty"`
}

// Summarize pairs the report with the request IDs of the batch it was
// produced from.
func (r *Report) Summarize(pending []api.Subrequest) Summary {
	s := Summary{Requests: make([]RequestSummary, 0, len(pending))}
	for i, req := range pending {
		n := 0
		if i < len(r.Variants) {
			n = r.Variants[i]
		}
		s.Requests = append(s.Requests, RequestSummary{RequestID: req.RequestID, Variants: n, Dropped: n == 0})
	}
	for _, f := range r.Skipped {
		s.SkippedResponses = append(s.SkippedResponses, fmt.Sprintf("%s: %v", f.ResponseID, f.Err))
	}
	return s
}
