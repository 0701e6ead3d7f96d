package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentic-research/subreq/internal/value"
)

// ContentIDHeader carries a response's request identifier as "<id>" or "<id#n>".
const ContentIDHeader = "Content-ID"

// Subrequest is one pending request of a batch.
type Subrequest struct {
	// URI may contain {{id.field@path}} tokens.
	URI    string
	Action string
	// RequestID is unique within the batch; tokens in later requests refer to it.
	RequestID string
	Headers   map[string]string
	// Body is the request payload. Plain-text bodies are value.String.
	Body value.Value
	// WaitFor lists request IDs this request depends on. Passed through untouched.
	WaitFor []string
	// Resolved marks requests produced by token expansion.
	Resolved bool
}

type subrequestJSON struct {
	URI       string            `json:"uri"`
	Action    string            `json:"action,omitempty"`
	RequestID string            `json:"requestId"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	WaitFor   []string          `json:"waitFor,omitempty"`
	Resolved  bool              `json:"_resolved,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Subrequest) MarshalJSON() ([]byte, error) {
	w := subrequestJSON{
		URI:       s.URI,
		Action:    s.Action,
		RequestID: s.RequestID,
		Headers:   s.Headers,
		WaitFor:   s.WaitFor,
		Resolved:  s.Resolved,
	}
	if value.KindOf(s.Body) != value.KindNull {
		w.Body = value.Marshal(s.Body)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The body is decoded with the
// value model so member order and number subtypes are kept.
func (s *Subrequest) UnmarshalJSON(data []byte) error {
	var w subrequestJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	body := value.Value(value.Null{})
	if len(bytes.TrimSpace(w.Body)) > 0 {
		v, err := value.Decode(w.Body)
		if err != nil {
			return fmt.Errorf("subrequest %q body: %w", w.RequestID, err)
		}
		body = v
	}
	*s = Subrequest{
		URI:       w.URI,
		Action:    w.Action,
		RequestID: w.RequestID,
		Headers:   w.Headers,
		Body:      body,
		WaitFor:   w.WaitFor,
		Resolved:  w.Resolved,
	}
	return nil
}

// Response is a completed response of an earlier request in the batch.
type Response struct {
	// ID is "<requestId>" or "<requestId>#<n>" for the nth response of a
	// request that was itself expanded. Empty means: read ContentIDHeader.
	ID      string
	Headers map[string]string
	// Body is the raw payload; it is decoded when the response is indexed.
	Body []byte
}

// Identifier returns ID, falling back to the Content-ID header with its
// angle brackets removed.
func (r Response) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, ContentIDHeader) {
			v = strings.TrimSpace(v)
			v = strings.TrimPrefix(v, "<")
			return strings.TrimSuffix(v, ">")
		}
	}
	return ""
}

type responseJSON struct {
	ID      string            `json:"id,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	RawBody *string           `json:"rawBody,omitempty"`
}

// MarshalJSON implements json.Marshaler. Bodies that are valid JSON are
// embedded as "body"; anything else travels as the "rawBody" string.
func (r Response) MarshalJSON() ([]byte, error) {
	w := responseJSON{ID: r.ID, Headers: r.Headers}
	switch {
	case len(r.Body) == 0:
	case json.Valid(r.Body):
		w.Body = r.Body
	default:
		raw := string(r.Body)
		w.RawBody = &raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w responseJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Response{ID: w.ID, Headers: w.Headers}
	if w.RawBody != nil {
		r.Body = []byte(*w.RawBody)
	} else if len(w.Body) > 0 {
		r.Body = append([]byte(nil), w.Body...)
	}
	return nil
}
