// Package token finds {{requestId.field@path}} placeholders in strings and
// in the string leaves of decoded values.
package token

import (
	"regexp"

	"github.com/agentic-research/subreq/internal/value"
)

// FieldBody names the response body part in a token.
const FieldBody = "body"

// Expr is the identity of a token. Two occurrences refer to the same
// expression iff their Expr values are equal.
type Expr struct {
	RequestID string
	Field     string
	Path      string
}

// String renders the expression in canonical token syntax.
func (e Expr) String() string {
	return "{{" + e.RequestID + "." + e.Field + "@" + e.Path + "}}"
}

// Occurrence is one match of a token inside a string.
type Occurrence struct {
	Raw  string // matched text including braces
	Expr Expr
	// Start and End are byte offsets of Raw in the containing string.
	Start, End int
	// Exact is set when the token spans the whole containing string.
	Exact bool
}

// The request ID is matched lazily so that "a.b.body" splits into request
// "a.b" and field "body". Text that does not fit stays literal.
var pattern = regexp.MustCompile(`\{\{\s*([^{}@\s]+?)\s*\.\s*([^{}@.\s]+)\s*@\s*([^{}\s][^{}]*?)\s*\}\}`)

// Scan returns the tokens in s in left-to-right order.
func Scan(s string) []Occurrence {
	matches := pattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		out = append(out, Occurrence{
			Raw: s[m[0]:m[1]],
			Expr: Expr{
				RequestID: s[m[2]:m[3]],
				Field:     s[m[4]:m[5]],
				Path:      s[m[6]:m[7]],
			},
			Start: m[0],
			End:   m[1],
			Exact: m[0] == 0 && m[1] == len(s),
		})
	}
	return out
}

// ScanValue scans every string leaf of v: array elements in order, object
// member values in member order. Object keys are not scanned.
func ScanValue(v value.Value) []Occurrence {
	var out []Occurrence
	Strings(v, func(s string) {
		out = append(out, Scan(s)...)
	})
	return out
}

// Strings calls fn for every string leaf of v in document order.
func Strings(v value.Value, fn func(string)) {
	switch t := v.(type) {
	case value.String:
		fn(string(t))
	case value.Array:
		for _, el := range t {
			Strings(el, fn)
		}
	case value.Object:
		for _, m := range t {
			Strings(m.Value, fn)
		}
	}
}
