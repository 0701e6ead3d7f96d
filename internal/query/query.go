// Package query evaluates restricted JSONPath expressions against decoded
// values. Expressions are parsed with ojg's jp parser; evaluation walks the
// value model directly so integer/float subtypes and member order survive.
package query

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agentic-research/subreq/internal/value"
	"github.com/ohler55/ojg/jp"
)

// ErrUnsupported is returned by Compile for valid JSONPath that uses
// fragments beyond member access, [*] and [n].
var ErrUnsupported = errors.New("unsupported jsonpath fragment")

type stepKind uint8

const (
	stepChild stepKind = iota
	stepWildcard
	stepIndex
)

type step struct {
	kind  stepKind
	name  string
	index int
}

// Path is a compiled expression. It is immutable and safe for concurrent use.
type Path struct {
	src   string
	steps []step
}

// Compile parses path. A leading "$" or "@" anchors at the evaluated value.
func Compile(path string) (*Path, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}

	p := &Path{src: path, steps: make([]step, 0, len(x))}
	anchored := false
	for _, frag := range x {
		switch f := frag.(type) {
		case jp.Root, jp.At:
			if anchored || len(p.steps) > 0 {
				return nil, fmt.Errorf("%w: anchor inside '%s'", ErrUnsupported, path)
			}
			anchored = true
		case jp.Bracket:
			// notation marker only
		case jp.Child:
			p.steps = append(p.steps, step{kind: stepChild, name: string(f)})
		case jp.Wildcard:
			p.steps = append(p.steps, step{kind: stepWildcard})
		case jp.Nth:
			p.steps = append(p.steps, step{kind: stepIndex, index: int(f)})
		default:
			return nil, fmt.Errorf("%w %T in '%s'", ErrUnsupported, frag, path)
		}
	}
	return p, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(path string) *Path {
	p, err := Compile(path)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Path) String() string { return p.src }

// Wildcards reports how many [*] steps the path contains. A path without
// wildcards yields at most one match.
func (p *Path) Wildcards() int {
	n := 0
	for _, s := range p.steps {
		if s.kind == stepWildcard {
			n++
		}
	}
	return n
}

// Eval returns every node reachable through the path, depth-first and in
// document order. Missing members, wildcards over non-arrays and indices
// out of range contribute no matches.
func (p *Path) Eval(root value.Value) []value.Value {
	return walk(root, p.steps, nil)
}

func walk(v value.Value, steps []step, out []value.Value) []value.Value {
	if len(steps) == 0 {
		return append(out, v)
	}
	s, rest := steps[0], steps[1:]

	switch s.kind {
	case stepChild:
		obj, ok := v.(value.Object)
		if !ok {
			return out
		}
		child, ok := obj.Get(s.name)
		if !ok {
			return out
		}
		return walk(child, rest, out)
	case stepWildcard:
		arr, ok := v.(value.Array)
		if !ok {
			return out
		}
		for _, el := range arr {
			out = walk(el, rest, out)
		}
	case stepIndex:
		arr, ok := v.(value.Array)
		if !ok {
			return out
		}
		i := s.index
		if i < 0 {
			i += len(arr)
		}
		if i < 0 || i >= len(arr) {
			return out
		}
		return walk(arr[i], rest, out)
	}
	return out
}

// Eval compiles path and evaluates it against v.
func Eval(v value.Value, path string) ([]value.Value, error) {
	p, err := Compile(path)
	if err != nil {
		return nil, err
	}
	return p.Eval(v), nil
}

// Cache memoizes Compile results, including failures.
type Cache struct {
	mu    sync.Mutex
	paths map[string]cached
}

type cached struct {
	path *Path
	err  error
}

func NewCache() *Cache {
	return &Cache{paths: make(map[string]cached)}
}

// Compile returns the cached compilation of path.
func (c *Cache) Compile(path string) (*Path, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit, ok := c.paths[path]; ok {
		return hit.path, hit.err
	}
	p, err := Compile(path)
	c.paths[path] = cached{path: p, err: err}
	return p, err
}
