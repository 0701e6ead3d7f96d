package replacer

import (
	"strings"

	"github.com/agentic-research/subreq/internal/token"
	"github.com/agentic-research/subreq/internal/value"
)

// exprSet assigns each distinct expression a slot in first-seen order.
type exprSet struct {
	exprs []token.Expr
	slot  map[token.Expr]int
}

func (s *exprSet) add(x token.Expr) int {
	if i, ok := s.slot[x]; ok {
		return i
	}
	if s.slot == nil {
		s.slot = make(map[token.Expr]int)
	}
	s.slot[x] = len(s.exprs)
	s.exprs = append(s.exprs, x)
	return len(s.exprs) - 1
}

// segment is either literal text (slot < 0) or a reference to an
// expression slot.
type segment struct {
	text string
	slot int
}

// stringTemplate is a string split around its tokens.
type stringTemplate struct {
	segs  []segment
	exact bool
}

// compileString returns nil when s holds no token.
func compileString(s string, set *exprSet) *stringTemplate {
	occs := token.Scan(s)
	if len(occs) == 0 {
		return nil
	}
	t := &stringTemplate{exact: len(occs) == 1 && occs[0].Exact}
	last := 0
	for _, occ := range occs {
		if occ.Start > last {
			t.segs = append(t.segs, segment{text: s[last:occ.Start], slot: -1})
		}
		t.segs = append(t.segs, segment{slot: set.add(occ.Expr)})
		last = occ.End
	}
	if last < len(s) {
		t.segs = append(t.segs, segment{text: s[last:], slot: -1})
	}
	return t
}

// value substitutes binding. An exact token yields the bound value with
// its own type; anything else is spliced into a string.
func (t *stringTemplate) value(binding []value.Value) value.Value {
	if t.exact {
		return binding[t.segs[0].slot]
	}
	return value.String(t.text(binding))
}

// text always produces a string, rendering exact tokens too.
func (t *stringTemplate) text(binding []value.Value) string {
	var b strings.Builder
	for _, seg := range t.segs {
		if seg.slot < 0 {
			b.WriteString(seg.text)
			continue
		}
		b.WriteString(value.Render(binding[seg.slot]))
	}
	return b.String()
}

// valueTemplate mirrors a body value. Subtrees without tokens are kept as
// fixed values and shared between variants; values are never mutated.
type valueTemplate struct {
	fixed  value.Value
	str    *stringTemplate
	array  []*valueTemplate
	object []memberTemplate
	kind   value.Kind
}

type memberTemplate struct {
	key string
	val *valueTemplate
}

// compileValue returns nil when v holds no token.
func compileValue(v value.Value, set *exprSet) *valueTemplate {
	switch t := v.(type) {
	case value.String:
		if st := compileString(string(t), set); st != nil {
			return &valueTemplate{str: st, kind: value.KindString}
		}
	case value.Array:
		var (
			elems   = make([]*valueTemplate, len(t))
			dynamic bool
		)
		for i, el := range t {
			if et := compileValue(el, set); et != nil {
				elems[i] = et
				dynamic = true
			} else {
				elems[i] = &valueTemplate{fixed: el}
			}
		}
		if dynamic {
			return &valueTemplate{array: elems, kind: value.KindArray}
		}
	case value.Object:
		var (
			members = make([]memberTemplate, len(t))
			dynamic bool
		)
		for i, m := range t {
			mt := compileValue(m.Value, set)
			if mt != nil {
				dynamic = true
			} else {
				mt = &valueTemplate{fixed: m.Value}
			}
			members[i] = memberTemplate{key: m.Key, val: mt}
		}
		if dynamic {
			return &valueTemplate{object: members, kind: value.KindObject}
		}
	}
	return nil
}

func (t *valueTemplate) render(binding []value.Value) value.Value {
	switch {
	case t.str != nil:
		return t.str.value(binding)
	case t.kind == value.KindArray:
		arr := make(value.Array, len(t.array))
		for i, el := range t.array {
			arr[i] = el.render(binding)
		}
		return arr
	case t.kind == value.KindObject:
		obj := make(value.Object, len(t.object))
		for i, m := range t.object {
			obj[i] = value.Member{Key: m.key, Value: m.val.render(binding)}
		}
		return obj
	}
	return t.fixed
}
