// Package value models decoded JSON documents as a closed set of variants.
package value

import (
	"fmt"
	"math"
	"sort"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is a decoded JSON node. The concrete types below are the only
// implementations; consumers type-switch over them.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	Null   struct{}
	Bool   bool
	Int    int64
	Float  float64
	String string
	Array  []Value
	// Object keeps members in document order.
	Object []Member
)

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Int) sealed()    {}
func (Float) sealed()  {}
func (String) sealed() {}
func (Array) sealed()  {}
func (Object) sealed() {}

// KindOf is like v.Kind() but treats a nil interface as null.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// Get returns the value of the first member named key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Keys returns member keys in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, m := range o {
		keys[i] = m.Key
	}
	return keys
}

// Equal reports whether a and b are structurally identical. Int and Float
// never compare equal to each other, and object member order matters.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch x := a.(type) {
	case nil, Null:
		return true
	case Bool:
		return x == b.(Bool)
	case Int:
		return x == b.(Int)
	case Float:
		y := b.(Float)
		return x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y)))
	case String:
		return x == b.(String)
	case Array:
		y := b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y := b.(Object)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts plain Go data (as produced by encoding/json, YAML
// decoders or literals in tests) into a Value. Map keys are sorted since Go
// maps carry no order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(t), nil
	case int8:
		return Int(t), nil
	case int16:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(t), nil
	case uint16:
		return Int(t), nil
	case uint32:
		return Int(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Float(t), nil
		}
		return Int(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(t), nil
		}
		return Int(t), nil
	case float32:
		return Float(t), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []any:
		arr := make(Array, len(t))
		for i, el := range t {
			v, err := FromAny(el)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case []string:
		arr := make(Array, len(t))
		for i, s := range t {
			arr[i] = String(s)
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(Object, 0, len(t))
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj = append(obj, Member{Key: k, Value: v})
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported type %T", x)
}
