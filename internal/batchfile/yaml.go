package batchfile

import (
	"fmt"
	"math"
	"strconv"

	"github.com/agentic-research/subreq/internal/value"
	"gopkg.in/yaml.v3"
)

// fromNode converts a YAML node tree to a Value, keeping mapping order.
func fromNode(n *yaml.Node) (value.Value, error) {
	switch n.Kind {
	case 0:
		return value.Null{}, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Null{}, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		arr := make(value.Array, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := make(value.Object, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			val, err := fromNode(v)
			if err != nil {
				return nil, err
			}
			obj = append(obj, value.Member{Key: k.Value, Value: val})
		}
		return obj, nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

func fromScalar(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return value.Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return value.Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("line %d: %s has no JSON form", n.Line, n.Value)
		}
		return value.Float(f), nil
	}
	return value.String(n.Value), nil
}

// toNode is the inverse of fromNode.
func toNode(v value.Value) *yaml.Node {
	switch t := v.(type) {
	case value.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(t)))
	case value.Int:
		return scalar("!!int", value.Render(t))
	case value.Float:
		return scalar("!!float", string(value.Marshal(t)))
	case value.String:
		return scalar("!!str", string(t))
	case value.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, el := range t {
			n.Content = append(n.Content, toNode(el))
		}
		return n
	case value.Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range t {
			n.Content = append(n.Content, scalar("!!str", m.Key), toNode(m.Value))
		}
		return n
	}
	return scalar("!!null", "null")
}

func scalar(tag, s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: s}
}
