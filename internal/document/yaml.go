package document

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrSyntax indicates the raw document could not be parsed.
var ErrSyntax = errors.New("document syntax error")

// maxAliasDepth bounds alias expansion to reject recursive anchors.
const maxAliasDepth = 64

// ParseYAML decodes a YAML document into a Value. Anchors and aliases are
// expanded; keys must be scalars.
func ParseYAML(data []byte) (Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	if root.Kind == 0 {
		// Empty input.
		return Null(), nil
	}
	return fromYAML(&root, 0)
}

func fromYAML(n *yaml.Node, depth int) (Value, error) {
	if depth > maxAliasDepth {
		return Value{}, fmt.Errorf("%w: nesting too deep at line %d", ErrUnsupported, n.Line)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromYAML(n.Content[0], depth+1)

	case yaml.AliasNode:
		return fromYAML(n.Alias, depth+1)

	case yaml.SequenceNode:
		out := make([]Value, len(n.Content))
		for i, c := range n.Content {
			v, err := fromYAML(c, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return Value{kind: KindArray, arr: out}, nil

	case yaml.MappingNode:
		members := make([]Member, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("%w: non-scalar key at line %d", ErrUnsupported, k.Line)
			}
			mv, err := fromYAML(v, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k.Value, err)
			}
			members = append(members, Member{Key: k.Value, Value: mv})
		}
		return Object(members...), nil

	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}

	return Value{}, fmt.Errorf("%w: yaml node kind %d at line %d", ErrUnsupported, n.Kind, n.Line)
}

func scalarFromYAML(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Number(f), nil
	default:
		return String(n.Value), nil
	}
}
