package document

import (
	"fmt"
	"sort"

	"github.com/antonholmquist/jason"
)

// ParseJSON decodes a JSON document into a Value.
func ParseJSON(data []byte) (Value, error) {
	root, err := jason.NewValueFromBytes(data)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	return fromJason(root)
}

// fromJason probes the loosely-typed jason value for each kind in turn.
func fromJason(v *jason.Value) (Value, error) {
	if err := v.Null(); err == nil {
		return Null(), nil
	}
	if b, err := v.Boolean(); err == nil {
		return Bool(b), nil
	}
	if n, err := v.Float64(); err == nil {
		return Number(n), nil
	}
	if s, err := v.String(); err == nil {
		return String(s), nil
	}
	if items, err := v.Array(); err == nil {
		out := make([]Value, len(items))
		for i, item := range items {
			iv, err := fromJason(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = iv
		}
		return Value{kind: KindArray, arr: out}, nil
	}
	if obj, err := v.Object(); err == nil {
		m := obj.Map()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		// jason exposes members as a map; sort for a stable order.
		sort.Strings(keys)
		members := make([]Member, 0, len(keys))
		for _, k := range keys {
			mv, err := fromJason(m[k])
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			members = append(members, Member{Key: k, Value: mv})
		}
		return Object(members...), nil
	}
	return Value{}, fmt.Errorf("%w: unrecognized JSON value", ErrUnsupported)
}
