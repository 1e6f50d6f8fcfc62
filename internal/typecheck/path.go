package typecheck

import (
	"fmt"
	"strconv"
	"strings"
)

// eachIndex marks a step that visits every element of an array.
const eachIndex = -1

// step is one traversal operation: an object member lookup or an array
// index (eachIndex for "[]").
type step struct {
	key   string
	index int
	isKey bool
}

// path is a compiled path expression.
type path struct {
	raw      string
	steps    []step
	optional bool
}

// parsePath compiles expressions such as "devices[].presets[0].name?".
func parsePath(raw string) (path, error) {
	p := path{raw: raw}
	expr := raw
	if strings.HasSuffix(expr, "?") {
		p.optional = true
		expr = strings.TrimSuffix(expr, "?")
	}
	if expr == "" {
		return path{}, fmt.Errorf("%w: %q is empty", ErrMalformedPath, raw)
	}

	for seg := range strings.SplitSeq(expr, ".") {
		key, rest, _ := strings.Cut(seg, "[")
		if key == "" && rest == "" {
			return path{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedPath, raw)
		}
		if key != "" {
			p.steps = append(p.steps, step{key: key, isKey: true})
		}
		if !strings.Contains(seg, "[") {
			continue
		}

		// Everything after the key is a run of "[...]" suffixes.
		suffix := seg[len(key):]
		for suffix != "" {
			if suffix[0] != '[' {
				return path{}, fmt.Errorf("%w: %q: unexpected %q", ErrMalformedPath, raw, suffix)
			}
			end := strings.IndexByte(suffix, ']')
			if end < 0 {
				return path{}, fmt.Errorf("%w: %q: unterminated index", ErrMalformedPath, raw)
			}
			inner := suffix[1:end]
			idx := eachIndex
			if inner != "" {
				n, err := strconv.Atoi(inner)
				if err != nil || n < 0 {
					return path{}, fmt.Errorf("%w: %q: bad index %q", ErrMalformedPath, raw, inner)
				}
				idx = n
			}
			p.steps = append(p.steps, step{index: idx})
			suffix = suffix[end+1:]
		}
	}
	return p, nil
}
