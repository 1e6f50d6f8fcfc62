// Package typecheck validates a document.Value against a schema mapping
// path expressions to expected value kinds.
//
// Path grammar: dot-separated segments, each a member name optionally
// followed by one or more "[]" (every element) or "[N]" (element N)
// suffixes. A trailing "?" marks the whole path optional: it is checked
// only where every step exists.
//
//	devices                      Array
//	devices[].name               String
//	devices[].presets[].biquads  Array
//	devices[].symbol?            String
package typecheck

import (
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/go-audio-eq/internal/document"
)

// Recognized schema type names.
const (
	TypeArray      = "Array"
	TypeDictionary = "Dictionary"
	TypeNumber     = "Number" // booleans are accepted as numbers
	TypeString     = "String"
)

// Schema maps path expressions to one of the recognized type names.
type Schema map[string]string

type rule struct {
	path path
	want string
}

// Checker is a compiled Schema. It is immutable and safe for concurrent use.
type Checker struct {
	rules []rule
}

// Compile validates the schema and parses its paths. Unknown type names are
// reported as a *SchemaError of kind UnknownType before any path is parsed;
// keys are processed in sorted order so the reported error is stable.
func Compile(schema Schema) (*Checker, error) {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !knownType(schema[k]) {
			return nil, &SchemaError{Kind: UnknownType, Pattern: k, Want: schema[k]}
		}
	}

	c := &Checker{rules: make([]rule, 0, len(keys))}
	for _, k := range keys {
		p, err := parsePath(k)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, rule{path: p, want: schema[k]})
	}
	return c, nil
}

// Typecheck compiles schema and checks doc against it. It returns nil or
// the first violation found.
func Typecheck(doc document.Value, schema Schema) error {
	c, err := Compile(schema)
	if err != nil {
		return err
	}
	return c.Check(doc)
}

// Check walks every rule against doc and returns the first violation.
// The document is never modified.
func (c *Checker) Check(doc document.Value) error {
	for _, r := range c.rules {
		w := walker{rule: r}
		if err := w.walk(doc, 0, ""); err != nil {
			return err
		}
	}
	return nil
}

type walker struct {
	rule rule
}

func (w *walker) walk(v document.Value, i int, at string) error {
	if i == len(w.rule.path.steps) {
		if !matches(v, w.rule.want) {
			return w.wrongType(at, w.rule.want, v)
		}
		return nil
	}

	st := w.rule.path.steps[i]
	if st.isKey {
		if v.Kind() != document.KindObject {
			return w.wrongType(at, TypeDictionary, v)
		}
		next := joinKey(at, st.key)
		child, ok := v.Get(st.key)
		if !ok {
			return w.missing(next)
		}
		return w.walk(child, i+1, next)
	}

	if v.Kind() != document.KindArray {
		return w.wrongType(at, TypeArray, v)
	}
	if st.index != eachIndex {
		next := at + "[" + strconv.Itoa(st.index) + "]"
		child, ok := v.Index(st.index)
		if !ok {
			return w.missing(next)
		}
		return w.walk(child, i+1, next)
	}
	for j := range v.Len() {
		child, _ := v.Index(j)
		if err := w.walk(child, i+1, at+"["+strconv.Itoa(j)+"]"); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) missing(at string) error {
	if w.rule.path.optional {
		return nil
	}
	return &SchemaError{Kind: UnknownPath, Pattern: w.rule.path.raw, Path: at, Want: w.rule.want}
}

func (w *walker) wrongType(at, want string, got document.Value) error {
	return &SchemaError{
		Kind:    WrongType,
		Pattern: w.rule.path.raw,
		Path:    at,
		Want:    want,
		Got:     got.Kind().String(),
	}
}

func joinKey(at, key string) string {
	if at == "" {
		return key
	}
	var sb strings.Builder
	sb.Grow(len(at) + 1 + len(key))
	sb.WriteString(at)
	sb.WriteByte('.')
	sb.WriteString(key)
	return sb.String()
}

func knownType(name string) bool {
	switch name {
	case TypeArray, TypeDictionary, TypeNumber, TypeString:
		return true
	}
	return false
}

func matches(v document.Value, want string) bool {
	switch want {
	case TypeArray:
		return v.Kind() == document.KindArray
	case TypeDictionary:
		return v.Kind() == document.KindObject
	case TypeNumber:
		return v.Kind() == document.KindNumber || v.Kind() == document.KindBool
	case TypeString:
		return v.Kind() == document.KindString
	}
	return false
}
