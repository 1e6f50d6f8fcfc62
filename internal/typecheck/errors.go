package typecheck

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema validation failures. Use errors.Is to test
// the category of a *SchemaError.
var (
	ErrUnknownPath = errors.New("unknown path")
	ErrWrongType   = errors.New("wrong type")
	ErrUnknownType = errors.New("unknown type")

	// ErrMalformedPath is returned by Compile for path expressions that do
	// not follow the path grammar.
	ErrMalformedPath = errors.New("malformed path expression")
)

// ErrorKind classifies a SchemaError.
type ErrorKind int

// Schema error kinds.
const (
	UnknownPath ErrorKind = iota + 1
	WrongType
	UnknownType
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownPath:
		return "UnknownPath"
	case WrongType:
		return "WrongType"
	case UnknownType:
		return "UnknownType"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case UnknownPath:
		return ErrUnknownPath
	case WrongType:
		return ErrWrongType
	case UnknownType:
		return ErrUnknownType
	default:
		return nil
	}
}

// SchemaError reports the first schema violation found in a document.
type SchemaError struct {
	Kind ErrorKind
	// Pattern is the schema key being checked.
	Pattern string
	// Path is the concrete location in the document, with array indices
	// filled in (for example "devices[2].presets[0].name").
	Path string
	Want string
	// Got is the kind found at Path; empty for UnknownPath and UnknownType.
	Got string
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case UnknownPath:
		return fmt.Sprintf("%v: %q (schema %q)", ErrUnknownPath, e.Path, e.Pattern)
	case WrongType:
		return fmt.Sprintf("%v at %q: want %s, got %s", ErrWrongType, e.Path, e.Want, e.Got)
	case UnknownType:
		return fmt.Sprintf("%v %q for schema path %q", ErrUnknownType, e.Want, e.Pattern)
	default:
		return fmt.Sprintf("schema error at %q", e.Path)
	}
}

// Is reports whether target is the sentinel for e.Kind.
func (e *SchemaError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}
