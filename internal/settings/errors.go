package settings

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrLoad indicates a structurally valid document with an unusable value.
	ErrLoad = errors.New("configuration load error")

	// ErrUnknownFormat indicates a settings file extension that is neither JSON nor YAML.
	ErrUnknownFormat = errors.New("unknown settings format")

	// ErrNoSnapshot is returned by Store accessors before the first successful load.
	ErrNoSnapshot = errors.New("no settings loaded")
)

// LoadError locates a semantic problem in the document.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at %s: %s: %v", ErrLoad, e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v at %s: %s", ErrLoad, e.Path, e.Reason)
}

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// Unwrap returns the underlying cause, if any.
func (e *LoadError) Unwrap() error {
	return e.Err
}
