package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tphakala/go-audio-eq/internal/document"
	"github.com/tphakala/go-audio-eq/internal/typecheck"
)

// Format is the encoding of a settings file.
type Format int

// Supported formats.
const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Decode parses raw settings bytes into a document.
func Decode(data []byte, format Format) (document.Value, error) {
	switch format {
	case FormatJSON:
		return document.ParseJSON(data)
	case FormatYAML:
		return document.ParseYAML(data)
	default:
		return document.Value{}, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
}

// Snapshot is one successfully loaded settings file. It is never modified
// after creation.
type Snapshot struct {
	Path     string
	Entries  []DeviceEntry
	Digest   uint64 // xxhash of the raw file contents
	LoadedAt time.Time
}

// Entry returns entry i of the snapshot.
func (s *Snapshot) Entry(i int) (DeviceEntry, bool) {
	if s == nil || i < 0 || i >= len(s.Entries) {
		return DeviceEntry{}, false
	}
	return s.Entries[i], true
}

// Parse decodes, typechecks and loads raw settings.
func Parse(data []byte, format Format, checker *typecheck.Checker) ([]DeviceEntry, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	if err := checker.Check(doc); err != nil {
		return nil, err
	}
	return Load(doc)
}

// ReadFile reads, validates and loads the settings file at path.
func ReadFile(path string, schema typecheck.Schema) (*Snapshot, error) {
	checker, err := typecheck.Compile(schema)
	if err != nil {
		return nil, err
	}
	return readFile(path, checker)
}

func readFile(path string, checker *typecheck.Checker) (*Snapshot, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	entries, err := Parse(data, format, checker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Snapshot{
		Path:     path,
		Entries:  entries,
		Digest:   xxhash.Sum64(data),
		LoadedAt: time.Now(),
	}, nil
}
