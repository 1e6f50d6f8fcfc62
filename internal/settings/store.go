package settings

import (
	"log/slog"
	"sync/atomic"

	"github.com/tphakala/go-audio-eq/internal/logging"
	"github.com/tphakala/go-audio-eq/internal/typecheck"
)

// Store holds the last known good settings snapshot. Reload replaces it
// only when the new file validates and loads completely.
type Store struct {
	checker *typecheck.Checker
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// NewStore compiles schema and returns an empty store.
func NewStore(schema typecheck.Schema, logger *slog.Logger) (*Store, error) {
	checker, err := typecheck.Compile(schema)
	if err != nil {
		return nil, err
	}
	return &Store{checker: checker, logger: logging.Module(logger, "settings")}, nil
}

// Current returns the active snapshot, or nil before the first load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload reads path and swaps the active snapshot on success. changed is
// false when the file content is identical to the active snapshot. On
// failure the previous snapshot stays active and is returned with the error.
func (s *Store) Reload(path string) (snap *Snapshot, changed bool, err error) {
	prev := s.current.Load()

	next, err := readFile(path, s.checker)
	if err != nil {
		s.logger.Warn("settings reload failed, keeping previous configuration",
			"path", path, "error", err, "has_previous", prev != nil)
		return prev, false, err
	}

	if prev != nil && prev.Path == next.Path && prev.Digest == next.Digest {
		s.logger.Debug("settings unchanged", "path", path)
		return prev, false, nil
	}

	for i, e := range next.Entries {
		if e.Match.IsEmpty() {
			s.logger.Warn("device entry has no match criteria and will not match any device",
				"index", i, "name", e.Name)
		}
	}

	s.current.Store(next)
	s.logger.Info("settings loaded", "path", path, "devices", len(next.Entries))
	return next, true, nil
}
