package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-eq/internal/typecheck"
)

const yamlSettings = `
devices:
  - name: Studio
    match:
      name: USB DAC
    presets:
      - name: Bright
        multiplier: 0.9
        biquads:
          - {type: highshelf, frequency: 8000, Q: 0.7, gain: 2.5}
`

const jsonSettings = `{"devices": [{"name": "Studio", "match": {"name": "USB DAC"},
  "presets": [{"name": "Bright", "multiplier": 0.9,
    "biquads": [{"type": "highshelf", "frequency": 8000, "Q": 0.7, "gain": 2.5}]}]}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadFile_Formats(t *testing.T) {
	dir := t.TempDir()
	y, err := ReadFile(writeFile(t, dir, "eq.yaml", yamlSettings), DefaultSchema())
	require.NoError(t, err)
	j, err := ReadFile(writeFile(t, dir, "eq.json", jsonSettings), DefaultSchema())
	require.NoError(t, err)

	assert.Equal(t, y.Entries, j.Entries)
	assert.NotZero(t, y.Digest)
	assert.False(t, y.LoadedAt.IsZero())
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(writeFile(t, dir, "eq.toml", ""), DefaultSchema())
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ReadFile(filepath.Join(dir, "missing.json"), DefaultSchema())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadFile(writeFile(t, dir, "bad.json", `{"devices": "none"}`), DefaultSchema())
	assert.ErrorIs(t, err, typecheck.ErrWrongType)

	_, err = ReadFile(writeFile(t, dir, "trunc.json", `{"devices": [`), DefaultSchema())
	assert.Error(t, err)

	_, err = ReadFile(writeFile(t, dir, "ok.json", jsonSettings), typecheck.Schema{"devices": "List"})
	assert.ErrorIs(t, err, typecheck.ErrUnknownType)
}

func TestStore_LastKnownGood(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "eq.json", jsonSettings)

	store, err := NewStore(DefaultSchema(), nil)
	require.NoError(t, err)
	assert.Nil(t, store.Current())

	first, changed, err := store.Reload(path)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Same(t, first, store.Current())

	// Same content: no swap.
	again, changed, err := store.Reload(path)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, again)

	// Broken content: previous snapshot survives.
	writeFile(t, dir, "eq.json", `{"devices": [{"name": "X", "presets": [{"name": "", "biquads": []}]}]}`)
	kept, changed, err := store.Reload(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)
	assert.False(t, changed)
	assert.Same(t, first, kept)
	assert.Same(t, first, store.Current())
}

func TestWatcher_DebouncedChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "eq.yaml", yamlSettings)

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files in the directory are ignored.
	writeFile(t, dir, "other.txt", "x")
	for range 3 {
		writeFile(t, dir, "eq.yaml", yamlSettings+"\n")
	}

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
