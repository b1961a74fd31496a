package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"info":     zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		"WARN":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input), "level %q", input)
	}
}

func TestRollingFileWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.log")

	w, err := newRollingFileWriter(Config{FilePath: path, MaxSizeMB: 1})
	require.NoError(t, err)
	rw := w.(*rollingFileWriter)
	// Force a tiny rotation threshold.
	rw.maxBytes = 32

	_, err = rw.Write([]byte(strings.Repeat("a", 30) + "\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte(strings.Repeat("b", 30) + "\n"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 2, "expected active log plus a rotated file")
}

func TestRollingFileWriterRefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.log")
	require.NoError(t, os.WriteFile(target, nil, 0o600))
	link := filepath.Join(dir, "link.log")
	require.NoError(t, os.Symlink(target, link))

	_, err := newRollingFileWriter(Config{FilePath: link})
	require.Error(t, err)
}

func TestInitWithoutFileOutput(t *testing.T) {
	logger := Init(Config{Format: "json", Level: "debug", Component: "test"})
	logger.Debug().Msg("init smoke test")
	Shutdown()
}
