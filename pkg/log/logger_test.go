package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerWritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	require.NoError(t, SetupLogger(Config{Dir: dir, Level: slog.LevelInfo, MaxSizeMB: 1, Console: &console, NoColor: true}))
	t.Cleanup(func() { _ = Sync() })

	DatabaseLogger().Info("schema ready", "tables", 3)
	ApplicationLogger().Debug("hidden")
	require.NoError(t, Sync())

	data, err := os.ReadFile(filepath.Join(dir, "database.log"))
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "schema ready", rec["msg"])
	assert.Equal(t, "database", rec["category"])
	assert.EqualValues(t, 3, rec["tables"])

	assert.Contains(t, console.String(), "schema ready")
	assert.NotContains(t, console.String(), "hidden")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestForUnknownCategoryFallsBack(t *testing.T) {
	assert.Same(t, ApplicationLogger(), For(Category("nope")))
}
