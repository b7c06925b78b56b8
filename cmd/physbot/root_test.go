package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/physum/physbot/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommandSkipsConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	require.NoError(t, root.Execute())
	assert.Equal(t, app.VersionString()+"\n", out.String())
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	dbPath := filepath.Join(dir, "data", "physbot.db")
	t.Setenv("PHYSBOT_DATABASE_PATH", dbPath)

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	require.NoError(t, root.Execute())
	assert.FileExists(t, dbPath)
}

func TestRunCommandNeedsToken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("PHYSBOT_DISCORD_TOKEN", "")
	t.Setenv("PHYSBOT_DATABASE_PATH", filepath.Join(dir, "physbot.db"))

	root := newRootCmd()
	root.SetArgs([]string{"run"})
	assert.Error(t, root.Execute())
}
