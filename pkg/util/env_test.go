package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadDotEnvUsesHomeFile(t *testing.T) {
	tmp := t.TempDir()
	fakeHome := filepath.Join(tmp, "home")
	if err := os.MkdirAll(filepath.Join(fakeHome, ".local", "bin"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	envPath := filepath.Join(fakeHome, ".local", "bin", ".env")
	if err := os.WriteFile(envPath, []byte("PHYSBOT_TEST_TOKEN=fromfile"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	t.Setenv("HOME", fakeHome)
	t.Setenv("PHYSBOT_TEST_TOKEN", "")
	_ = os.Unsetenv("PHYSBOT_TEST_TOKEN")

	loaded := LoadDotEnv()
	if len(loaded) == 0 || loaded[len(loaded)-1] != envPath {
		t.Fatalf("expected %s to be loaded, got %v", envPath, loaded)
	}
	if got := os.Getenv("PHYSBOT_TEST_TOKEN"); got != "fromfile" {
		t.Fatalf("expected value from file, got %q", got)
	}

	// When env already set, file should not override.
	t.Setenv("PHYSBOT_TEST_TOKEN", "envwins")
	LoadDotEnv()
	if got := os.Getenv("PHYSBOT_TEST_TOKEN"); got != "envwins" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}

func TestLoadDotEnvExplicitPathFirst(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	explicit := filepath.Join(tmp, "custom.env")
	if err := os.WriteFile(explicit, []byte("PHYSBOT_TEST_EXPLICIT=yes"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PHYSBOT_TEST_EXPLICIT", "")
	_ = os.Unsetenv("PHYSBOT_TEST_EXPLICIT")

	loaded := LoadDotEnv(explicit, filepath.Join(tmp, "missing.env"))
	if len(loaded) == 0 || loaded[0] != explicit {
		t.Fatalf("expected explicit file loaded first, got %v", loaded)
	}
	if got := os.Getenv("PHYSBOT_TEST_EXPLICIT"); got != "yes" {
		t.Fatalf("expected explicit value to be loaded, got %q", got)
	}
}

func TestEnvInt64(t *testing.T) {
	t.Setenv("INT_OK", " 42 ")
	t.Setenv("INT_BAD", "oops")
	if got := EnvInt64("INT_OK", 1); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := EnvInt64("INT_BAD", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if got := EnvInt64("INT_UNSET", 3); got != 3 {
		t.Fatalf("expected default, got %d", got)
	}
}

func TestDefaultPaths(t *testing.T) {
	if filepath.Base(DefaultDatabasePath()) != "physbot.db" {
		t.Fatalf("unexpected db path: %s", DefaultDatabasePath())
	}
	if filepath.Dir(DefaultConfigFile()) != ConfigDir() {
		t.Fatalf("config file %s is not under %s", DefaultConfigFile(), ConfigDir())
	}
}

func TestPathsFollowXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables only apply on linux")
	}
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "cfg"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))

	if got, want := ConfigDir(), filepath.Join(tmp, "cfg", "physbot"); got != want {
		t.Fatalf("config dir = %q, want %q", got, want)
	}
	if got, want := DefaultDatabasePath(), filepath.Join(tmp, "cfg", "physbot", "data", "physbot.db"); got != want {
		t.Fatalf("db path = %q, want %q", got, want)
	}
	if got, want := LogDir(), filepath.Join(tmp, "cache", "physbot", "logs"); got != want {
		t.Fatalf("log dir = %q, want %q", got, want)
	}
}

func TestPathsWithoutHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("home lookup differs off linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")

	if got, want := ConfigDir(), filepath.Join("config", "physbot"); got != want {
		t.Fatalf("config dir = %q, want %q", got, want)
	}
	if got, want := LogDir(), filepath.Join("cache", "physbot", "logs"); got != want {
		t.Fatalf("log dir = %q, want %q", got, want)
	}
}
