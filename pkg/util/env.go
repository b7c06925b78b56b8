package util

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv populates missing environment variables from .env files.
// It tries, in order, every explicit path, ./.env and $HOME/.local/bin/.env.
// Variables already present in the environment are never overwritten.
// It returns the files that were actually loaded.
func LoadDotEnv(paths ...string) []string {
	candidates := append([]string{}, paths...)
	candidates = append(candidates, ".env")
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", ".env"))
	}

	var loaded []string
	seen := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		// godotenv.Load does not override variables that are already set.
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// EnvInt64 parses the variable as an integer, returning def on failure.
func EnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
