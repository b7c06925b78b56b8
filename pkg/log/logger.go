// Package log provides the categorized structured loggers used across the bot.
//
// Every category writes to the console through a tint handler and, once
// SetupLogger has been called with a directory, to its own rotating JSON file.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category selects which logger (and log file) a record goes to.
type Category string

const (
	Application   Category = "application"
	DiscordEvents Category = "discord_events"
	Database      Category = "database"
	Errors        Category = "error"
)

var categories = []Category{Application, DiscordEvents, Database, Errors}

// Config controls where and how much the loggers write.
type Config struct {
	// Dir receives one rotating file per category. Empty disables file output.
	Dir        string
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console defaults to os.Stderr.
	Console io.Writer
	NoColor bool
}

var (
	mu      sync.RWMutex
	loggers = defaultLoggers()
	files   []*lumberjack.Logger
)

func defaultLoggers() map[Category]*slog.Logger {
	out := make(map[Category]*slog.Logger, len(categories))
	h := tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo})
	for _, c := range categories {
		out[c] = slog.New(h).With("category", string(c))
	}
	return out
}

// SetupLogger (re)builds every category logger from cfg. Files opened by a
// previous call are closed.
func SetupLogger(cfg Config) error {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	consoleHandler := tint.NewHandler(console, &tint.Options{
		Level:   cfg.Level,
		NoColor: cfg.NoColor,
	})

	next := make(map[Category]*slog.Logger, len(categories))
	var opened []*lumberjack.Logger
	for _, c := range categories {
		handlers := []slog.Handler{consoleHandler}
		if cfg.Dir != "" {
			lj := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.Dir, string(c)+".log"),
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			}
			opened = append(opened, lj)
			handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: cfg.Level}))
		}
		next[c] = slog.New(fanout(handlers)).With("category", string(c))
	}

	mu.Lock()
	old := files
	loggers = next
	files = opened
	mu.Unlock()

	for _, f := range old {
		_ = f.Close()
	}
	return nil
}

// Sync closes the rotating files. Loggers keep writing to the console.
func Sync() error {
	mu.Lock()
	old := files
	files = nil
	mu.Unlock()

	var errs []error
	for _, f := range old {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// For returns the logger of a category, falling back to the application logger.
func For(c Category) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	return loggers[Application]
}

func ApplicationLogger() *slog.Logger { return For(Application) }
func DiscordLogger() *slog.Logger     { return For(DiscordEvents) }
func DatabaseLogger() *slog.Logger    { return For(Database) }
func ErrorLogger() *slog.Logger       { return For(Errors) }

// ParseLevel accepts slog level names case-insensitively ("debug", "INFO", ...).
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// discordgo log levels, see discordgo.LogError..LogDebug.
var discordgoLevels = map[int]slog.Level{
	0: slog.LevelError,
	1: slog.LevelWarn,
	2: slog.LevelInfo,
	3: slog.LevelDebug,
}

// DiscordgoLogger adapts discordgo's package logger onto the discord category.
// Assign it to discordgo.Logger.
func DiscordgoLogger(msgL, _ int, format string, a ...any) {
	level, ok := discordgoLevels[msgL]
	if !ok {
		level = slog.LevelInfo
	}
	msg := strings.ReplaceAll(fmt.Sprintf(format, a...), "\n", " ")
	DiscordLogger().Log(context.Background(), level, msg, "source", "discordgo")
}

type fanoutHandler []slog.Handler

func fanout(hs []slog.Handler) slog.Handler {
	if len(hs) == 1 {
		return hs[0]
	}
	return fanoutHandler(hs)
}

func (f fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
