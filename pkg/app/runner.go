package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/physum/physbot/pkg/config"
	"github.com/physum/physbot/pkg/control"
	"github.com/physum/physbot/pkg/discord/cache"
	"github.com/physum/physbot/pkg/discord/commands"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/discord/logging"
	"github.com/physum/physbot/pkg/discord/session"
	"github.com/physum/physbot/pkg/faq"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/roles"
	"github.com/physum/physbot/pkg/storage"
	"github.com/physum/physbot/pkg/task"
	"github.com/physum/physbot/pkg/theme"
)

// CachePruneInterval is how often expired cached messages are dropped.
const CachePruneInterval = 10 * time.Minute

// SetupLogging configures the category loggers from cfg.
func SetupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	return log.SetupLogger(log.Config{
		Dir:        cfg.Dir,
		Level:      level,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		NoColor:    cfg.NoColor,
	})
}

// Migrate creates or upgrades the database schema at path and exits.
func Migrate(ctx context.Context, path string) error {
	store := storage.NewStore(path)
	if err := store.Init(); err != nil {
		return fmt.Errorf("initialize SQLite store: %w", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping SQLite store: %w", err)
	}
	log.DatabaseLogger().Info("Database schema is up to date", "path", path)
	return nil
}

// Run bootstraps the bot and blocks until ctx is cancelled or a component
// fails.
func Run(ctx context.Context, cfg *config.Config) error {
	started := time.Now()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := theme.SetCurrent(cfg.Discord.Theme); err != nil {
		log.ApplicationLogger().Warn("Unknown theme, keeping the default", "theme", cfg.Discord.Theme, "error", err)
	}

	log.ApplicationLogger().Info(formatStartupMessage(AppName, Version))

	store := storage.NewStore(cfg.Database.Path)
	if err := store.Init(); err != nil {
		return fmt.Errorf("initialize SQLite store: %w", err)
	}
	defer store.Close()

	var restorer atomic.Pointer[roles.Builder]
	ctrl := control.NewServer(cfg.Control.Listen, func() bool {
		b := restorer.Load()
		return b != nil && b.Loaded()
	})
	if err := ctrl.Start(); err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Stop(context.Background()); err != nil {
			log.ErrorLogger().Error("Control server did not stop cleanly", "error", err)
		}
	}()

	s, err := session.NewDiscordSession(cfg.Discord.Token, onReady(cfg.Discord.Status))
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	defer s.Close()
	if s.State == nil || s.State.User == nil {
		return fmt.Errorf("discord session state not properly initialized")
	}
	log.DiscordLogger().Info("Authenticated", "user", s.State.User.Username, "id", s.State.User.ID)

	gw := gateway.NewDiscord(s)
	builder := roles.NewBuilder(store, gw, roles.NewRegistry())
	restorer.Store(builder)
	rolesSvc := roles.NewService(builder)

	if _, err := builder.LoadPersistentViews(ctx); err != nil {
		return fmt.Errorf("restore role menus: %w", err)
	}

	messages := cache.NewMessageCache(cache.DefaultMessageTTL, cache.DefaultMessageLimit)
	writes := task.NewRouter(task.Defaults())
	defer writes.Close()
	recorder := logging.NewQueuedRecorder(writes, store)
	events := logging.NewMessageEventService(recorder, rolesSvc, messages, cfg.Moderation.Enabled)
	if err := events.Start(s); err != nil {
		return fmt.Errorf("start message events: %w", err)
	}
	defer func() { _ = events.Stop() }()

	deps := commands.Dependencies{
		Roles:   rolesSvc,
		Gateway: gw,
		FAQ:     faq.NewService(store),
	}
	if cfg.Moderation.Enabled {
		deps.ModerationLog = store
	}
	if err := commands.NewCommandHandler(s, cfg.Discord.GuildID, deps).SetupCommands(); err != nil {
		return fmt.Errorf("configure slash commands: %w", err)
	}

	log.ApplicationLogger().Info("Bot initialized", "took", time.Since(started).Round(time.Millisecond))
	log.ApplicationLogger().Info("Bot running. Press Ctrl+C to stop...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pruneLoop(gctx, messages, CachePruneInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.ApplicationLogger().Info("Stopping bot...")
		return nil
	})
	return g.Wait()
}

// onReady logs the connected guilds, like on_ready did, and sets the status.
func onReady(status string) session.Prepare {
	status = strings.TrimSpace(status)
	return func(s *discordgo.Session) {
		s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			log.DiscordLogger().Info("Connected to guilds", "guilds", len(r.Guilds))
			if status != "" {
				if err := s.UpdateGameStatus(0, status); err != nil {
					log.DiscordLogger().Warn("Failed to set status", "error", err)
				}
			}
		})
	}
}

func pruneLoop(ctx context.Context, messages *cache.MessageCache, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := messages.Prune(); n > 0 {
				log.DiscordLogger().Debug("Pruned cached messages", "expired", n, "kept", messages.Len())
			}
		}
	}
}

func formatStartupMessage(appName, version string) string {
	appName = strings.TrimSpace(appName)
	version = strings.TrimSpace(version)
	if version == "" {
		return fmt.Sprintf("Starting %s...", appName)
	}
	return fmt.Sprintf("Starting %s %s...", appName, version)
}
