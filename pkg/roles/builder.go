package roles

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/metrics"
	"github.com/physum/physbot/pkg/storage"
)

// Store is the persistence the role menus need. *storage.Store implements it.
type Store interface {
	CreateRoleMenu(ctx context.Context, v storage.RoleMenuView, components []storage.RoleMenuComponent, roleIDs []string) (int64, error)
	GetAllViews(ctx context.Context) ([]storage.RoleMenuView, error)
	GetViewByMessage(ctx context.Context, messageID string) (*storage.RoleMenuView, error)
	GetRoles(ctx context.Context, viewID int64) ([]string, error)
	GetComponents(ctx context.Context, viewID int64) ([]storage.RoleMenuComponent, error)
	SaveRoles(ctx context.Context, viewID int64, roleIDs []string) error
	DeleteRoles(ctx context.Context, bindings []storage.RoleBinding) (int64, error)
	DeleteView(ctx context.Context, viewID int64) error
}

var _ Store = (*storage.Store)(nil)

// Builder turns persisted rows back into live views.
type Builder struct {
	store    Store
	gw       gateway.Gateway
	registry *Registry

	loadOnce sync.Once
	loaded   chan struct{}
}

// NewBuilder wires a builder. The registry receives restored views.
func NewBuilder(store Store, gw gateway.Gateway, registry *Registry) *Builder {
	return &Builder{
		store:    store,
		gw:       gw,
		registry: registry,
		loaded:   make(chan struct{}),
	}
}

// BuildView reconstructs the view of rec with its persisted tokens. Roles or
// guilds that no longer exist only shorten the option list.
func (b *Builder) BuildView(ctx context.Context, rec storage.RoleMenuView) (*View, error) {
	roleIDs, err := b.store.GetRoles(ctx, rec.ViewID)
	if err != nil {
		return nil, fmt.Errorf("view %d: %w", rec.ViewID, err)
	}
	return b.buildWithRoles(ctx, rec, roleIDs)
}

// buildWithRoles builds the view of rec offering roleIDs instead of the
// persisted bindings.
func (b *Builder) buildWithRoles(ctx context.Context, rec storage.RoleMenuView, roleIDs []string) (*View, error) {
	kind, err := ParseKind(rec.ViewType)
	if err != nil {
		return nil, fmt.Errorf("view %d: %w", rec.ViewID, err)
	}

	rows, err := b.store.GetComponents(ctx, rec.ViewID)
	if err != nil {
		return nil, fmt.Errorf("view %d: %w", rec.ViewID, err)
	}

	roles, err := b.resolveRoles(ctx, rec.GuildID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("view %d: %w", rec.ViewID, err)
	}

	v, err := NewView(kind, roles, ComponentIDsFromRows(rows))
	if err != nil {
		return nil, fmt.Errorf("view %d: %w", rec.ViewID, err)
	}
	return v, nil
}

func (b *Builder) resolveRoles(ctx context.Context, guildID string, ids []string) ([]*discordgo.Role, error) {
	logger := log.DiscordLogger().With("guild_id", guildID)

	g, err := b.gw.Guild(ctx, guildID)
	if err != nil {
		logger.Warn("Guild lookup failed; resolving roles one by one", "error", err)
	} else if g == nil {
		logger.Warn("Guild of role menu is gone; menu will be empty")
		return nil, nil
	}

	roles := make([]*discordgo.Role, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := b.gw.Role(ctx, guildID, id)
		if err != nil {
			logger.Warn("Role lookup failed; leaving it out of the menu", "role_id", id, "error", err)
			continue
		}
		if r == nil {
			logger.Info("Role of menu no longer exists", "role_id", id)
			continue
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// LoadPersistentViews registers every persisted view. Only the first call per
// process does anything; later calls return (0, nil). A view that fails to
// build is logged and skipped.
func (b *Builder) LoadPersistentViews(ctx context.Context) (int, error) {
	var (
		n   int
		err error
		ran bool
	)
	b.loadOnce.Do(func() {
		ran = true
		defer close(b.loaded)
		n, err = b.loadAll(ctx)
	})
	if !ran {
		log.ApplicationLogger().Debug("Persistent role menus already loaded")
	}
	return n, err
}

func (b *Builder) loadAll(ctx context.Context) (int, error) {
	recs, err := b.store.GetAllViews(ctx)
	if err != nil {
		return 0, fmt.Errorf("load role menus: %w", err)
	}

	restored := 0
	for _, rec := range recs {
		v, err := b.BuildView(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return restored, ctx.Err()
			}
			log.ErrorLogger().Error("Skipping role menu that could not be rebuilt",
				"view_id", rec.ViewID, "message_id", rec.MessageID, "error", err)
			continue
		}
		b.registry.Register(rec.MessageID, v)
		restored++
	}

	metrics.RoleMenusRestored.Set(float64(restored))
	log.ApplicationLogger().Info("Persistent role menus restored", "restored", restored, "stored", len(recs))
	return restored, nil
}

// Loaded reports whether LoadPersistentViews has finished.
func (b *Builder) Loaded() bool {
	select {
	case <-b.loaded:
		return true
	default:
		return false
	}
}
