package roles

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/metrics"
	"github.com/physum/physbot/pkg/storage"
)

const compensateTimeout = 10 * time.Second

// DefaultContent is the message text of a menu created without one.
const DefaultContent = "Select from the following roles:"

var (
	ErrNoSuchMenu       = errors.New("there is no role menu on this message")
	ErrRoleAlreadyBound = errors.New("the role is already on this menu")
	ErrRoleNotBound     = errors.New("the role is not on this menu")
	ErrMenuFull         = fmt.Errorf("a role menu holds at most %d roles", MaxRoles)
)

// PartialFailureError reports a menu message that was changed on Discord but
// whose change could not be saved. Edited tells an edit of an existing menu
// from a new post. Compensated tells whether the message was deleted (new
// post) or reverted (edit) again.
type PartialFailureError struct {
	ChannelID   string
	MessageID   string
	Edited      bool
	Compensated bool
	Err         error
}

func (e *PartialFailureError) Error() string {
	if e.Edited {
		state := "left showing the change"
		if e.Compensated {
			state = "reverted"
		}
		return fmt.Sprintf("role menu message %s was edited but the change was not saved (message %s): %v", e.MessageID, state, e.Err)
	}
	state := "left in place"
	if e.Compensated {
		state = "deleted"
	}
	return fmt.Sprintf("role menu message %s was posted but not saved (message %s): %v", e.MessageID, state, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// CreateMenuRequest describes a new menu.
type CreateMenuRequest struct {
	Kind      Kind
	GuildID   string
	ChannelID string
	Content   string
	Roles     []*discordgo.Role
}

// Menu is a posted and persisted role menu.
type Menu struct {
	ViewID    int64
	GuildID   string
	ChannelID string
	MessageID string
	View      *View
}

// JumpURL links to the menu's message.
func (m *Menu) JumpURL() string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.MessageID)
}

// Service creates and edits role menus.
type Service struct {
	store    Store
	gw       gateway.Gateway
	builder  *Builder
	registry *Registry
}

// NewService wires a service sharing builder's store, gateway and registry.
func NewService(builder *Builder) *Service {
	return &Service{
		store:    builder.store,
		gw:       builder.gw,
		builder:  builder,
		registry: builder.registry,
	}
}

// Registry returns the registry interactions are dispatched through.
func (s *Service) Registry() *Registry { return s.registry }

// Builder returns the builder that restores persisted menus.
func (s *Service) Builder() *Builder { return s.builder }

// CreateMenu posts a new menu and persists it in one transaction. When the
// write fails the posted message is deleted and a *PartialFailureError is
// returned.
func (s *Service) CreateMenu(ctx context.Context, req CreateMenuRequest) (*Menu, error) {
	v, err := NewView(req.Kind, req.Roles, nil)
	if err != nil {
		return nil, err
	}
	content := req.Content
	if content == "" {
		content = DefaultContent
	}

	msg, err := s.gw.SendMessage(ctx, req.ChannelID, &discordgo.MessageSend{
		Content:         content,
		Components:      v.Components(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		return nil, fmt.Errorf("post role menu: %w", err)
	}

	viewID, err := s.store.CreateRoleMenu(ctx,
		storage.RoleMenuView{
			GuildID:   req.GuildID,
			ChannelID: req.ChannelID,
			MessageID: msg.ID,
			ViewType:  req.Kind.String(),
		},
		v.ids.Rows(req.Kind),
		v.RoleIDs(),
	)
	if err != nil {
		return nil, s.compensate(req.ChannelID, msg.ID, err)
	}

	s.registry.Register(msg.ID, v)
	metrics.RoleMenusCreated.WithLabelValues(req.Kind.String()).Inc()
	log.ApplicationLogger().Info("Role menu created",
		"view_id", viewID, "kind", req.Kind, "guild_id", req.GuildID,
		"channel_id", req.ChannelID, "message_id", msg.ID, "roles", len(v.roles))

	return &Menu{
		ViewID:    viewID,
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		MessageID: msg.ID,
		View:      v,
	}, nil
}

func (s *Service) compensate(channelID, messageID string, cause error) error {
	// The request context may be what failed the write.
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	perr := &PartialFailureError{ChannelID: channelID, MessageID: messageID, Err: cause}
	if err := s.gw.DeleteMessage(ctx, channelID, messageID); err != nil {
		log.ErrorLogger().Error("Could not delete unsaved role menu message",
			"channel_id", channelID, "message_id", messageID, "error", err)
	} else {
		perr.Compensated = true
	}
	log.ErrorLogger().Error("Role menu partially created", "error", perr)
	return perr
}

// AddRole binds role to the menu on messageID and refreshes the message.
func (s *Service) AddRole(ctx context.Context, guildID, messageID string, role *discordgo.Role) (*Menu, error) {
	return s.editRoles(ctx, guildID, messageID, role.ID, roleEdit{
		plan: func(bound []string) ([]string, error) {
			if slices.Contains(bound, role.ID) {
				return nil, ErrRoleAlreadyBound
			}
			if len(bound) >= MaxRoles {
				return nil, ErrMenuFull
			}
			return append(slices.Clone(bound), role.ID), nil
		},
		commit: func(ctx context.Context, viewID int64) error {
			return s.store.SaveRoles(ctx, viewID, []string{role.ID})
		},
	})
}

// RemoveRole unbinds role from the menu on messageID and refreshes the message.
func (s *Service) RemoveRole(ctx context.Context, guildID, messageID string, role *discordgo.Role) (*Menu, error) {
	return s.editRoles(ctx, guildID, messageID, role.ID, roleEdit{
		plan: func(bound []string) ([]string, error) {
			if !slices.Contains(bound, role.ID) {
				return nil, ErrRoleNotBound
			}
			return slices.DeleteFunc(slices.Clone(bound), func(id string) bool { return id == role.ID }), nil
		},
		commit: func(ctx context.Context, viewID int64) error {
			_, err := s.store.DeleteRoles(ctx, []storage.RoleBinding{{RoleID: role.ID, ViewID: viewID}})
			return err
		},
	})
}

// roleEdit is one change of a menu's bindings. plan returns the role ids the
// menu offers afterwards; commit writes the change.
type roleEdit struct {
	plan   func(bound []string) ([]string, error)
	commit func(ctx context.Context, viewID int64) error
}

// editRoles shows the planned role set on the message before saving it, so a
// failed edit leaves the menu untouched and can simply be retried. A failed
// save reverts the message and returns a *PartialFailureError.
func (s *Service) editRoles(ctx context.Context, guildID, messageID, roleID string, edit roleEdit) (*Menu, error) {
	rec, err := s.store.GetViewByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.GuildID != guildID {
		return nil, ErrNoSuchMenu
	}

	bound, err := s.store.GetRoles(ctx, rec.ViewID)
	if err != nil {
		return nil, err
	}
	next, err := edit.plan(bound)
	if err != nil {
		return nil, err
	}

	v, err := s.builder.buildWithRoles(ctx, *rec, next)
	if err != nil {
		return nil, err
	}
	if err := s.gw.EditComponents(ctx, rec.ChannelID, rec.MessageID, v.Components()); err != nil {
		return nil, fmt.Errorf("refresh role menu message: %w", err)
	}
	if err := edit.commit(ctx, rec.ViewID); err != nil {
		return nil, s.revert(*rec, bound, err)
	}
	s.registry.Register(rec.MessageID, v)

	log.ApplicationLogger().Info("Role menu edited",
		"view_id", rec.ViewID, "message_id", rec.MessageID, "role_id", roleID, "roles", len(v.roles))

	return &Menu{
		ViewID:    rec.ViewID,
		GuildID:   rec.GuildID,
		ChannelID: rec.ChannelID,
		MessageID: rec.MessageID,
		View:      v,
	}, nil
}

// revert puts the saved role set back on a message whose edit could not be
// saved.
func (s *Service) revert(rec storage.RoleMenuView, bound []string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	perr := &PartialFailureError{ChannelID: rec.ChannelID, MessageID: rec.MessageID, Edited: true, Err: cause}
	old, ok := s.registry.View(rec.MessageID)
	if !ok {
		v, err := s.builder.buildWithRoles(ctx, rec, bound)
		if err != nil {
			log.ErrorLogger().Error("Could not rebuild role menu to revert it",
				"view_id", rec.ViewID, "message_id", rec.MessageID, "error", err)
		}
		old = v
	}
	if old != nil {
		if err := s.gw.EditComponents(ctx, rec.ChannelID, rec.MessageID, old.Components()); err != nil {
			log.ErrorLogger().Error("Could not revert role menu message",
				"channel_id", rec.ChannelID, "message_id", rec.MessageID, "error", err)
		} else {
			perr.Compensated = true
		}
	}
	log.ErrorLogger().Error("Role menu partially edited", "error", perr)
	return perr
}

// ForgetMessage drops the menu shown on a deleted message. It reports
// whether there was one.
func (s *Service) ForgetMessage(ctx context.Context, messageID string) (bool, error) {
	rec, err := s.store.GetViewByMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	s.registry.Unregister(messageID)
	if rec == nil {
		return false, nil
	}
	if err := s.store.DeleteView(ctx, rec.ViewID); err != nil {
		return false, err
	}
	log.ApplicationLogger().Info("Role menu message deleted; menu removed",
		"view_id", rec.ViewID, "message_id", messageID)
	return true, nil
}
