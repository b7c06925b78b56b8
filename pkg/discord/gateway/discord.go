package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/errutil"
)

// Discord implements Gateway over a discordgo session. Lookups hit the state
// cache first and fall back to REST.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps s.
func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{session: s}
}

// Session exposes the wrapped session.
func (d *Discord) Session() *discordgo.Session {
	return d.session
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	var out *discordgo.Message
	err := errutil.HandleDiscordError("send_message", func() error {
		m, err := d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("send message to channel %s: %w", channelID, err)
		}
		out = m
		return nil
	})
	return out, err
}

func (d *Discord) EditComponents(ctx context.Context, channelID, messageID string, components []discordgo.MessageComponent) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Components = &components
	return errutil.HandleDiscordError("edit_message", func() error {
		if _, err := d.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("edit message %s: %w", messageID, err)
		}
		return nil
	})
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return errutil.HandleDiscordError("delete_message", func() error {
		if err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("delete message %s: %w", messageID, err)
		}
		return nil
	})
}

func (d *Discord) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if d.session.State != nil {
		if g, err := d.session.State.Guild(guildID); err == nil {
			return g, nil
		}
	}
	g, err := d.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		if errutil.IsDiscordNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return g, nil
}

func (d *Discord) Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error) {
	if d.session.State != nil {
		r, err := d.session.State.Role(guildID, roleID)
		if err == nil {
			return r, nil
		}
		// A cached guild without the role means the role is gone.
		if errors.Is(err, discordgo.ErrStateNotFound) {
			if _, gerr := d.session.State.Guild(guildID); gerr == nil {
				return nil, nil
			}
		}
	}
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		if errutil.IsDiscordNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch roles of guild %s: %w", guildID, err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return r, nil
		}
	}
	return nil, nil
}

func (d *Discord) GrantRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	return errutil.HandleDiscordError("grant_roles", func() error {
		for _, id := range roleIDs {
			if err := d.session.GuildMemberRoleAdd(guildID, userID, id, discordgo.WithContext(ctx)); err != nil {
				return fmt.Errorf("grant role %s to %s: %w", id, userID, err)
			}
		}
		return nil
	})
}

func (d *Discord) RevokeRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	return errutil.HandleDiscordError("revoke_roles", func() error {
		for _, id := range roleIDs {
			if err := d.session.GuildMemberRoleRemove(guildID, userID, id, discordgo.WithContext(ctx)); err != nil {
				return fmt.Errorf("revoke role %s from %s: %w", id, userID, err)
			}
		}
		return nil
	})
}

var _ Gateway = (*Discord)(nil)
