// Package gateway narrows the Discord API down to the calls the bot's
// features make, so they can run against a fake in tests.
package gateway

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Gateway is the subset of Discord the role menus, FAQ and moderation
// features rely on.
type Gateway interface {
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	// EditComponents replaces the components of a message, leaving its content untouched.
	EditComponents(ctx context.Context, channelID, messageID string, components []discordgo.MessageComponent) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// Guild returns (nil, nil) when the bot cannot see the guild.
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	// Role returns (nil, nil) when the role no longer exists.
	Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error)

	GrantRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	RevokeRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
}
