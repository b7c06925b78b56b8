package core

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/log"
)

// ContextBuilder creates contexts for command execution.
type ContextBuilder struct {
	session *discordgo.Session
	checker *PermissionChecker
}

func NewContextBuilder(session *discordgo.Session, checker *PermissionChecker) *ContextBuilder {
	return &ContextBuilder{
		session: session,
		checker: checker,
	}
}

// BuildContext creates the context of one interaction.
func (cb *ContextBuilder) BuildContext(std context.Context, i *discordgo.InteractionCreate) *Context {
	userID := extractUserID(i)
	guildID := i.GuildID

	return &Context{
		Session:     cb.session,
		Interaction: i,
		Logger: log.DiscordLogger().With(
			"interaction_id", i.ID,
			"guild_id", guildID,
			"user_id", userID,
		),
		GuildID:   guildID,
		ChannelID: i.ChannelID,
		UserID:    userID,
		IsOwner:   guildID != "" && cb.checker.IsOwner(guildID, userID),
		ctx:       std,
	}
}

func extractUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	} else if i.User != nil {
		return i.User.ID
	}
	return ""
}

// GetSubCommandName extracts the subcommand name from the interaction.
func GetSubCommandName(i *discordgo.InteractionCreate) string {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Name
	}
	return ""
}

// GetSubCommandOptions returns the options of the invoked subcommand, or the
// direct options when there is none.
func GetSubCommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Options
	}
	return options
}

// ResolvedRole returns a role resolved by Discord for this interaction.
func ResolvedRole(i *discordgo.InteractionCreate, roleID string) (*discordgo.Role, bool) {
	data := i.ApplicationCommandData()
	if data.Resolved == nil || data.Resolved.Roles == nil {
		return nil, false
	}
	r, ok := data.Resolved.Roles[roleID]
	return r, ok
}

// HasFocusedOption finds the focused option (for autocomplete).
func HasFocusedOption(options []*discordgo.ApplicationCommandInteractionDataOption) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range options {
		if opt.Focused {
			return opt, true
		}
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand && len(opt.Options) > 0 {
			if focused, found := HasFocusedOption(opt.Options); found {
				return focused, true
			}
		}
	}
	return nil, false
}

// GetCommandPath returns "command subcommand".
func GetCommandPath(i *discordgo.InteractionCreate) string {
	path := i.ApplicationCommandData().Name

	subCmd := GetSubCommandName(i)
	if subCmd != "" {
		path += " " + subCmd
	}

	return path
}

func IsAutocompleteInteraction(i *discordgo.InteractionCreate) bool {
	return i.Type == discordgo.InteractionApplicationCommandAutocomplete
}

func IsSlashCommandInteraction(i *discordgo.InteractionCreate) bool {
	return i.Type == discordgo.InteractionApplicationCommand
}

func IsComponentInteraction(i *discordgo.InteractionCreate) bool {
	return i.Type == discordgo.InteractionMessageComponent
}
