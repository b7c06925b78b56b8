package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/storage"
	"github.com/physum/physbot/pkg/theme"
)

const (
	defaultLimit   = 10
	maxLimit       = 25
	excerptLength  = 200
	permAdminister = int64(discordgo.PermissionAdministrator)
)

// Log reads the moderation log written by the message listener.
type Log interface {
	RecentDeletedMessages(ctx context.Context, guildID, channelID string, limit int) ([]storage.DeletedMessage, error)
	RecentEditedMessages(ctx context.Context, guildID, channelID string, limit int) ([]storage.EditedMessage, error)
}

// RegisterModerationCommands registers slash commands under the /moderation group.
func RegisterModerationCommands(router *core.CommandRouter, log Log) {
	moderationGroup := core.NewGroupCommand("moderation", "Moderation commands", router.GetPermissionChecker())

	moderationGroup.AddSubCommand(newMemberCommand())
	moderationGroup.AddSubCommand(newDeletedCommand(log))
	moderationGroup.AddSubCommand(newEditedCommand(log))

	router.RegisterCommand(moderationGroup)
}

type memberCommand struct{}

func newMemberCommand() *memberCommand { return &memberCommand{} }

func (c *memberCommand) Name() string { return "member" }

func (c *memberCommand) Description() string { return "Show information about a member" }

func (c *memberCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "member",
			Description: "Member to look up (defaults to you)",
			Required:    false,
		},
	}
}

func (c *memberCommand) RequiresGuild() bool { return true }

func (c *memberCommand) Permissions() int64 { return permAdminister }

func (c *memberCommand) Handle(ctx *core.Context) error {
	extractor := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction))

	member := ctx.Interaction.Member
	if id := extractor.ID("member"); id != "" {
		member = resolvedMember(ctx.Interaction, id)
		if member == nil {
			var err error
			member, err = ctx.Session.GuildMember(ctx.GuildID, id, discordgo.WithContext(ctx.Ctx()))
			if err != nil {
				return core.NewCommandError(fmt.Sprintf("Member \"%s\" not found.", id), true)
			}
		}
	}
	if member == nil || member.User == nil {
		return core.NewCommandError("Member not found.", true)
	}

	return core.NewResponseBuilder(ctx.Session).Embed(ctx.Interaction, buildMemberEmbed(member))
}

// resolvedMember joins the partial member and the user Discord resolved for
// a user option.
func resolvedMember(i *discordgo.InteractionCreate, userID string) *discordgo.Member {
	data := i.ApplicationCommandData()
	if data.Resolved == nil || data.Resolved.Members == nil {
		return nil
	}
	m, ok := data.Resolved.Members[userID]
	if !ok {
		return nil
	}
	out := *m
	if out.User == nil && data.Resolved.Users != nil {
		out.User = data.Resolved.Users[userID]
	}
	return &out
}

func buildMemberEmbed(m *discordgo.Member) *discordgo.MessageEmbed {
	created := "unknown"
	if ts, err := discordgo.SnowflakeTimestamp(m.User.ID); err == nil {
		created = discordTime(ts)
	}
	joined := "unknown"
	if !m.JoinedAt.IsZero() {
		joined = discordTime(m.JoinedAt)
	}

	return &discordgo.MessageEmbed{
		Title: m.User.Username,
		Color: theme.MemberInfo(),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "User information",
				Value: fmt.Sprintf("Created: %s\nProfile: %s\nID: %s", created, m.User.Mention(), m.User.ID),
			},
			{
				Name:  "Member information",
				Value: fmt.Sprintf("Joined: %s\n%d roles", joined, len(m.Roles)),
			},
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: m.User.AvatarURL("256")},
	}
}

func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

func logOptions(what string) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionChannel,
			Name:        "channel",
			Description: "Only show " + what + " messages of this channel",
			Required:    false,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "limit",
			Description: fmt.Sprintf("How many entries to show (default %d)", defaultLimit),
			Required:    false,
			MinValue:    floatPtr(1),
			MaxValue:    maxLimit,
		},
	}
}

func floatPtr(f float64) *float64 { return &f }

func readLimit(e *core.OptionExtractor) int {
	limit := int(e.Int("limit"))
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

type deletedCommand struct {
	log Log
}

func newDeletedCommand(log Log) *deletedCommand { return &deletedCommand{log: log} }

func (c *deletedCommand) Name() string { return "deleted" }

func (c *deletedCommand) Description() string { return "Show recently deleted messages" }

func (c *deletedCommand) Options() []*discordgo.ApplicationCommandOption {
	return logOptions("deleted")
}

func (c *deletedCommand) RequiresGuild() bool { return true }

func (c *deletedCommand) Permissions() int64 { return permAdminister }

func (c *deletedCommand) Handle(ctx *core.Context) error {
	extractor := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction))
	rows, err := c.log.RecentDeletedMessages(ctx.Ctx(), ctx.GuildID, extractor.ID("channel"), readLimit(extractor))
	if err != nil {
		return err
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, buildDeletedLine(r))
	}
	return respondLog(ctx, "Deleted messages", theme.MessageDelete(), lines)
}

type editedCommand struct {
	log Log
}

func newEditedCommand(log Log) *editedCommand { return &editedCommand{log: log} }

func (c *editedCommand) Name() string { return "edited" }

func (c *editedCommand) Description() string { return "Show recently edited messages" }

func (c *editedCommand) Options() []*discordgo.ApplicationCommandOption {
	return logOptions("edited")
}

func (c *editedCommand) RequiresGuild() bool { return true }

func (c *editedCommand) Permissions() int64 { return permAdminister }

func (c *editedCommand) Handle(ctx *core.Context) error {
	extractor := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction))
	rows, err := c.log.RecentEditedMessages(ctx.Ctx(), ctx.GuildID, extractor.ID("channel"), readLimit(extractor))
	if err != nil {
		return err
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, buildEditedLine(r))
	}
	return respondLog(ctx, "Edited messages", theme.MessageEdit(), lines)
}

func buildDeletedLine(m storage.DeletedMessage) string {
	return fmt.Sprintf("<t:%d:R> %s in <#%s>: %s",
		m.DeletedAt.Unix(), author(m.UserID), m.ChannelID, excerpt(m.Content))
}

func buildEditedLine(m storage.EditedMessage) string {
	where := fmt.Sprintf("<#%s>", m.ChannelID)
	if m.JumpURL != "" {
		where = fmt.Sprintf("[message](%s)", m.JumpURL)
	}
	return fmt.Sprintf("<t:%d:R> %s in %s: %s → %s",
		m.EditedAt.Unix(), author(m.UserID), where, excerpt(m.ContentBefore), excerpt(m.ContentAfter))
}

func author(userID string) string {
	if userID == "" {
		return "unknown author"
	}
	return "<@" + userID + ">"
}

// excerpt shortens content for a log line; uncached content shows as such.
func excerpt(content string) string {
	if content == "" {
		return "*not cached*"
	}
	content = strings.ReplaceAll(content, "\n", " ")
	if utf8.RuneCountInString(content) > excerptLength {
		content = string([]rune(content)[:excerptLength]) + "…"
	}
	return "`" + strings.ReplaceAll(content, "`", "'") + "`"
}

// buildLogEmbed joins lines into one embed, dropping the oldest ones past
// Discord's description limit.
func respondLog(ctx *core.Context, title string, color int, lines []string) error {
	description, footer := logDigest(lines)
	return core.NewResponseBuilder(ctx.Session).
		Ephemeral().
		WithEmbed().
		WithTitle(title).
		WithColor(color).
		WithFooter(footer).
		WithTimestamp().
		Info(ctx.Interaction, description)
}

// logDigest joins lines into an embed description and, when some did not
// fit, a footer counting them.
func logDigest(lines []string) (description, footer string) {
	const maxDescription = 4096
	if len(lines) == 0 {
		return "Nothing recorded.", ""
	}

	var b strings.Builder
	shown := 0
	for _, l := range lines {
		if b.Len()+len(l)+1 > maxDescription {
			break
		}
		if shown > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
		shown++
	}
	if shown < len(lines) {
		footer = fmt.Sprintf("%d older entries not shown", len(lines)-shown)
	}
	return b.String(), footer
}
