package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// OptionExtractor reads typed values out of interaction options.
type OptionExtractor struct {
	options []*discordgo.ApplicationCommandInteractionDataOption
}

func NewOptionExtractor(options []*discordgo.ApplicationCommandInteractionDataOption) *OptionExtractor {
	return &OptionExtractor{options: options}
}

func (e *OptionExtractor) get(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range e.options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// String returns the string option name, or "" when absent.
func (e *OptionExtractor) String(name string) string {
	if opt := e.get(name); opt != nil {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

// StringRequired returns the option or a ValidationError.
func (e *OptionExtractor) StringRequired(name string) (string, error) {
	value := strings.TrimSpace(e.String(name))
	if value == "" {
		return "", NewValidationError(name, fmt.Sprintf("Option '%s' is required", name))
	}
	return value, nil
}

// Int returns an integer option. JSON numbers arrive as float64.
func (e *OptionExtractor) Int(name string) int64 {
	if opt := e.get(name); opt != nil {
		if f, ok := opt.Value.(float64); ok {
			return int64(f)
		}
	}
	return 0
}

// ID returns the snowflake of a user, role, channel or mentionable option.
func (e *OptionExtractor) ID(name string) string {
	if opt := e.get(name); opt != nil {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

// PermissionChecker decides whether an invoker may run a command from the
// permissions Discord resolved for them in the interaction.
type PermissionChecker struct {
	session *discordgo.Session
}

func NewPermissionChecker(session *discordgo.Session) *PermissionChecker {
	return &PermissionChecker{session: session}
}

// HasPermissions reports whether the invoker holds every bit of required.
// Administrators and the guild owner always pass.
func (pc *PermissionChecker) HasPermissions(i *discordgo.InteractionCreate, required int64) bool {
	if required == 0 {
		return true
	}
	if i.Member == nil {
		return false
	}
	perms := i.Member.Permissions
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if perms&required == required {
		return true
	}
	return pc.IsOwner(i.GuildID, extractUserID(i))
}

// IsOwner checks whether the user owns the guild, state cache first.
func (pc *PermissionChecker) IsOwner(guildID, userID string) bool {
	if guildID == "" || userID == "" || pc.session == nil {
		return false
	}
	if pc.session.State != nil {
		if g, _ := pc.session.State.Guild(guildID); g != nil {
			return g.OwnerID == userID
		}
	}
	g, err := pc.session.Guild(guildID)
	if err != nil || g == nil {
		return false
	}
	return g.OwnerID == userID
}

var (
	roleMentionRe = regexp.MustCompile(`^<@&(\d+)>$`)
	snowflakeRe   = regexp.MustCompile(`^\d{15,21}$`)
	messageLinkRe = regexp.MustCompile(`^https://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(\d+|@me)/(\d+)/(\d+)$`)
)

// ParseRoleIDs splits a list of role mentions or ids separated by spaces or
// commas. Duplicates are dropped, order is kept. Tokens that are neither are
// returned in invalid.
func ParseRoleIDs(input string) (ids []string, invalid []string) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		id := f
		if m := roleMentionRe.FindStringSubmatch(f); m != nil {
			id = m[1]
		}
		if !snowflakeRe.MatchString(id) {
			invalid = append(invalid, f)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}

// MessageRef points at a message given as an id or a link.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// ParseMessageRef accepts a bare message id, "channelID-messageID" as copied
// by the Discord client, or a message link.
func ParseMessageRef(input string) (MessageRef, error) {
	s := strings.TrimSpace(input)
	if m := messageLinkRe.FindStringSubmatch(s); m != nil {
		return MessageRef{GuildID: m[1], ChannelID: m[2], MessageID: m[3]}, nil
	}
	if ch, msg, ok := strings.Cut(s, "-"); ok && snowflakeRe.MatchString(ch) && snowflakeRe.MatchString(msg) {
		return MessageRef{ChannelID: ch, MessageID: msg}, nil
	}
	if snowflakeRe.MatchString(s) {
		return MessageRef{MessageID: s}, nil
	}
	return MessageRef{}, NewValidationError("message", fmt.Sprintf("Message \"%s\" not found.", s))
}

// CompareCommands reports whether two command definitions are equivalent.
func CompareCommands(a, b *discordgo.ApplicationCommand) bool {
	type comparable struct {
		Name        string                                `json:"name"`
		Description string                                `json:"description"`
		Options     []*discordgo.ApplicationCommandOption `json:"options"`
		Permissions int64                                 `json:"permissions"`
	}
	perms := func(c *discordgo.ApplicationCommand) int64 {
		if c.DefaultMemberPermissions == nil {
			return 0
		}
		return *c.DefaultMemberPermissions
	}
	ba, _ := json.Marshal(comparable{a.Name, a.Description, a.Options, perms(a)})
	bb, _ := json.Marshal(comparable{b.Name, b.Description, b.Options, perms(b)})
	return string(ba) == string(bb)
}
