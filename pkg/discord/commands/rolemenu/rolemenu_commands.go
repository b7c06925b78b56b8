// Package rolemenu exposes role menus as the /roles slash command and routes
// clicks on menu components back to the live menus.
package rolemenu

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/errutil"
	"github.com/physum/physbot/pkg/roles"
	"github.com/physum/physbot/pkg/theme"
)

const permManageRoles int64 = discordgo.PermissionManageRoles

// RegisterRoleCommands registers /roles and the component handler of the
// menus it creates.
func RegisterRoleCommands(router *core.CommandRouter, svc *roles.Service, gw gateway.Gateway) {
	group := core.NewGroupCommand("roles", "Create and manage role selection menus", router.GetPermissionChecker())

	group.AddSubCommand(newCreateCommand(svc, gw, roles.KindSelect))
	group.AddSubCommand(newCreateCommand(svc, gw, roles.KindToggle))
	group.AddSubCommand(newEditCommand(svc, gw, editAdd))
	group.AddSubCommand(newEditCommand(svc, gw, editDelete))

	router.RegisterCommand(group)
	router.RegisterComponentHandler(NewComponentHandler(svc.Registry(), gw))
}

type createCommand struct {
	svc  *roles.Service
	gw   gateway.Gateway
	kind roles.Kind
}

func newCreateCommand(svc *roles.Service, gw gateway.Gateway, kind roles.Kind) *createCommand {
	return &createCommand{svc: svc, gw: gw, kind: kind}
}

func (c *createCommand) Name() string { return c.kind.String() }

func (c *createCommand) Description() string {
	if c.kind == roles.KindToggle {
		return "Create a role toggle menu, to select only one role from the list"
	}
	return "Create a role selection menu, to select many roles from the list"
}

func (c *createCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "roles",
			Description: "Role mentions or IDs, separated by spaces or commas",
			Required:    true,
		},
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel to post the menu in (defaults to this one)",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "content",
			Description: "Text shown above the menu",
			MaxLength:   2000,
		},
	}
}

func (c *createCommand) RequiresGuild() bool { return true }

func (c *createCommand) Permissions() int64 { return permManageRoles }

func (c *createCommand) Handle(ctx *core.Context) error {
	extractor := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction))

	input, err := extractor.StringRequired("roles")
	if err != nil {
		return err
	}
	picked, err := resolveRoleList(ctx.Ctx(), c.gw, ctx.GuildID, input)
	if err != nil {
		return err
	}

	channelID := extractor.ID("channel")
	if channelID == "" {
		channelID = ctx.ChannelID
	}

	menu, err := c.svc.CreateMenu(ctx.Ctx(), roles.CreateMenuRequest{
		Kind:      c.kind,
		GuildID:   ctx.GuildID,
		ChannelID: channelID,
		Content:   extractor.String("content"),
		Roles:     picked,
	})
	if err != nil {
		return userError(err, channelID, "")
	}

	ctx.Logger.Info("Role menu posted", "message_id", menu.MessageID, "kind", c.kind)
	return core.NewResponseBuilder(ctx.Session).
		Ephemeral().
		WithEmbed().
		WithTitle("Role menu created.").
		WithColor(theme.RoleMenu()).
		Success(ctx.Interaction, fmt.Sprintf("[Menu](%s) posted in <#%s> with %d roles.", menu.JumpURL(), channelID, len(menu.View.Roles())))
}

type editAction int

const (
	editAdd editAction = iota
	editDelete
)

type editCommand struct {
	svc    *roles.Service
	gw     gateway.Gateway
	action editAction
}

func newEditCommand(svc *roles.Service, gw gateway.Gateway, action editAction) *editCommand {
	return &editCommand{svc: svc, gw: gw, action: action}
}

func (c *editCommand) Name() string {
	if c.action == editDelete {
		return "delete"
	}
	return "add"
}

func (c *editCommand) Description() string {
	if c.action == editDelete {
		return "Delete a role from the selection list"
	}
	return "Add a role to the selection list"
}

func (c *editCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "message",
			Description: "ID or link of the menu message",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        "role",
			Description: "Role to add or delete",
			Required:    true,
		},
	}
}

func (c *editCommand) RequiresGuild() bool { return true }

func (c *editCommand) Permissions() int64 { return permManageRoles }

func (c *editCommand) Handle(ctx *core.Context) error {
	extractor := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction))

	rawMessage, err := extractor.StringRequired("message")
	if err != nil {
		return err
	}
	ref, err := core.ParseMessageRef(rawMessage)
	if err != nil {
		return err
	}
	if ref.GuildID != "" && ref.GuildID != ctx.GuildID {
		return userError(roles.ErrNoSuchMenu, "", "")
	}

	roleID := extractor.ID("role")
	role, ok := core.ResolvedRole(ctx.Interaction, roleID)
	if !ok {
		role, err = c.gw.Role(ctx.Ctx(), ctx.GuildID, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			return core.NewValidationError("role", fmt.Sprintf("Role \"%s\" not found.", roleID))
		}
	}

	var (
		menu *roles.Menu
		verb string
	)
	if c.action == editDelete {
		menu, err = c.svc.RemoveRole(ctx.Ctx(), ctx.GuildID, ref.MessageID, role)
		verb = "removed from"
	} else {
		if err := offerable(ctx.GuildID, role); err != nil {
			return err
		}
		menu, err = c.svc.AddRole(ctx.Ctx(), ctx.GuildID, ref.MessageID, role)
		verb = "added to"
	}
	if err != nil {
		return userError(err, ref.ChannelID, role.ID)
	}

	ctx.Logger.Info("Role menu edited", "message_id", menu.MessageID, "role_id", role.ID, "action", c.Name())
	return core.NewResponseBuilder(ctx.Session).
		WithEmbed().
		WithTitle("Successfully edited selection.").
		Success(ctx.Interaction, fmt.Sprintf("Role %s %s the [message](%s).", role.Mention(), verb, menu.JumpURL()))
}

// resolveRoleList turns the roles option into live guild roles.
func resolveRoleList(ctx context.Context, gw gateway.Gateway, guildID, input string) ([]*discordgo.Role, error) {
	ids, invalid := core.ParseRoleIDs(input)
	if len(invalid) > 0 {
		return nil, core.NewValidationError("roles", fmt.Sprintf("Role \"%s\" not found.", invalid[0]))
	}
	if len(ids) == 0 {
		return nil, core.NewValidationError("roles", "Provide at least one role.")
	}
	if len(ids) > roles.MaxRoles {
		return nil, core.NewValidationError("roles", fmt.Sprintf("A role menu holds at most %d roles.", roles.MaxRoles))
	}

	out := make([]*discordgo.Role, 0, len(ids))
	for _, id := range ids {
		r, err := gw.Role(ctx, guildID, id)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, core.NewValidationError("roles", fmt.Sprintf("Role \"%s\" not found.", id))
		}
		if err := offerable(guildID, r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// offerable rejects roles members can never be given by a bot.
func offerable(guildID string, r *discordgo.Role) error {
	if r.ID == guildID {
		return core.NewValidationError("roles", "The @everyone role cannot be offered.")
	}
	if r.Managed {
		return core.NewValidationError("roles", fmt.Sprintf("Role %s is managed by an integration and cannot be offered.", r.Mention()))
	}
	return nil
}

// userError maps service errors the invoker can act on to command errors.
func userError(err error, channelID, roleID string) error {
	var partial *roles.PartialFailureError
	switch {
	case errors.Is(err, roles.ErrNoSuchMenu):
		return core.NewCommandError("There is no role menu on this message.", true)
	case errors.Is(err, roles.ErrRoleAlreadyBound):
		return core.NewCommandError(fmt.Sprintf("Role <@&%s> is already on this menu.", roleID), true)
	case errors.Is(err, roles.ErrRoleNotBound):
		return core.NewCommandError(fmt.Sprintf("Role <@&%s> is not on this menu.", roleID), true)
	case errors.Is(err, roles.ErrMenuFull):
		return core.NewCommandError(fmt.Sprintf("A role menu holds at most %d roles.", roles.MaxRoles), true)
	case errors.As(err, &partial) && partial.Edited:
		if partial.Compensated {
			return core.NewCommandError("The menu could not be saved, so its message was put back as it was. Please retry.", true)
		}
		return core.NewCommandError(fmt.Sprintf(
			"The menu could not be saved and message %s shows roles it does not offer. Please retry.",
			partial.MessageID), true)
	case errors.As(err, &partial):
		if partial.Compensated {
			return core.NewCommandError("The menu was posted but could not be saved, so it was removed again. Please retry.", true)
		}
		return core.NewCommandError(fmt.Sprintf(
			"The menu was posted but could not be saved, and message %s could not be removed. Please delete it.",
			partial.MessageID), true)
	case errutil.IsDiscordForbidden(err):
		if channelID != "" {
			return core.NewCommandError(fmt.Sprintf("I am not allowed to post or edit messages in <#%s>.", channelID), true)
		}
		return core.NewCommandError("I am not allowed to edit that message.", true)
	case errutil.IsDiscordNotFound(err):
		return core.NewCommandError("That channel or message no longer exists.", true)
	}
	return err
}
