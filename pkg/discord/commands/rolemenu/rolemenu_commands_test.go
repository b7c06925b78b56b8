package rolemenu

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/discord/gateway/gatewaytest"
	"github.com/physum/physbot/pkg/roles"
	"github.com/physum/physbot/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	guildID   = "100000000000000001"
	channelID = "300000000000000001"
	userID    = "400000000000000001"
	roleA     = "200000000000000011"
	roleB     = "200000000000000012"
	roleC     = "200000000000000013"
)

type harness struct {
	session *discordgo.Session
	rt      *gatewaytest.Transport
	gw      *gatewaytest.Fake
	svc     *roles.Service
	router  *core.CommandRouter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storage.NewStore(filepath.Join(t.TempDir(), "physbot.db"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	gw := gatewaytest.New()
	gw.AddGuild(guildID,
		&discordgo.Role{ID: roleA, Name: "Physics"},
		&discordgo.Role{ID: roleB, Name: "Maths"},
		&discordgo.Role{ID: roleC, Name: "Chemistry"},
		&discordgo.Role{ID: "200000000000000099", Name: "Bot", Managed: true},
	)

	rt := gatewaytest.NewTransport(nil)
	rt.Fallback = gatewaytest.Reply(http.StatusNoContent, "")
	session := gatewaytest.NewSession(t, rt)
	require.NoError(t, session.State.GuildAdd(&discordgo.Guild{ID: guildID, OwnerID: "owner"}))

	svc := roles.NewService(roles.NewBuilder(store, gw, roles.NewRegistry()))
	router := core.NewCommandRouter(session)
	RegisterRoleCommands(router, svc, gw)

	return &harness{session: session, rt: rt, gw: gw, svc: svc, router: router}
}

func (h *harness) slash(sub string, perms int64, opts []*discordgo.ApplicationCommandInteractionDataOption, resolved *discordgo.ApplicationCommandInteractionDataResolved) {
	h.router.HandleInteraction(h.session, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-" + sub,
			AppID:     "app",
			Token:     "token",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: channelID,
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID}, Permissions: perms},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "roles",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
				},
				Resolved: resolved,
			},
		},
	})
}

func (h *harness) click(customID string, values ...string) {
	h.router.HandleInteraction(h.session, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-click",
			AppID:     "app",
			Token:     "token",
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   guildID,
			ChannelID: channelID,
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: h.gw.MemberRoles(guildID, userID)},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: customID,
				Values:   values,
			},
		},
	})
}

func (h *harness) lastResponse(t *testing.T) discordgo.InteractionResponse {
	t.Helper()
	calls := h.rt.Callbacks()
	require.NotEmpty(t, calls)
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal([]byte(calls[len(calls)-1].Body), &resp))
	return resp
}

func str(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func roleOpt(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: id}
}

func (h *harness) createMenu(t *testing.T, kind roles.Kind, roleList string) string {
	t.Helper()
	before := len(h.gw.Sent)
	h.slash(kind.String(), discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{str("roles", roleList)}, nil)
	require.Len(t, h.gw.Sent, before+1)
	return h.gw.Sent[before].Message.ID
}

func TestCreateSelectMenu(t *testing.T) {
	h := newHarness(t)

	messageID := h.createMenu(t, roles.KindSelect, fmt.Sprintf("<@&%s>, %s", roleA, roleB))

	sent := h.gw.Sent[0]
	assert.Equal(t, channelID, sent.ChannelID)
	assert.Equal(t, roles.DefaultContent, sent.Send.Content)

	v, ok := h.svc.Registry().View(messageID)
	require.True(t, ok)
	assert.Equal(t, []string{roleA, roleB}, v.RoleIDs())

	resp := h.lastResponse(t)
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, "Role menu created.", resp.Data.Embeds[0].Title)
	assert.Contains(t, resp.Data.Embeds[0].Description, messageID)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestCreateMenuCustomChannelAndContent(t *testing.T) {
	h := newHarness(t)
	other := "300000000000000002"

	h.slash("toggle", discordgo.PermissionAdministrator, []*discordgo.ApplicationCommandInteractionDataOption{
		str("roles", roleA+" "+roleB),
		{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: other},
		str("content", "Pick your year"),
	}, nil)

	require.Len(t, h.gw.Sent, 1)
	assert.Equal(t, other, h.gw.Sent[0].ChannelID)
	assert.Equal(t, "Pick your year", h.gw.Sent[0].Send.Content)
}

func TestCreateMenuRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		roles string
		want  string
	}{
		{name: "not a role", roles: "nope", want: `Role "nope" not found.`},
		{name: "unknown role", roles: "200000000000000077", want: `Role "200000000000000077" not found.`},
		{name: "everyone", roles: guildID, want: "@everyone"},
		{name: "managed", roles: "200000000000000099", want: "managed by an integration"},
		{name: "empty", roles: " , ", want: "at least one role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.name == "everyone" {
				h.gw.AddGuild(guildID, &discordgo.Role{ID: guildID, Name: "@everyone"})
			}

			h.slash("select", discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{str("roles", tt.roles)}, nil)

			assert.Empty(t, h.gw.Sent, "nothing may be posted for bad input")
			resp := h.lastResponse(t)
			assert.Contains(t, resp.Data.Content, tt.want)
			assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
		})
	}
}

func TestCreateMenuRequiresManageRoles(t *testing.T) {
	h := newHarness(t)

	h.slash("select", discordgo.PermissionSendMessages, []*discordgo.ApplicationCommandInteractionDataOption{str("roles", roleA)}, nil)

	assert.Empty(t, h.gw.Sent)
	assert.Contains(t, h.lastResponse(t).Data.Content, "permission")
}

func TestAddRoleByMessageLink(t *testing.T) {
	h := newHarness(t)
	messageID := h.createMenu(t, roles.KindSelect, roleA+" "+roleB)
	link := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)

	resolved := &discordgo.ApplicationCommandInteractionDataResolved{
		Roles: map[string]*discordgo.Role{roleC: {ID: roleC, Name: "Chemistry"}},
	}
	h.slash("add", discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{
		str("message", link), roleOpt(roleC),
	}, resolved)

	require.Len(t, h.gw.Edits, 1)
	assert.Equal(t, messageID, h.gw.Edits[0].MessageID)
	v, ok := h.svc.Registry().View(messageID)
	require.True(t, ok)
	assert.Equal(t, []string{roleA, roleB, roleC}, v.RoleIDs())

	resp := h.lastResponse(t)
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, "Successfully edited selection.", resp.Data.Embeds[0].Title)
	assert.Contains(t, resp.Data.Embeds[0].Description, "added to")
}

func TestDeleteRole(t *testing.T) {
	h := newHarness(t)
	messageID := h.createMenu(t, roles.KindSelect, roleA+" "+roleB)

	h.slash("delete", discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{
		str("message", messageID), roleOpt(roleA),
	}, nil)

	v, ok := h.svc.Registry().View(messageID)
	require.True(t, ok)
	assert.Equal(t, []string{roleB}, v.RoleIDs())
	assert.Contains(t, h.lastResponse(t).Data.Embeds[0].Description, "removed from")

	h.slash("delete", discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{
		str("message", messageID), roleOpt(roleA),
	}, nil)
	assert.Contains(t, h.lastResponse(t).Data.Content, "is not on this menu")
	assert.Len(t, h.gw.Edits, 1)
}

func TestEditUnknownMessage(t *testing.T) {
	h := newHarness(t)

	h.slash("add", discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{
		str("message", "999999999999999999"), roleOpt(roleA),
	}, nil)

	assert.Empty(t, h.gw.Edits)
	assert.Equal(t, "There is no role menu on this message.", h.lastResponse(t).Data.Content)
}

func TestEditMessageOfAnotherGuild(t *testing.T) {
	h := newHarness(t)
	messageID := h.createMenu(t, roles.KindSelect, roleA)
	link := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", "100000000000000777", channelID, messageID)

	h.slash("add", discordgo.PermissionManageRoles, []*discordgo.ApplicationCommandInteractionDataOption{
		str("message", link), roleOpt(roleB),
	}, nil)

	assert.Empty(t, h.gw.Edits)
	assert.Equal(t, "There is no role menu on this message.", h.lastResponse(t).Data.Content)
}

// Select then Add through the component handler.
func TestMenuClicks(t *testing.T) {
	h := newHarness(t)
	messageID := h.createMenu(t, roles.KindSelect, roleA+" "+roleB)
	v, ok := h.svc.Registry().View(messageID)
	require.True(t, ok)
	ids := v.ComponentIDs()

	h.click(ids[roles.AddControl])
	assert.Equal(t, roles.NoSelectionMessage, h.lastResponse(t).Data.Content)
	assert.Empty(t, h.gw.Grants)

	h.click(ids[roles.SelectControl], roleA, roleB)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, h.lastResponse(t).Type)

	h.click(ids[roles.AddControl])
	resp := h.lastResponse(t)
	assert.Equal(t, fmt.Sprintf("Changing roles <@&%s>, <@&%s> for member <@%s>", roleA, roleB, userID), resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
	assert.ElementsMatch(t, []string{roleA, roleB}, h.gw.MemberRoles(guildID, userID))

	h.click(ids[roles.RemoveControl])
	assert.Empty(t, h.gw.MemberRoles(guildID, userID))
}

func TestStaleComponent(t *testing.T) {
	h := newHarness(t)

	h.click("0123456789abcdef0123456789abcdef")

	resp := h.lastResponse(t)
	assert.Equal(t, core.InactiveComponentMessage, resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestForbiddenGrantIsExplained(t *testing.T) {
	h := newHarness(t)
	messageID := h.createMenu(t, roles.KindToggle, roleA+" "+roleB)
	v, _ := h.svc.Registry().View(messageID)
	h.gw.GrantErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}

	h.click(v.ComponentIDs()[roles.SelectControl], roleA)

	assert.Equal(t, "I am not allowed to change one of these roles.", h.lastResponse(t).Data.Content)
}

func TestUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"full", roles.ErrMenuFull, "at most 25 roles"},
		{"bound", fmt.Errorf("add: %w", roles.ErrRoleAlreadyBound), "already on this menu"},
		{"compensated", &roles.PartialFailureError{MessageID: "1", Compensated: true, Err: errors.New("disk")}, "removed again"},
		{"left behind", &roles.PartialFailureError{MessageID: "42", Err: errors.New("disk")}, "message 42 could not be removed"},
		{"edit reverted", &roles.PartialFailureError{MessageID: "1", Edited: true, Compensated: true, Err: errors.New("disk")}, "put back as it was"},
		{"edit left showing", &roles.PartialFailureError{MessageID: "42", Edited: true, Err: errors.New("disk")}, "message 42 shows roles it does not offer"},
		{"forbidden", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}, "<#" + channelID + ">"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmdErr *core.CommandError
			require.ErrorAs(t, userError(tt.err, channelID, roleA), &cmdErr)
			assert.Contains(t, cmdErr.Message, tt.want)
		})
	}

	boom := errors.New("boom")
	assert.Same(t, boom, userError(boom, channelID, roleA))
}
