package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/discord/gateway/gatewaytest"
	"github.com/physum/physbot/pkg/storage"
	"github.com/physum/physbot/pkg/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildID = "100000000000000001"

func newRouter(t *testing.T) (*core.CommandRouter, *discordgo.Session, *gatewaytest.Transport, *storage.Store) {
	t.Helper()
	store := storage.NewStore(filepath.Join(t.TempDir(), "physbot.db"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	rt := gatewaytest.NewTransport(nil)
	rt.Fallback = gatewaytest.Reply(http.StatusNoContent, "")
	session := gatewaytest.NewSession(t, rt)
	require.NoError(t, session.State.GuildAdd(&discordgo.Guild{ID: guildID, OwnerID: "owner"}))

	router := core.NewCommandRouter(session)
	RegisterModerationCommands(router, store)
	return router, session, rt, store
}

func invoke(router *core.CommandRouter, session *discordgo.Session, sub string, perms int64, resolved *discordgo.ApplicationCommandInteractionDataResolved, opts ...*discordgo.ApplicationCommandInteractionDataOption) {
	router.HandleInteraction(session, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "interaction-" + sub,
			AppID:   "app",
			Token:   "token",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: "175928847299117063", Username: "admin"},
				Roles:       []string{"1", "2"},
				Permissions: perms,
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "moderation",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
				},
				Resolved: resolved,
			},
		},
	})
}

func lastResponse(t *testing.T, rt *gatewaytest.Transport) discordgo.InteractionResponse {
	t.Helper()
	calls := rt.Callbacks()
	require.NotEmpty(t, calls)
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal([]byte(calls[len(calls)-1].Body), &resp))
	return resp
}

func TestMemberInfoDefaultsToInvoker(t *testing.T) {
	router, session, rt, _ := newRouter(t)

	invoke(router, session, "member", discordgo.PermissionAdministrator, nil)

	resp := lastResponse(t, rt)
	require.Len(t, resp.Data.Embeds, 1)
	embed := resp.Data.Embeds[0]
	assert.Equal(t, "admin", embed.Title)
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[0].Value, "<@175928847299117063>")
	// 175928847299117063 is the snowflake of 2016-04-30 11:18:25.796 UTC.
	assert.Contains(t, embed.Fields[0].Value, "<t:1462015105:f>")
	assert.Contains(t, embed.Fields[1].Value, "2 roles")
	assert.Contains(t, embed.Fields[1].Value, "Joined: unknown")
}

func TestMemberInfoResolvedMember(t *testing.T) {
	router, session, rt, _ := newRouter(t)
	joined := time.Date(2021, 9, 1, 8, 0, 0, 0, time.UTC)

	resolved := &discordgo.ApplicationCommandInteractionDataResolved{
		Members: map[string]*discordgo.Member{"200000000000000002": {JoinedAt: joined, Roles: []string{"5"}}},
		Users:   map[string]*discordgo.User{"200000000000000002": {ID: "200000000000000002", Username: "student"}},
	}
	invoke(router, session, "member", discordgo.PermissionAdministrator, resolved,
		&discordgo.ApplicationCommandInteractionDataOption{Name: "member", Type: discordgo.ApplicationCommandOptionUser, Value: "200000000000000002"})

	embed := lastResponse(t, rt).Data.Embeds[0]
	assert.Equal(t, "student", embed.Title)
	assert.Contains(t, embed.Fields[1].Value, "<t:1630483200:f>")
	assert.Contains(t, embed.Fields[1].Value, "1 roles")
}

func TestModerationRequiresAdministrator(t *testing.T) {
	router, session, rt, _ := newRouter(t)

	invoke(router, session, "member", discordgo.PermissionManageMessages, nil)

	resp := lastResponse(t, rt)
	assert.Contains(t, resp.Data.Content, "permission")
	assert.Empty(t, resp.Data.Embeds)
}

func TestDeletedLog(t *testing.T) {
	router, session, rt, store := newRouter(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.LogDeletedMessage(ctx, storage.DeletedMessage{
		ChannelID: "300", GuildID: guildID, MessageID: "1", DeletedAt: at, Content: "hello", UserID: "7",
	}))
	require.NoError(t, store.LogDeletedMessage(ctx, storage.DeletedMessage{
		ChannelID: "301", GuildID: guildID, MessageID: "2", DeletedAt: at.Add(time.Minute),
	}))

	invoke(router, session, "deleted", discordgo.PermissionAdministrator, nil,
		&discordgo.ApplicationCommandInteractionDataOption{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "300"})

	resp := lastResponse(t, rt)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
	embed := resp.Data.Embeds[0]
	assert.Equal(t, "Deleted messages", embed.Title)
	assert.Equal(t, theme.MessageDelete(), embed.Color)
	assert.NotEmpty(t, embed.Timestamp)
	assert.Nil(t, embed.Footer)
	assert.Contains(t, embed.Description, "<@7> in <#300>: `hello`")
	assert.NotContains(t, embed.Description, "<#301>")
}

func TestEditedLogEmpty(t *testing.T) {
	router, session, rt, _ := newRouter(t)

	invoke(router, session, "edited", discordgo.PermissionAdministrator, nil)

	assert.Equal(t, "Nothing recorded.", lastResponse(t, rt).Data.Embeds[0].Description)
}

func TestBuildEditedLine(t *testing.T) {
	t.Parallel()

	got := buildEditedLine(storage.EditedMessage{
		ChannelID:     "300",
		EditedAt:      time.Unix(1700000000, 0),
		ContentBefore: "",
		ContentAfter:  "with `ticks`\nand lines",
		JumpURL:       "https://discord.com/channels/1/300/9",
	})
	assert.Equal(t, "<t:1700000000:R> unknown author in [message](https://discord.com/channels/1/300/9): *not cached* → `with 'ticks' and lines`", got)
}

func TestExcerptTruncates(t *testing.T) {
	t.Parallel()

	got := excerpt(strings.Repeat("é", excerptLength+10))
	assert.Equal(t, excerptLength+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…`"))
}

func TestLogDigestDropsOverflow(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("x", 1500)
	description, footer := logDigest([]string{line, line, line, line})
	assert.LessOrEqual(t, len(description), 4096)
	assert.Equal(t, "2 older entries not shown", footer)

	description, footer = logDigest([]string{"one", "two"})
	assert.Equal(t, "one\ntwo", description)
	assert.Empty(t, footer)
}
