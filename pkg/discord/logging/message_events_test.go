package logging

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/cache"
	"github.com/physum/physbot/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forgetter struct {
	forgotten []string
	err       error
}

func (f *forgetter) ForgetMessage(_ context.Context, messageID string) (bool, error) {
	f.forgotten = append(f.forgotten, messageID)
	return f.err == nil, f.err
}

func newService(t *testing.T, logMessages bool) (*MessageEventService, *storage.Store, *forgetter) {
	t.Helper()
	store := storage.NewStore(filepath.Join(t.TempDir(), "physbot.db"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	f := &forgetter{}
	svc := NewMessageEventService(store, f, cache.NewMessageCache(time.Hour, 100), logMessages)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, store, f
}

func guildMessage(id, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "c",
		GuildID:   "g",
		Content:   content,
		Author:    &discordgo.User{ID: "u"},
	}
}

func TestDeleteOfCachedMessageIsLoggedWithContent(t *testing.T) {
	svc, store, f := newService(t, true)
	ctx := context.Background()

	svc.handleMessageCreate(nil, &discordgo.MessageCreate{Message: guildMessage("1", "hello")})
	svc.handleMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "1", ChannelID: "c", GuildID: "g"}})

	rows, err := store.RecentDeletedMessages(ctx, "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].Content)
	assert.Equal(t, "u", rows[0].UserID)
	assert.Equal(t, "https://discord.com/channels/g/c/1", rows[0].JumpURL)
	assert.Equal(t, []string{"1"}, f.forgotten)
	assert.Zero(t, svc.cache.Len())
}

func TestDeleteOfUnknownMessageIsStillLogged(t *testing.T) {
	svc, store, _ := newService(t, true)

	svc.handleMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "9", ChannelID: "c", GuildID: "g"}})

	rows, err := store.RecentDeletedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Content)
	assert.Empty(t, rows[0].UserID)
}

func TestDirectMessagesAreIgnored(t *testing.T) {
	svc, store, f := newService(t, true)

	svc.handleMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "1", ChannelID: "dm"}})

	rows, err := store.RecentDeletedMessages(context.Background(), "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.forgotten)
}

func TestBulkDeleteForgetsEveryMenu(t *testing.T) {
	svc, store, f := newService(t, true)

	svc.handleMessageDeleteBulk(nil, &discordgo.MessageDeleteBulk{Messages: []string{"1", "2"}, ChannelID: "c", GuildID: "g"})

	assert.Equal(t, []string{"1", "2"}, f.forgotten)
	rows, err := store.RecentDeletedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestEditRecordsBeforeAndAfter(t *testing.T) {
	svc, store, _ := newService(t, true)
	edited := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	svc.handleMessageCreate(nil, &discordgo.MessageCreate{Message: guildMessage("1", "helo")})
	after := guildMessage("1", "hello")
	after.EditedTimestamp = &edited
	svc.handleMessageUpdate(nil, &discordgo.MessageUpdate{Message: after})

	rows, err := store.RecentEditedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "helo", rows[0].ContentBefore)
	assert.Equal(t, "hello", rows[0].ContentAfter)
	assert.True(t, rows[0].EditedAt.Equal(edited))

	cached, ok := svc.cache.Get("1")
	require.True(t, ok)
	assert.Equal(t, "hello", cached.Content)
}

func TestEditUsesStateCopyWhenNotCached(t *testing.T) {
	svc, store, _ := newService(t, true)

	svc.handleMessageUpdate(nil, &discordgo.MessageUpdate{
		Message:      &discordgo.Message{ID: "5", ChannelID: "c", GuildID: "g", Content: "new"},
		BeforeUpdate: guildMessage("5", "old"),
	})

	rows, err := store.RecentEditedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "old", rows[0].ContentBefore)
	assert.Equal(t, "u", rows[0].UserID)
	assert.True(t, rows[0].EditedAt.Equal(svc.now()))
}

func TestEditWithoutContentIsIgnored(t *testing.T) {
	svc, store, _ := newService(t, true)

	svc.handleMessageUpdate(nil, &discordgo.MessageUpdate{Message: &discordgo.Message{ID: "1", ChannelID: "c", GuildID: "g"}})

	rows, err := store.RecentEditedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoggingDisabledStillForgetsMenus(t *testing.T) {
	svc, store, f := newService(t, false)

	svc.handleMessageCreate(nil, &discordgo.MessageCreate{Message: guildMessage("1", "hello")})
	svc.handleMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "1", ChannelID: "c", GuildID: "g"}})

	assert.Equal(t, []string{"1"}, f.forgotten)
	assert.Zero(t, svc.cache.Len())
	rows, err := store.RecentDeletedMessages(context.Background(), "g", "", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestForgetFailureDoesNotBlockLogging(t *testing.T) {
	svc, store, f := newService(t, true)
	f.err = errors.New("db locked")

	svc.handleMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "1", ChannelID: "c", GuildID: "g"}})

	rows, err := store.RecentDeletedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStartStop(t *testing.T) {
	svc, _, _ := newService(t, true)
	session, err := discordgo.New("Bot test-token")
	require.NoError(t, err)

	require.NoError(t, svc.Start(session))
	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start(session))
	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	assert.Error(t, svc.Stop())
}
