package logging

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/cache"
	"github.com/physum/physbot/pkg/storage"
	"github.com/physum/physbot/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRecorder fails the first write like a locked database would.
type flakyRecorder struct {
	Recorder
	calls atomic.Int32
}

func (f *flakyRecorder) LogDeletedMessage(ctx context.Context, m storage.DeletedMessage) error {
	if f.calls.Add(1) == 1 {
		return errors.New("database is locked")
	}
	return f.Recorder.LogDeletedMessage(ctx, m)
}

func TestQueuedRecorderWritesThroughRouter(t *testing.T) {
	store := storage.NewStore(filepath.Join(t.TempDir(), "physbot.db"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	router := task.NewRouter(task.RouterConfig{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	flaky := &flakyRecorder{Recorder: store}
	svc := NewMessageEventService(NewQueuedRecorder(router, flaky), nil, cache.NewMessageCache(time.Hour, 100), true)

	svc.handleMessageCreate(nil, &discordgo.MessageCreate{Message: guildMessage("1", "hello")})
	svc.handleMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{ID: "1", ChannelID: "c", GuildID: "g"}})
	svc.handleMessageUpdate(nil, &discordgo.MessageUpdate{Message: guildMessage("2", "edited")})

	// Close waits for queued writes.
	router.Close()

	deleted, err := store.RecentDeletedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "hello", deleted[0].Content)
	assert.EqualValues(t, 2, flaky.calls.Load())

	edited, err := store.RecentEditedMessages(context.Background(), "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, edited, 1)
	assert.Equal(t, "edited", edited[0].ContentAfter)
}

func TestQueuedRecorderAfterCloseFails(t *testing.T) {
	router := task.NewRouter(task.Defaults())
	q := NewQueuedRecorder(router, nil)
	router.Close()

	err := q.LogEditedMessage(context.Background(), storage.EditedMessage{MessageID: "1"})
	assert.ErrorIs(t, err, task.ErrRouterClosed)
}
