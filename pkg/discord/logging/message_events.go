// Package logging records guild message deletions and edits in the
// moderation log, and drops role menus whose message was deleted.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/cache"
	"github.com/physum/physbot/pkg/discord/perf"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/metrics"
	"github.com/physum/physbot/pkg/storage"
)

const handlerTimeout = 10 * time.Second

// Recorder persists moderation log rows.
type Recorder interface {
	LogDeletedMessage(ctx context.Context, m storage.DeletedMessage) error
	LogEditedMessage(ctx context.Context, m storage.EditedMessage) error
}

// MenuForgetter drops the role menu shown on a deleted message.
type MenuForgetter interface {
	ForgetMessage(ctx context.Context, messageID string) (bool, error)
}

// MessageEventService handles message create, edit and delete events.
type MessageEventService struct {
	recorder Recorder
	menus    MenuForgetter
	cache    *cache.MessageCache
	logging  bool
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	isRunning bool
	removers  []func()
}

// NewMessageEventService creates the service. With logMessages false only
// role menu cleanup runs.
func NewMessageEventService(recorder Recorder, menus MenuForgetter, messages *cache.MessageCache, logMessages bool) *MessageEventService {
	if messages == nil {
		messages = cache.NewMessageCache(cache.DefaultMessageTTL, cache.DefaultMessageLimit)
	}
	return &MessageEventService{
		recorder: recorder,
		menus:    menus,
		cache:    messages,
		logging:  logMessages,
		logger:   log.DiscordLogger().With("component", "message_events"),
		now:      time.Now,
	}
}

// Start registers the event handlers on session.
func (mes *MessageEventService) Start(session *discordgo.Session) error {
	mes.mu.Lock()
	defer mes.mu.Unlock()
	if mes.isRunning {
		return fmt.Errorf("message event service is already running")
	}
	mes.isRunning = true
	mes.removers = append(mes.removers,
		session.AddHandler(mes.handleMessageCreate),
		session.AddHandler(mes.handleMessageUpdate),
		session.AddHandler(mes.handleMessageDelete),
		session.AddHandler(mes.handleMessageDeleteBulk),
	)
	mes.logger.Info("Message event service started", "moderation_log", mes.logging)
	return nil
}

// Stop removes the event handlers.
func (mes *MessageEventService) Stop() error {
	mes.mu.Lock()
	defer mes.mu.Unlock()
	if !mes.isRunning {
		return fmt.Errorf("message event service is not running")
	}
	for _, remove := range mes.removers {
		remove()
	}
	mes.removers = nil
	mes.isRunning = false
	mes.logger.Info("Message event service stopped")
	return nil
}

func (mes *MessageEventService) IsRunning() bool {
	mes.mu.Lock()
	defer mes.mu.Unlock()
	return mes.isRunning
}

func (mes *MessageEventService) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	defer perf.StartGatewayEvent("message_create")()
	if m == nil || m.Message == nil || m.GuildID == "" || !mes.logging {
		return
	}
	mes.cache.Put(cache.FromDiscord(m.Message))
}

func (mes *MessageEventService) handleMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	defer perf.StartGatewayEvent("message_update")()
	if m == nil || m.Message == nil || !mes.logging {
		return
	}
	// Embed unfurls and pins arrive as updates without content.
	if m.Content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	edited := storage.EditedMessage{
		ChannelID:    m.ChannelID,
		MessageID:    m.ID,
		GuildID:      m.GuildID,
		EditedAt:     mes.now().UTC(),
		ContentAfter: m.Content,
	}
	if m.EditedTimestamp != nil {
		edited.EditedAt = m.EditedTimestamp.UTC()
	}
	if before, ok := mes.before(m.ID, m.BeforeUpdate); ok {
		edited.ContentBefore = before.Content
		edited.UserID = before.AuthorID
		edited.JumpURL = before.JumpURL
	}
	if m.Author != nil && edited.UserID == "" {
		edited.UserID = m.Author.ID
	}
	if m.GuildID != "" {
		after := cache.FromDiscord(m.Message)
		if after.AuthorID == "" {
			after.AuthorID = edited.UserID
		}
		mes.cache.Put(after)
	}

	if err := mes.recorder.LogEditedMessage(ctx, edited); err != nil {
		mes.logger.Error("Failed to record message edit", "message_id", m.ID, "channel_id", m.ChannelID, "error", err)
		return
	}
	metrics.ModerationEvents.WithLabelValues("edit").Inc()
}

func (mes *MessageEventService) handleMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	defer perf.StartGatewayEvent("message_delete")()
	if m == nil || m.Message == nil {
		return
	}
	// Direct messages are not logged.
	if m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	mes.deleted(ctx, m.GuildID, m.ChannelID, m.ID, m.BeforeDelete)
}

func (mes *MessageEventService) handleMessageDeleteBulk(_ *discordgo.Session, m *discordgo.MessageDeleteBulk) {
	defer perf.StartGatewayEvent("message_delete_bulk")()
	if m == nil || m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	for _, id := range m.Messages {
		mes.deleted(ctx, m.GuildID, m.ChannelID, id, nil)
	}
}

func (mes *MessageEventService) deleted(ctx context.Context, guildID, channelID, messageID string, state *discordgo.Message) {
	if mes.menus != nil {
		if _, err := mes.menus.ForgetMessage(ctx, messageID); err != nil {
			mes.logger.Error("Failed to drop role menu of deleted message", "message_id", messageID, "error", err)
		}
	}
	if !mes.logging {
		return
	}

	row := storage.DeletedMessage{
		ChannelID: channelID,
		GuildID:   guildID,
		MessageID: messageID,
		DeletedAt: mes.now().UTC(),
	}
	if before, ok := mes.before(messageID, state); ok {
		row.Content = before.Content
		row.UserID = before.AuthorID
		row.JumpURL = before.JumpURL
	}
	mes.cache.Take(messageID)

	if err := mes.recorder.LogDeletedMessage(ctx, row); err != nil {
		mes.logger.Error("Failed to record message deletion", "message_id", messageID, "channel_id", channelID, "error", err)
		return
	}
	metrics.ModerationEvents.WithLabelValues("delete").Inc()
}

// before finds the last known version of a message, own cache first and
// then the copy discordgo's state kept.
func (mes *MessageEventService) before(messageID string, state *discordgo.Message) (cache.Message, bool) {
	if m, ok := mes.cache.Get(messageID); ok {
		return m, true
	}
	if state != nil {
		return cache.FromDiscord(state), true
	}
	return cache.Message{}, false
}
