package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DeletedMessage is one row of moderation_deletelog.
type DeletedMessage struct {
	ChannelID string
	GuildID   string
	MessageID string
	DeletedAt time.Time
	Content   string
	UserID    string
	JumpURL   string
}

// EditedMessage is one row of moderation_editlog.
type EditedMessage struct {
	ChannelID     string
	MessageID     string
	EditedAt      time.Time
	GuildID       string
	ContentBefore string
	ContentAfter  string
	UserID        string
	JumpURL       string
}

// LogDeletedMessage records a message deletion.
func (s *Store) LogDeletedMessage(ctx context.Context, m DeletedMessage) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if m.DeletedAt.IsZero() {
		m.DeletedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moderation_deletelog (channel_id, guild_id, message_id, deleted_at, content, user_id, jump_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ChannelID, m.GuildID, m.MessageID, m.DeletedAt, nullIfEmpty(m.Content), nullIfEmpty(m.UserID), nullIfEmpty(m.JumpURL),
	)
	if err != nil {
		return fmt.Errorf("log deleted message %s: %w", m.MessageID, err)
	}
	return nil
}

// LogEditedMessage records a message edit.
func (s *Store) LogEditedMessage(ctx context.Context, m EditedMessage) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if m.EditedAt.IsZero() {
		m.EditedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moderation_editlog (channel_id, message_id, edited_at, guild_id, content_before, content_after, user_id, jump_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ChannelID, m.MessageID, m.EditedAt, nullIfEmpty(m.GuildID), nullIfEmpty(m.ContentBefore),
		nullIfEmpty(m.ContentAfter), nullIfEmpty(m.UserID), nullIfEmpty(m.JumpURL),
	)
	if err != nil {
		return fmt.Errorf("log edited message %s: %w", m.MessageID, err)
	}
	return nil
}

// RecentDeletedMessages returns the latest deletions in a channel, or in the
// whole guild when channelID is empty, newest first.
func (s *Store) RecentDeletedMessages(ctx context.Context, guildID, channelID string, limit int) ([]DeletedMessage, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, guild_id, message_id, deleted_at, content, user_id, jump_url
		 FROM moderation_deletelog WHERE guild_id = ? AND (? = '' OR channel_id = ?)
		 ORDER BY deleted_at DESC, rowid DESC LIMIT ?`,
		guildID, channelID, channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deleted messages: %w", err)
	}
	defer rows.Close()

	var out []DeletedMessage
	for rows.Next() {
		var m DeletedMessage
		var content, userID, jumpURL sql.NullString
		if err := rows.Scan(&m.ChannelID, &m.GuildID, &m.MessageID, &m.DeletedAt, &content, &userID, &jumpURL); err != nil {
			return nil, fmt.Errorf("scan deleted message: %w", err)
		}
		m.Content, m.UserID, m.JumpURL = content.String, userID.String, jumpURL.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentEditedMessages returns the latest edits like RecentDeletedMessages.
func (s *Store) RecentEditedMessages(ctx context.Context, guildID, channelID string, limit int) ([]EditedMessage, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, message_id, edited_at, guild_id, content_before, content_after, user_id, jump_url
		 FROM moderation_editlog WHERE guild_id = ? AND (? = '' OR channel_id = ?)
		 ORDER BY edited_at DESC, rowid DESC LIMIT ?`,
		guildID, channelID, channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list edited messages: %w", err)
	}
	defer rows.Close()

	var out []EditedMessage
	for rows.Next() {
		var m EditedMessage
		var guild, before, after, userID, jumpURL sql.NullString
		if err := rows.Scan(&m.ChannelID, &m.MessageID, &m.EditedAt, &guild, &before, &after, &userID, &jumpURL); err != nil {
			return nil, fmt.Errorf("scan edited message: %w", err)
		}
		m.GuildID, m.ContentBefore, m.ContentAfter = guild.String, before.String, after.String
		m.UserID, m.JumpURL = userID.String, jumpURL.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
