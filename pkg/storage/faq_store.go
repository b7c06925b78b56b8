package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrFAQExists is returned when an entry already uses the key in the guild.
var ErrFAQExists = errors.New("faq entry already exists")

// FAQEntry is one stored answer.
type FAQEntry struct {
	GuildID   string
	Key       string
	Content   string
	UserID    string
	CreatedAt time.Time
}

// SaveFAQ stores a new entry. Keys are unique per guild.
func (s *Store) SaveFAQ(ctx context.Context, e FAQEntry) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO faq_entry (guild_id, key, content, user_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.GuildID, e.Key, e.Content, e.UserID, e.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("save faq %q: %w", e.Key, ErrFAQExists)
		}
		return fmt.Errorf("save faq %q: %w", e.Key, err)
	}
	return nil
}

// GetFAQ returns the entry for key, or (nil, nil) when none.
func (s *Store) GetFAQ(ctx context.Context, guildID, key string) (*FAQEntry, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	var e FAQEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, key, content, user_id, created_at FROM faq_entry WHERE guild_id = ? AND key = ?`,
		guildID, key,
	).Scan(&e.GuildID, &e.Key, &e.Content, &e.UserID, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get faq %q: %w", key, err)
	}
	return &e, nil
}

// FAQKeys lists every key of a guild in alphabetical order.
func (s *Store) FAQKeys(ctx context.Context, guildID string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM faq_entry WHERE guild_id = ? ORDER BY key`, guildID)
	if err != nil {
		return nil, fmt.Errorf("list faq keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan faq key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DeleteFAQ removes an entry and reports whether it existed.
func (s *Store) DeleteFAQ(ctx context.Context, guildID, key string) (bool, error) {
	if s.db == nil {
		return false, ErrNotInitialized
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM faq_entry WHERE guild_id = ? AND key = ?`, guildID, key)
	if err != nil {
		return false, fmt.Errorf("delete faq %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
