// Package cache keeps recently seen guild messages in memory so deletions
// and edits can be logged with the content they had.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	DefaultMessageTTL   = 24 * time.Hour
	DefaultMessageLimit = 5000
)

// Message is what is remembered of a guild message.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	Content   string
	JumpURL   string
}

// MessageCache remembers the latest messages by id. Entries expire after the
// ttl and the least recently used one is evicted when the cache is full.
type MessageCache struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, cached]
	ttl     time.Duration
	now     func() time.Time
}

type cached struct {
	msg       Message
	expiresAt time.Time // zero means no expiration
}

// NewMessageCache returns a cache holding at most limit messages for ttl.
// ttl <= 0 disables expiry; limit <= 0 uses DefaultMessageLimit.
func NewMessageCache(ttl time.Duration, limit int) *MessageCache {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	// NewLRU only fails on a non-positive size.
	entries, _ := simplelru.NewLRU[string, cached](limit, nil)
	return &MessageCache{entries: entries, ttl: ttl, now: time.Now}
}

// FromDiscord converts a gateway message. Mentions are replaced by names,
// and attachments or embeds without text are summarized.
func FromDiscord(m *discordgo.Message) Message {
	out := Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.ContentWithMentionsReplaced(),
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	if out.Content == "" {
		out.Content = summarize(m)
	}
	if m.GuildID != "" {
		out.JumpURL = "https://discord.com/channels/" + m.GuildID + "/" + m.ChannelID + "/" + m.ID
	}
	return out
}

func summarize(m *discordgo.Message) string {
	var s string
	if n := len(m.Attachments); n > 0 {
		s += fmt.Sprintf("[attachments: %d] ", n)
	}
	if n := len(m.Embeds); n > 0 {
		s += fmt.Sprintf("[embeds: %d] ", n)
	}
	if n := len(m.StickerItems); n > 0 {
		s += fmt.Sprintf("[stickers: %d] ", n)
	}
	return s
}

// Put remembers m, replacing an older version.
func (c *MessageCache) Put(m Message) {
	if m.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cached{msg: m}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.entries.Add(m.ID, e)
}

// Get returns the message with id.
func (c *MessageCache) Get(id string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(id)
	if !ok {
		return Message{}, false
	}
	if c.expired(e, c.now()) {
		c.entries.Remove(id)
		return Message{}, false
	}
	return e.msg, true
}

// Take returns and forgets the message with id.
func (c *MessageCache) Take(id string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(id)
	if !ok {
		return Message{}, false
	}
	c.entries.Remove(id)
	if c.expired(e, c.now()) {
		return Message{}, false
	}
	return e.msg, true
}

// Prune drops expired messages and returns how many went.
func (c *MessageCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, id := range c.entries.Keys() {
		if e, ok := c.entries.Peek(id); ok && c.expired(e, now) {
			c.entries.Remove(id)
			n++
		}
	}
	return n
}

func (c *MessageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *MessageCache) expired(e cached, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
