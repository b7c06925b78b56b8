// Package session opens the bot's gateway connection.
package session

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/errutil"
	"github.com/physum/physbot/pkg/log"
)

// Error messages
const (
	ErrSessionCreationFailed   = "failed to create Discord session: %w"
	ErrSessionConnectionFailed = "failed to connect to Discord: %w"
)

// Intents covers guild state, member lookups for /moderation member and the
// message events feeding the moderation log.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentMessageContent

var (
	newSession   = discordgo.New
	openSession  = func(s *discordgo.Session) error { return s.Open() }
	closeSession = func(s *discordgo.Session) error { return s.Close() }
)

// Prepare is called on the session after creation and before the gateway
// connection opens; handlers that must see Ready are added here.
type Prepare func(*discordgo.Session)

// NewDiscordSession creates a session, sets intents and the discordgo log
// bridge, runs the prepare hooks and connects.
func NewDiscordSession(token string, prepare ...Prepare) (*discordgo.Session, error) {
	if token == "" {
		log.ErrorLogger().Error("Discord bot token is empty")
		return nil, fmt.Errorf("discord bot token is empty")
	}

	var s *discordgo.Session
	if err := errutil.HandleDiscordError("create_session", func() error {
		var err error
		s, err = newSession("Bot " + token)
		return err
	}); err != nil {
		return nil, fmt.Errorf(ErrSessionCreationFailed, err)
	}

	discordgo.Logger = log.DiscordgoLogger
	s.Identify.Intents = Intents
	s.StateEnabled = true
	for _, p := range prepare {
		if p != nil {
			p(s)
		}
	}

	log.DiscordLogger().Info("Connecting to Discord")
	if err := errutil.HandleDiscordError("connect", func() error {
		return openSession(s)
	}); err != nil {
		_ = closeSession(s)
		return nil, fmt.Errorf(ErrSessionConnectionFailed, err)
	}

	log.DiscordLogger().Info("Connected to Discord")
	return s, nil
}
