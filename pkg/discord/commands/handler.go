// Package commands wires every slash command group of the bot onto one
// command manager.
package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/discord/commands/information"
	"github.com/physum/physbot/pkg/discord/commands/moderation"
	"github.com/physum/physbot/pkg/discord/commands/rolemenu"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/faq"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/roles"
)

// Dependencies are the services the command groups act on.
type Dependencies struct {
	Roles   *roles.Service
	Gateway gateway.Gateway
	FAQ     *faq.Service
	// ModerationLog enables /moderation when non-nil.
	ModerationLog moderation.Log
}

// CommandHandler is the main handler that coordinates all bot commands
type CommandHandler struct {
	session        *discordgo.Session
	guildID        string
	deps           Dependencies
	commandManager *core.CommandManager
}

// NewCommandHandler creates a new CommandHandler instance. An empty guildID
// registers the commands globally.
func NewCommandHandler(session *discordgo.Session, guildID string, deps Dependencies) *CommandHandler {
	return &CommandHandler{
		session:        session,
		guildID:        guildID,
		deps:           deps,
		commandManager: core.NewCommandManager(session, guildID),
	}
}

// RegisterCommands adds every command group to the router without touching
// Discord.
func (ch *CommandHandler) RegisterCommands() error {
	router := ch.commandManager.GetRouter()

	if ch.deps.Roles == nil || ch.deps.Gateway == nil {
		return fmt.Errorf("role menu commands need a roles service and a gateway")
	}
	rolemenu.RegisterRoleCommands(router, ch.deps.Roles, ch.deps.Gateway)

	if ch.deps.FAQ != nil {
		information.RegisterFAQCommands(router, ch.deps.FAQ)
	}
	if ch.deps.ModerationLog != nil {
		moderation.RegisterModerationCommands(router, ch.deps.ModerationLog)
	}
	return nil
}

// SetupCommands registers all command groups and syncs them with Discord.
func (ch *CommandHandler) SetupCommands() error {
	log.ApplicationLogger().Info("Setting up bot commands...", "guild_id", ch.guildID)

	if err := ch.RegisterCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	if err := ch.commandManager.SetupCommands(); err != nil {
		return fmt.Errorf("failed to setup commands: %w", err)
	}

	log.ApplicationLogger().Info("Bot commands setup completed successfully")
	return nil
}

// GetCommandManager returns the command manager (for tests or extensions)
func (ch *CommandHandler) GetCommandManager() *core.CommandManager {
	return ch.commandManager
}
