package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/perf"
	"github.com/physum/physbot/pkg/log"
	"github.com/physum/physbot/pkg/metrics"
)

// interactionTimeout bounds the work done for one interaction.
const interactionTimeout = 15 * time.Second

// InactiveComponentMessage answers clicks on components nobody owns anymore.
const InactiveComponentMessage = "This menu is no longer active."

// CommandRouter routes interactions to commands and component handlers.
type CommandRouter struct {
	registry          *CommandRegistry
	contextBuilder    *ContextBuilder
	responder         *ResponseManager
	permChecker       *PermissionChecker
	autocompleteMap   map[string]AutocompleteHandler
	componentHandlers []ComponentHandler
}

// NewCommandRouter creates a router answering through session.
func NewCommandRouter(session *discordgo.Session) *CommandRouter {
	registry := NewCommandRegistry()
	responder := NewResponseManager(session)
	permChecker := NewPermissionChecker(session)
	contextBuilder := NewContextBuilder(session, permChecker)

	return &CommandRouter{
		registry:        registry,
		contextBuilder:  contextBuilder,
		responder:       responder,
		permChecker:     permChecker,
		autocompleteMap: make(map[string]AutocompleteHandler),
	}
}

func (cr *CommandRouter) RegisterCommand(cmd Command) {
	cr.registry.Register(cmd)
}

func (cr *CommandRouter) RegisterAutocomplete(commandName string, handler AutocompleteHandler) {
	cr.autocompleteMap[commandName] = handler
}

// RegisterComponentHandler adds a handler for message components. Handlers
// are asked in registration order.
func (cr *CommandRouter) RegisterComponentHandler(h ComponentHandler) {
	cr.componentHandlers = append(cr.componentHandlers, h)
}

// HandleInteraction routes an interaction to the matching handler.
func (cr *CommandRouter) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer perf.StartGatewayEvent("interaction_create")()

	switch {
	case IsAutocompleteInteraction(i):
		cr.handleAutocomplete(i)
	case IsSlashCommandInteraction(i):
		cr.handleSlashCommand(i)
	case IsComponentInteraction(i):
		cr.handleComponent(i)
	}
}

func (cr *CommandRouter) newContext(i *discordgo.InteractionCreate) (*Context, context.CancelFunc) {
	std, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	ctx := cr.contextBuilder.BuildContext(std, i)
	return ctx, cancel
}

func (cr *CommandRouter) handleSlashCommand(i *discordgo.InteractionCreate) {
	ctx, cancel := cr.newContext(i)
	defer cancel()
	commandName := i.ApplicationCommandData().Name
	ctx.Logger = ctx.Logger.With("command", GetCommandPath(i))

	ctx.Logger.Debug("Processing slash command")

	cmd, exists := cr.registry.GetCommand(commandName)
	if !exists {
		ctx.Logger.Error("Command not found")
		_ = cr.responder.Ephemeral(i, "Command not found")
		return
	}

	if cmd.RequiresGuild() && ctx.GuildID == "" {
		ctx.Logger.Warn("Command used outside of guild")
		_ = cr.responder.Ephemeral(i, "This command can only be used in a server")
		metrics.CommandsHandled.WithLabelValues(commandName, "rejected").Inc()
		return
	}

	if !cr.permChecker.HasPermissions(i, cmd.Permissions()) {
		ctx.Logger.Warn("User without permission tried to use command")
		_ = cr.responder.Ephemeral(i, "You do not have permission to use this command")
		metrics.CommandsHandled.WithLabelValues(commandName, "rejected").Inc()
		return
	}

	ctx.Logger.Info("Executing command")
	if err := cmd.Handle(ctx); err != nil {
		metrics.CommandsHandled.WithLabelValues(commandName, "error").Inc()
		cr.renderError(ctx, err)
		return
	}
	metrics.CommandsHandled.WithLabelValues(commandName, "ok").Inc()
}

func (cr *CommandRouter) handleComponent(i *discordgo.InteractionCreate) {
	ctx, cancel := cr.newContext(i)
	defer cancel()
	customID := i.MessageComponentData().CustomID
	ctx.Logger = ctx.Logger.With("custom_id", customID)

	for _, h := range cr.componentHandlers {
		if !h.Owns(customID) {
			continue
		}
		if err := h.HandleComponent(ctx); err != nil {
			cr.renderError(ctx, err)
		}
		return
	}

	ctx.Logger.Debug("No handler owns component")
	_ = cr.responder.Ephemeral(i, InactiveComponentMessage)
}

// renderError shows user-facing errors as they are and hides the rest.
func (cr *CommandRouter) renderError(ctx *Context, err error) {
	var cmdErr *CommandError
	var valErr *ValidationError
	switch {
	case errors.As(err, &cmdErr):
		ctx.Logger.Info("Command rejected", "reason", cmdErr.Message)
		if cmdErr.Ephemeral {
			_ = cr.responder.Ephemeral(ctx.Interaction, cmdErr.Message)
		} else {
			_ = cr.responder.Error(ctx.Interaction, cmdErr.Message)
		}
	case errors.As(err, &valErr):
		ctx.Logger.Info("Invalid command input", "field", valErr.Field, "reason", valErr.Message)
		_ = cr.responder.Ephemeral(ctx.Interaction, valErr.Message)
	default:
		log.ErrorLogger().Error("Interaction handling failed",
			"guild_id", ctx.GuildID, "user_id", ctx.UserID, "error", err)
		_ = cr.responder.Ephemeral(ctx.Interaction, "An error occurred while executing the command")
	}
}

func (cr *CommandRouter) handleAutocomplete(i *discordgo.InteractionCreate) {
	ctx, cancel := cr.newContext(i)
	defer cancel()
	commandName := i.ApplicationCommandData().Name

	handler, exists := cr.autocompleteMap[commandName]
	if !exists {
		_ = cr.responder.Autocomplete(i, []*discordgo.ApplicationCommandOptionChoice{})
		return
	}

	focusedOpt, hasFocus := HasFocusedOption(i.ApplicationCommandData().Options)
	if !hasFocus {
		_ = cr.responder.Autocomplete(i, []*discordgo.ApplicationCommandOptionChoice{})
		return
	}

	choices, err := handler.HandleAutocomplete(ctx, focusedOpt.Name)
	if err != nil {
		ctx.Logger.Error("Autocomplete handler failed", "error", err)
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}

	_ = cr.responder.Autocomplete(i, choices)
}

// CommandManager keeps the commands registered on Discord in sync with the
// ones registered on the router.
type CommandManager struct {
	session *discordgo.Session
	router  *CommandRouter
	guildID string
}

// NewCommandManager creates a manager. An empty guildID registers global
// commands; otherwise they are scoped to that guild.
func NewCommandManager(session *discordgo.Session, guildID string) *CommandManager {
	return &CommandManager{
		session: session,
		router:  NewCommandRouter(session),
		guildID: guildID,
	}
}

func (cm *CommandManager) GetRouter() *CommandRouter {
	return cm.router
}

// SetupCommands installs the interaction handler and syncs commands with
// Discord: missing ones are created, changed ones edited, orphans deleted.
func (cm *CommandManager) SetupCommands() error {
	logger := log.ApplicationLogger().With("component", "command_manager")
	cm.session.AddHandler(cm.router.HandleInteraction)

	if cm.session.State == nil || cm.session.State.User == nil {
		return fmt.Errorf("session is not ready: no application user")
	}
	appID := cm.session.State.User.ID

	registered, err := cm.session.ApplicationCommands(appID, cm.guildID)
	if err != nil {
		return fmt.Errorf("failed to fetch registered commands: %w", err)
	}

	regByName := make(map[string]*discordgo.ApplicationCommand, len(registered))
	for _, rc := range registered {
		regByName[rc.Name] = rc
	}

	codeCommands := cm.router.registry.GetAllCommands()

	created, updated, unchanged := 0, 0, 0
	for name, cmd := range codeCommands {
		desired := ApplicationCommand(cmd)

		if existing, ok := regByName[name]; ok {
			if CompareCommands(existing, desired) {
				logger.Debug("Command unchanged, skipping", "command", name)
				unchanged++
				continue
			}

			if _, err := cm.session.ApplicationCommandEdit(appID, cm.guildID, existing.ID, desired); err != nil {
				return fmt.Errorf("error updating command '%s': %w", name, err)
			}
			logger.Info("Command updated", "command", name)
			updated++
		} else {
			if _, err := cm.session.ApplicationCommandCreate(appID, cm.guildID, desired); err != nil {
				return fmt.Errorf("error creating command '%s': %w", name, err)
			}
			logger.Info("Command created", "command", name)
			created++
		}
	}

	deleted := 0
	for _, rc := range registered {
		if _, exists := codeCommands[rc.Name]; !exists {
			if err := cm.session.ApplicationCommandDelete(appID, cm.guildID, rc.ID); err != nil {
				logger.Warn("Error removing orphan command", "command", rc.Name, "error", err)
				continue
			}
			logger.Info("Orphan command removed", "command", rc.Name)
			deleted++
		}
	}

	logger.Info("Command synchronization completed",
		"created", created,
		"updated", updated,
		"deleted", deleted,
		"unchanged", unchanged,
		"total", len(codeCommands),
		"guild_id", cm.guildID,
	)
	return nil
}

// ApplicationCommand is the Discord definition of cmd.
func ApplicationCommand(cmd Command) *discordgo.ApplicationCommand {
	desired := &discordgo.ApplicationCommand{
		Name:        cmd.Name(),
		Description: cmd.Description(),
		Options:     cmd.Options(),
	}
	if perms := cmd.Permissions(); perms != 0 {
		desired.DefaultMemberPermissions = &perms
	}
	if cmd.RequiresGuild() {
		desired.Contexts = &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild}
	}
	return desired
}

// GroupCommand is a command made of subcommands.
type GroupCommand struct {
	name        string
	description string
	subcommands map[string]SubCommand
	order       []string
	checker     *PermissionChecker
}

func NewGroupCommand(name, description string, checker *PermissionChecker) *GroupCommand {
	return &GroupCommand{
		name:        name,
		description: description,
		subcommands: make(map[string]SubCommand),
		checker:     checker,
	}
}

func (gc *GroupCommand) AddSubCommand(subcmd SubCommand) {
	if _, exists := gc.subcommands[subcmd.Name()]; !exists {
		gc.order = append(gc.order, subcmd.Name())
	}
	gc.subcommands[subcmd.Name()] = subcmd
}

func (gc *GroupCommand) Name() string {
	return gc.name
}

func (gc *GroupCommand) Description() string {
	return gc.description
}

// Options lists the subcommands in the order they were added, so the
// definition compares equal across restarts.
func (gc *GroupCommand) Options() []*discordgo.ApplicationCommandOption {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(gc.subcommands))

	for _, name := range gc.order {
		subcmd := gc.subcommands[name]
		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        subcmd.Name(),
			Description: subcmd.Description(),
			Options:     subcmd.Options(),
		})
	}

	return options
}

func (gc *GroupCommand) RequiresGuild() bool {
	for _, subcmd := range gc.subcommands {
		if subcmd.RequiresGuild() {
			return true
		}
	}
	return false
}

// Permissions is the set every subcommand requires; each subcommand checks
// its own on top of that.
func (gc *GroupCommand) Permissions() int64 {
	var common int64 = -1
	for _, subcmd := range gc.subcommands {
		common &= subcmd.Permissions()
	}
	if common == -1 {
		return 0
	}
	return common
}

func (gc *GroupCommand) Handle(ctx *Context) error {
	subCommandName := GetSubCommandName(ctx.Interaction)
	if subCommandName == "" {
		return NewCommandError("No subcommand specified", true)
	}

	subcmd, exists := gc.subcommands[subCommandName]
	if !exists {
		return NewCommandError("Unknown subcommand", true)
	}

	if subcmd.RequiresGuild() && ctx.GuildID == "" {
		return NewCommandError("This subcommand can only be used in a server", true)
	}

	if gc.checker != nil && !gc.checker.HasPermissions(ctx.Interaction, subcmd.Permissions()) {
		return NewCommandError("You don't have permission to use this subcommand", true)
	}

	return subcmd.Handle(ctx)
}

func (cr *CommandRouter) GetRegistry() *CommandRegistry {
	return cr.registry
}

func (cr *CommandRouter) GetPermissionChecker() *PermissionChecker {
	return cr.permChecker
}
