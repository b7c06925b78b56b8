package core

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Command is a top-level slash command.
type Command interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	// Permissions is the Discord permission bit set the invoker needs.
	// Zero means anyone may run the command.
	Permissions() int64
}

// SubCommand is a subcommand inside a GroupCommand.
type SubCommand interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	Permissions() int64
}

// ComponentHandler answers message component interactions (buttons, selects)
// whose custom id it owns.
type ComponentHandler interface {
	Owns(customID string) bool
	HandleComponent(ctx *Context) error
}

// Context carries everything a handler needs for one interaction.
type Context struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
	Logger      *slog.Logger
	GuildID     string
	ChannelID   string
	UserID      string
	IsOwner     bool

	ctx context.Context
}

// Ctx returns the context bounding the interaction's work.
func (c *Context) Ctx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Response standardizes command responses.
type Response struct {
	Content   string
	Ephemeral bool
	Success   bool
}

// CommandRegistry stores top-level commands by name.
type CommandRegistry struct {
	commands map[string]Command
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]Command)}
}

// Register adds a command, replacing one with the same name.
func (r *CommandRegistry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

func (r *CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

func (r *CommandRegistry) GetAllCommands() map[string]Command {
	return r.commands
}

// AutocompleteHandler provides choices for a focused option.
type AutocompleteHandler interface {
	HandleAutocomplete(ctx *Context, focusedOption string) ([]*discordgo.ApplicationCommandOptionChoice, error)
}

// CommandError is an error whose message is shown to the invoker.
type CommandError struct {
	Message   string
	Ephemeral bool
	Code      string
}

func (e *CommandError) Error() string {
	return e.Message
}

func NewCommandError(message string, ephemeral bool) *CommandError {
	return &CommandError{
		Message:   message,
		Ephemeral: ephemeral,
	}
}

// ValidationError reports a malformed option. It is shown to the invoker.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
