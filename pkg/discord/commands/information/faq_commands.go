// Package information holds the /faq command.
package information

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/faq"
	"github.com/physum/physbot/pkg/storage"
	"github.com/physum/physbot/pkg/theme"
)

const (
	NoEntryMessage     = "There is no entry under this key."
	EntryExistsMessage = "There is already an entry with this key."
	maxChoices         = 25
)

// RegisterFAQCommands registers /faq and its key autocompletion.
func RegisterFAQCommands(router *core.CommandRouter, svc *faq.Service) {
	group := core.NewGroupCommand("faq", "Short answers to frequent questions", router.GetPermissionChecker())

	group.AddSubCommand(&showCommand{svc: svc})
	group.AddSubCommand(&createCommand{svc: svc})
	group.AddSubCommand(&deleteCommand{svc: svc})

	router.RegisterCommand(group)
	router.RegisterAutocomplete("faq", &keyCompleter{svc: svc})
}

func keyOption(description string, autocomplete bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "key",
		Description:  description,
		Required:     true,
		MaxLength:    faq.MaxKeyLength,
		Autocomplete: autocomplete,
	}
}

type showCommand struct {
	svc *faq.Service
}

func (c *showCommand) Name() string        { return "show" }
func (c *showCommand) Description() string { return "Show the entry saved under a key" }
func (c *showCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{keyOption("Key of the entry", true)}
}
func (c *showCommand) RequiresGuild() bool { return true }
func (c *showCommand) Permissions() int64  { return 0 }

func (c *showCommand) Handle(ctx *core.Context) error {
	key, err := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction)).StringRequired("key")
	if err != nil {
		return err
	}

	entry, err := c.svc.Show(ctx.Ctx(), ctx.GuildID, key)
	var nf *faq.NotFoundError
	if errors.As(err, &nf) {
		return core.NewCommandError(notFoundMessage(nf), true)
	}
	if err != nil {
		return err
	}
	return core.NewResponseBuilder(ctx.Session).
		WithEmbed().
		WithTitle(entry.Key).
		WithColor(theme.FAQ()).
		Info(ctx.Interaction, entry.Content)
}

func notFoundMessage(nf *faq.NotFoundError) string {
	if len(nf.Suggestions) == 0 {
		return NoEntryMessage
	}
	return fmt.Sprintf("%s\nDid you mean:\n```\n%s\n```", NoEntryMessage, strings.Join(nf.Suggestions, "\n"))
}

type createCommand struct {
	svc *faq.Service
}

func (c *createCommand) Name() string        { return "create" }
func (c *createCommand) Description() string { return "Save a new entry under a key" }
func (c *createCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		keyOption("Key of the new entry", false),
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "content",
			Description: "Text of the entry",
			Required:    true,
			MaxLength:   faq.MaxContentLength,
		},
	}
}
func (c *createCommand) RequiresGuild() bool { return true }
func (c *createCommand) Permissions() int64  { return discordgo.PermissionManageMessages }

func (c *createCommand) Handle(ctx *core.Context) error {
	extractor := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction))
	key, err := extractor.StringRequired("key")
	if err != nil {
		return err
	}
	content, err := extractor.StringRequired("content")
	if err != nil {
		return err
	}

	err = c.svc.Create(ctx.Ctx(), ctx.GuildID, ctx.UserID, key, content)
	switch {
	case errors.Is(err, storage.ErrFAQExists):
		return core.NewCommandError(EntryExistsMessage, true)
	case errors.Is(err, faq.ErrEmptyKey), errors.Is(err, faq.ErrKeyTooLong),
		errors.Is(err, faq.ErrEmptyContent), errors.Is(err, faq.ErrTooLong):
		return core.NewValidationError("content", capitalize(err.Error())+".")
	case err != nil:
		return err
	}
	return core.NewResponseBuilder(ctx.Session).Success(ctx.Interaction, fmt.Sprintf("OK! The entry is saved under the key `%s`.", strings.TrimSpace(key)))
}

type deleteCommand struct {
	svc *faq.Service
}

func (c *deleteCommand) Name() string        { return "delete" }
func (c *deleteCommand) Description() string { return "Delete the entry saved under a key" }
func (c *deleteCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{keyOption("Key of the entry", true)}
}
func (c *deleteCommand) RequiresGuild() bool { return true }
func (c *deleteCommand) Permissions() int64  { return discordgo.PermissionManageMessages }

func (c *deleteCommand) Handle(ctx *core.Context) error {
	key, err := core.NewOptionExtractor(core.GetSubCommandOptions(ctx.Interaction)).StringRequired("key")
	if err != nil {
		return err
	}
	ok, err := c.svc.Delete(ctx.Ctx(), ctx.GuildID, key)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewCommandError(NoEntryMessage, true)
	}
	return core.NewResponseBuilder(ctx.Session).Success(ctx.Interaction, fmt.Sprintf("The entry `%s` is deleted.", key))
}

type keyCompleter struct {
	svc *faq.Service
}

func (k *keyCompleter) HandleAutocomplete(ctx *core.Context, focusedOption string) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if focusedOption != "key" {
		return nil, nil
	}
	typed := ""
	if opt, ok := core.HasFocusedOption(ctx.Interaction.ApplicationCommandData().Options); ok {
		typed, _ = opt.Value.(string)
	}
	keys, err := k.svc.Complete(ctx.Ctx(), ctx.GuildID, typed, maxChoices)
	if err != nil {
		return nil, err
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(keys))
	for _, key := range keys {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: key, Value: key})
	}
	return choices, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
