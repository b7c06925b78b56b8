package core

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/theme"
)

// ResponseType selects the decoration of a response.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseError
	ResponseInfo
)

// ResponseConfig configures the next response.
type ResponseConfig struct {
	Ephemeral bool
	Title     string
	Color     int
	WithEmbed bool
	Footer    string
	Timestamp bool
}

// ResponseManager answers interactions.
type ResponseManager struct {
	session *discordgo.Session
	config  ResponseConfig
}

func NewResponseManager(session *discordgo.Session) *ResponseManager {
	return &ResponseManager{
		session: session,
		config:  ResponseConfig{},
	}
}

// WithConfig returns a copy of rm using config.
func (rm *ResponseManager) WithConfig(config ResponseConfig) *ResponseManager {
	return &ResponseManager{
		session: rm.session,
		config:  config,
	}
}

func (rm *ResponseManager) Success(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseSuccess)
}

func (rm *ResponseManager) Error(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseError)
}

func (rm *ResponseManager) Info(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseInfo)
}

// Ephemeral sends message, undecorated, to the invoker only.
func (rm *ResponseManager) Ephemeral(i *discordgo.InteractionCreate, message string) error {
	return rm.respond(i, &discordgo.InteractionResponseData{
		Content:         message,
		Flags:           discordgo.MessageFlagsEphemeral,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
}

// Plain sends message as is, honoring the Ephemeral setting.
func (rm *ResponseManager) Plain(i *discordgo.InteractionCreate, message string) error {
	return rm.respond(i, &discordgo.InteractionResponseData{
		Content:         message,
		Flags:           rm.flags(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
}

// Embed sends a prepared embed.
func (rm *ResponseManager) Embed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return rm.respond(i, &discordgo.InteractionResponseData{
		Embeds:          []*discordgo.MessageEmbed{embed},
		Flags:           rm.flags(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
}

// DeferredUpdate acknowledges a component interaction without a message.
func (rm *ResponseManager) DeferredUpdate(i *discordgo.InteractionCreate) error {
	return rm.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func (rm *ResponseManager) respond(i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) error {
	return rm.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (rm *ResponseManager) flags() discordgo.MessageFlags {
	if rm.config.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (rm *ResponseManager) sendResponse(i *discordgo.InteractionCreate, message string, responseType ResponseType) error {
	if rm.config.WithEmbed {
		return rm.Embed(i, rm.createEmbed(message, responseType))
	}
	return rm.Plain(i, rm.formatTextMessage(message, responseType))
}

func (rm *ResponseManager) formatTextMessage(message string, responseType ResponseType) string {
	switch responseType {
	case ResponseSuccess:
		return "✅ " + message
	case ResponseError:
		return "❌ " + message
	case ResponseInfo:
		return "ℹ️ " + message
	default:
		return message
	}
}

func (rm *ResponseManager) createEmbed(message string, responseType ResponseType) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       rm.getColorForType(responseType),
	}

	if rm.config.Title != "" {
		embed.Title = rm.config.Title
	} else {
		embed.Title = rm.getTitleForType(responseType)
	}

	if rm.config.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: rm.config.Footer,
		}
	}

	if rm.config.Timestamp {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}

	return embed
}

func (rm *ResponseManager) getColorForType(responseType ResponseType) int {
	if rm.config.Color != 0 {
		return rm.config.Color
	}

	switch responseType {
	case ResponseSuccess:
		return theme.Success()
	case ResponseError:
		return theme.Error()
	case ResponseInfo:
		return theme.Info()
	default:
		return theme.Muted()
	}
}

func (rm *ResponseManager) getTitleForType(responseType ResponseType) string {
	switch responseType {
	case ResponseSuccess:
		return "Success"
	case ResponseError:
		return "Error"
	case ResponseInfo:
		return "Information"
	default:
		return ""
	}
}

// Autocomplete answers an autocomplete interaction. Discord accepts at most
// 25 choices.
func (rm *ResponseManager) Autocomplete(i *discordgo.InteractionCreate, choices []*discordgo.ApplicationCommandOptionChoice) error {
	if len(choices) > 25 {
		choices = choices[:25]
	}

	return rm.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

// ResponseBuilder builds responses fluently.
type ResponseBuilder struct {
	manager *ResponseManager
	config  ResponseConfig
}

func NewResponseBuilder(session *discordgo.Session) *ResponseBuilder {
	return &ResponseBuilder{
		manager: NewResponseManager(session),
		config:  ResponseConfig{},
	}
}

func (rb *ResponseBuilder) Ephemeral() *ResponseBuilder {
	rb.config.Ephemeral = true
	return rb
}

func (rb *ResponseBuilder) WithEmbed() *ResponseBuilder {
	rb.config.WithEmbed = true
	return rb
}

func (rb *ResponseBuilder) WithTitle(title string) *ResponseBuilder {
	rb.config.Title = title
	return rb
}

func (rb *ResponseBuilder) WithColor(color int) *ResponseBuilder {
	rb.config.Color = color
	return rb
}

func (rb *ResponseBuilder) WithFooter(footer string) *ResponseBuilder {
	rb.config.Footer = footer
	return rb
}

func (rb *ResponseBuilder) WithTimestamp() *ResponseBuilder {
	rb.config.Timestamp = true
	return rb
}

func (rb *ResponseBuilder) Build() *ResponseManager {
	return rb.manager.WithConfig(rb.config)
}

func (rb *ResponseBuilder) Success(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Success(i, message)
}

func (rb *ResponseBuilder) Error(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Error(i, message)
}

func (rb *ResponseBuilder) Info(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Info(i, message)
}

func (rb *ResponseBuilder) Embed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return rb.Build().Embed(i, embed)
}

func (rb *ResponseBuilder) Plain(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Plain(i, message)
}
