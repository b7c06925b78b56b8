// Package errutil runs Discord and database operations and logs their
// failures under the operation name before handing the error back.
package errutil

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/log"
)

// HandleDiscordError executes fn and logs any error as a Discord failure.
// The error is returned unmodified.
func HandleDiscordError(operation string, fn func() error) error {
	return handle(log.DiscordLogger(), "Discord operation failed", operation, fn)
}

// HandleDatabaseError executes fn and logs any error as a database failure.
// The error is returned unmodified.
func HandleDatabaseError(operation string, fn func() error) error {
	return handle(log.DatabaseLogger(), "Database operation failed", operation, fn)
}

func handle(l *slog.Logger, msg, operation string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("%s: nil function provided", operation)
	}
	err := fn()
	if err == nil {
		return nil
	}
	attrs := []any{"operation", operation, "error", err}
	if code, ok := DiscordStatus(err); ok {
		attrs = append(attrs, "status", code)
	}
	l.Error(msg, attrs...)
	return err
}

// DiscordStatus extracts the HTTP status of a discordgo REST error.
func DiscordStatus(err error) (int, bool) {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode, true
	}
	return 0, false
}

// IsDiscordNotFound reports whether err is a 404 from the Discord API.
func IsDiscordNotFound(err error) bool {
	code, ok := DiscordStatus(err)
	return ok && code == 404
}

// IsDiscordForbidden reports whether err is a 403 from the Discord API,
// usually a missing permission or a role above the bot's own.
func IsDiscordForbidden(err error) bool {
	code, ok := DiscordStatus(err)
	return ok && code == 403
}
