package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestHandleReturnsErrorUnchanged(t *testing.T) {
	boom := errors.New("boom")
	err := HandleDatabaseError("save_view", func() error { return boom })
	assert.Same(t, boom, err)

	assert.NoError(t, HandleDiscordError("send", func() error { return nil }))
	assert.Error(t, HandleDiscordError("send", nil))
}

func TestIsDiscordNotFound(t *testing.T) {
	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.True(t, IsDiscordNotFound(fmt.Errorf("edit: %w", notFound)))

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.False(t, IsDiscordNotFound(forbidden))
	assert.False(t, IsDiscordNotFound(errors.New("plain")))

	code, ok := DiscordStatus(forbidden)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestIsDiscordForbidden(t *testing.T) {
	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.True(t, IsDiscordForbidden(fmt.Errorf("grant: %w", forbidden)))
	assert.False(t, IsDiscordForbidden(errors.New("plain")))
}
