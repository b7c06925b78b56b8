// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/gateway"
)

// Sent is a message posted through the fake.
type Sent struct {
	ChannelID string
	Message   *discordgo.Message
	Send      *discordgo.MessageSend
}

// Edit is a component edit made through the fake.
type Edit struct {
	ChannelID  string
	MessageID  string
	Components []discordgo.MessageComponent
}

// RoleCall is one GrantRoles or RevokeRoles call.
type RoleCall struct {
	GuildID string
	UserID  string
	RoleIDs []string
}

// Fake keeps guilds, roles and member roles in memory and records calls.
// Set the *Err fields to make the matching call fail.
type Fake struct {
	mu     sync.Mutex
	guilds map[string]*discordgo.Guild
	member map[string][]string
	nextID int

	Sent    []Sent
	Edits   []Edit
	Deleted []string
	Grants  []RoleCall
	Revokes []RoleCall

	SendErr   error
	EditErr   error
	DeleteErr error
	GrantErr  error
	RevokeErr error
	RoleErr   error
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		guilds: make(map[string]*discordgo.Guild),
		member: make(map[string][]string),
		nextID: 1000,
	}
}

// AddGuild registers a guild holding roles.
func (f *Fake) AddGuild(guildID string, roles ...*discordgo.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guilds[guildID] = &discordgo.Guild{ID: guildID, Name: "guild " + guildID, Roles: roles}
}

// RemoveRole deletes a role from its guild.
func (f *Fake) RemoveRole(guildID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guilds[guildID]
	if !ok {
		return
	}
	g.Roles = slices.DeleteFunc(g.Roles, func(r *discordgo.Role) bool { return r.ID == roleID })
}

// SetMemberRoles sets the roles a member holds.
func (f *Fake) SetMemberRoles(guildID, userID string, roleIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.member[guildID+"/"+userID] = append([]string(nil), roleIDs...)
}

// MemberRoles returns the roles a member holds.
func (f *Fake) MemberRoles(guildID, userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.member[guildID+"/"+userID]...)
}

func (f *Fake) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.nextID++
	m := &discordgo.Message{
		ID:         strconv.Itoa(f.nextID),
		ChannelID:  channelID,
		Content:    msg.Content,
		Components: msg.Components,
	}
	f.Sent = append(f.Sent, Sent{ChannelID: channelID, Message: m, Send: msg})
	return m, nil
}

func (f *Fake) EditComponents(_ context.Context, channelID, messageID string, components []discordgo.MessageComponent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EditErr != nil {
		return f.EditErr
	}
	f.Edits = append(f.Edits, Edit{ChannelID: channelID, MessageID: messageID, Components: components})
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *Fake) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guilds[guildID], nil
}

func (f *Fake) Role(_ context.Context, guildID, roleID string) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RoleErr != nil {
		return nil, f.RoleErr
	}
	g, ok := f.guilds[guildID]
	if !ok {
		return nil, nil
	}
	for _, r := range g.Roles {
		if r.ID == roleID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *Fake) GrantRoles(_ context.Context, guildID, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GrantErr != nil {
		return f.GrantErr
	}
	if _, ok := f.guilds[guildID]; !ok {
		return fmt.Errorf("unknown guild %s", guildID)
	}
	key := guildID + "/" + userID
	for _, id := range roleIDs {
		if !slices.Contains(f.member[key], id) {
			f.member[key] = append(f.member[key], id)
		}
	}
	f.Grants = append(f.Grants, RoleCall{GuildID: guildID, UserID: userID, RoleIDs: append([]string(nil), roleIDs...)})
	return nil
}

func (f *Fake) RevokeRoles(_ context.Context, guildID, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		return f.RevokeErr
	}
	key := guildID + "/" + userID
	f.member[key] = slices.DeleteFunc(f.member[key], func(id string) bool { return slices.Contains(roleIDs, id) })
	f.Revokes = append(f.Revokes, RoleCall{GuildID: guildID, UserID: userID, RoleIDs: append([]string(nil), roleIDs...)})
	return nil
}

var _ gateway.Gateway = (*Fake)(nil)
