package roles

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/metrics"
)

// NoSelectionMessage answers Add or Remove pressed before picking roles.
const NoSelectionMessage = "There was an error. You need to select at least one role."

// Event is a component interaction on a role menu.
type Event struct {
	Control     string
	GuildID     string
	UserID      string
	MemberRoles []string
	Values      []string
}

// Reply is how the interaction should be acknowledged. Deferred means a
// silent acknowledgement; otherwise Content goes back ephemerally.
type Reply struct {
	Deferred bool
	Content  string
}

// Handle applies an interaction to the view.
func (v *View) Handle(ctx context.Context, gw gateway.Gateway, ev Event) (Reply, error) {
	reply, err := v.handle(ctx, gw, ev)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case reply.Content == NoSelectionMessage:
		outcome = "no_selection"
	}
	metrics.RoleMenuInteractions.WithLabelValues(ev.Control, outcome).Inc()
	return reply, err
}

func (v *View) handle(ctx context.Context, gw gateway.Gateway, ev Event) (Reply, error) {
	switch ev.Control {
	case SelectControl:
		picked := v.rolesByID(ev.Values)
		if v.kind == KindToggle {
			return v.toggle(ctx, gw, ev, picked)
		}
		v.SetSelection(ev.UserID, picked)
		return Reply{Deferred: true}, nil

	case AddControl, RemoveControl:
		if v.kind != KindSelect {
			return Reply{}, fmt.Errorf("%s menu has no %s control", v.kind, ev.Control)
		}
		sel, ok := v.Selection(ev.UserID)
		if !ok || len(sel) == 0 {
			return Reply{Content: NoSelectionMessage}, nil
		}
		if ev.Control == AddControl {
			err := grant(ctx, gw, ev, missing(sel, ev.MemberRoles))
			if err != nil {
				return Reply{}, err
			}
		} else {
			err := revoke(ctx, gw, ev, held(sel, ev.MemberRoles))
			if err != nil {
				return Reply{}, err
			}
		}
		// The selection is kept so the same choice can be applied again.
		return Reply{Content: changingRoles(sel, ev.UserID)}, nil
	}
	return Reply{}, fmt.Errorf("unknown role menu control %q", ev.Control)
}

// toggle makes the picked role the member's only role from this menu.
func (v *View) toggle(ctx context.Context, gw gateway.Gateway, ev Event, picked []*discordgo.Role) (Reply, error) {
	if len(picked) == 0 {
		return Reply{Content: NoSelectionMessage}, nil
	}
	target := picked[:1]
	v.SetSelection(ev.UserID, target)

	var others []*discordgo.Role
	for _, r := range v.roles {
		if r.ID != target[0].ID {
			others = append(others, r)
		}
	}
	if err := grant(ctx, gw, ev, missing(target, ev.MemberRoles)); err != nil {
		return Reply{}, err
	}
	if err := revoke(ctx, gw, ev, held(others, ev.MemberRoles)); err != nil {
		return Reply{}, err
	}
	return Reply{Content: changingRoles(target, ev.UserID)}, nil
}

func grant(ctx context.Context, gw gateway.Gateway, ev Event, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := gw.GrantRoles(ctx, ev.GuildID, ev.UserID, ids); err != nil {
		return err
	}
	metrics.RoleChanges.WithLabelValues("grant").Add(float64(len(ids)))
	return nil
}

func revoke(ctx context.Context, gw gateway.Gateway, ev Event, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := gw.RevokeRoles(ctx, ev.GuildID, ev.UserID, ids); err != nil {
		return err
	}
	metrics.RoleChanges.WithLabelValues("revoke").Add(float64(len(ids)))
	return nil
}

// missing returns the ids of roles the member does not hold yet.
func missing(roles []*discordgo.Role, memberRoles []string) []string {
	var out []string
	for _, r := range roles {
		if !slices.Contains(memberRoles, r.ID) {
			out = append(out, r.ID)
		}
	}
	return out
}

// held returns the ids of roles the member holds.
func held(roles []*discordgo.Role, memberRoles []string) []string {
	var out []string
	for _, r := range roles {
		if slices.Contains(memberRoles, r.ID) {
			out = append(out, r.ID)
		}
	}
	return out
}

func changingRoles(roles []*discordgo.Role, userID string) string {
	mentions := make([]string, len(roles))
	for i, r := range roles {
		mentions[i] = r.Mention()
	}
	return fmt.Sprintf("Changing roles %s for member <@%s>", strings.Join(mentions, ", "), userID)
}
