package roles

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// MaxRoles is the number of options a Discord select menu can hold.
const MaxRoles = 25

// View is the in-memory form of a role menu: its roles, the tokens of its
// controls and what each member last picked in the select.
type View struct {
	kind  Kind
	roles []*discordgo.Role
	ids   ComponentIDs

	mu      sync.Mutex
	pending map[string][]*discordgo.Role
}

// NewView builds a view. A nil ids mints fresh tokens; otherwise ids are
// used verbatim and must cover every control of kind. Nil and duplicate roles
// are dropped and at most MaxRoles are kept.
func NewView(kind Kind, roles []*discordgo.Role, ids ComponentIDs) (*View, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = NewComponentIDs(kind)
	} else if err := ids.validate(kind); err != nil {
		return nil, err
	}
	return &View{
		kind:    kind,
		roles:   dedupeRoles(roles),
		ids:     ids,
		pending: make(map[string][]*discordgo.Role),
	}, nil
}

func dedupeRoles(in []*discordgo.Role) []*discordgo.Role {
	seen := make(map[string]struct{}, len(in))
	out := make([]*discordgo.Role, 0, len(in))
	for _, r := range in {
		if r == nil {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
		if len(out) == MaxRoles {
			break
		}
	}
	return out
}

func (v *View) Kind() Kind { return v.kind }

// Roles returns the menu's roles in display order.
func (v *View) Roles() []*discordgo.Role {
	return append([]*discordgo.Role(nil), v.roles...)
}

// RoleIDs returns the ids of Roles.
func (v *View) RoleIDs() []string {
	out := make([]string, len(v.roles))
	for i, r := range v.roles {
		out[i] = r.ID
	}
	return out
}

// ComponentIDs returns a copy of the control tokens.
func (v *View) ComponentIDs() ComponentIDs {
	out := make(ComponentIDs, len(v.ids))
	for k, tok := range v.ids {
		out[k] = tok
	}
	return out
}

// SetSelection replaces the pending selection of a member.
func (v *View) SetSelection(userID string, roles []*discordgo.Role) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending[userID] = append([]*discordgo.Role(nil), roles...)
}

// Selection returns the pending selection of a member.
func (v *View) Selection(userID string) ([]*discordgo.Role, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	sel, ok := v.pending[userID]
	if !ok {
		return nil, false
	}
	return append([]*discordgo.Role(nil), sel...), true
}

// adoptSelections copies pending selections from a view this one replaces,
// keeping only roles that are still on the menu.
func (v *View) adoptSelections(old *View) {
	if old == nil || old == v {
		return
	}
	old.mu.Lock()
	prev := make(map[string][]*discordgo.Role, len(old.pending))
	for user, sel := range old.pending {
		prev[user] = sel
	}
	old.mu.Unlock()

	for user, sel := range prev {
		kept := v.rolesByID(roleIDs(sel))
		if len(kept) > 0 {
			v.SetSelection(user, kept)
		}
	}
}

// rolesByID maps select values back to the view's roles. Unknown ids are
// ignored.
func (v *View) rolesByID(ids []string) []*discordgo.Role {
	out := make([]*discordgo.Role, 0, len(ids))
	for _, id := range ids {
		for _, r := range v.roles {
			if r.ID == id {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func roleIDs(roles []*discordgo.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.ID
	}
	return out
}

// Components renders the message components of the view.
func (v *View) Components() []discordgo.MessageComponent {
	menu := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    v.ids[SelectControl],
		Placeholder: "Select roles",
		MinValues:   intPtr(1),
		MaxValues:   len(v.roles),
	}
	if v.kind == KindToggle {
		menu.Placeholder = "Select a role"
		menu.MaxValues = 1
	}
	for _, r := range v.roles {
		menu.Options = append(menu.Options, discordgo.SelectMenuOption{
			Label: optionLabel(r),
			Value: r.ID,
		})
	}
	if len(menu.Options) == 0 {
		// Discord rejects a select without options.
		menu.Disabled = true
		menu.Placeholder = "No roles available"
		menu.MaxValues = 1
		menu.Options = []discordgo.SelectMenuOption{{Label: "No roles available", Value: "none"}}
	}

	rows := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}},
	}
	if v.kind == KindSelect {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Add",
				Style:    discordgo.SuccessButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "➕"},
				CustomID: v.ids[AddControl],
			},
			discordgo.Button{
				Label:    "Remove",
				Style:    discordgo.DangerButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "➖"},
				CustomID: v.ids[RemoveControl],
			},
		}})
	}
	return rows
}

func optionLabel(r *discordgo.Role) string {
	if r.Name == "" {
		return fmt.Sprintf("Role %s", r.ID)
	}
	// Select option labels are capped at 100 characters.
	if len([]rune(r.Name)) > 100 {
		return string([]rune(r.Name)[:100])
	}
	return r.Name
}

func intPtr(i int) *int { return &i }
