package roles

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/physum/physbot/pkg/storage"
)

// Control names, as persisted in roles_component.name.
const (
	SelectControl = "select_id"
	AddControl    = "add_id"
	RemoveControl = "remove_id"
)

// ComponentIDs maps a control name to the custom id Discord echoes back when
// the control is used. Tokens are minted once and then only ever read back
// from storage.
type ComponentIDs map[string]string

// NewComponentIDs mints a fresh 32 hex character token per control of kind.
func NewComponentIDs(kind Kind) ComponentIDs {
	ids := make(ComponentIDs, 3)
	for _, name := range kind.Controls() {
		ids[name] = newToken()
	}
	return ids
}

func newToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// ComponentIDsFromRows rebuilds the map from persisted rows.
func ComponentIDsFromRows(rows []storage.RoleMenuComponent) ComponentIDs {
	ids := make(ComponentIDs, len(rows))
	for _, r := range rows {
		ids[r.Name] = r.ComponentID
	}
	return ids
}

// Rows converts the map into rows for storage, in control order.
func (ids ComponentIDs) Rows(kind Kind) []storage.RoleMenuComponent {
	out := make([]storage.RoleMenuComponent, 0, len(ids))
	for _, name := range kind.Controls() {
		if tok, ok := ids[name]; ok {
			out = append(out, storage.RoleMenuComponent{ComponentID: tok, Name: name})
		}
	}
	return out
}

func (ids ComponentIDs) validate(kind Kind) error {
	for _, name := range kind.Controls() {
		if ids[name] == "" {
			return fmt.Errorf("%s menu is missing component %s", kind, name)
		}
	}
	return nil
}
