package roles

import "fmt"

// Kind is the variant of a role menu.
type Kind string

const (
	// KindSelect lets members pick several roles, then press Add or Remove.
	KindSelect Kind = "select"
	// KindToggle lets members hold exactly one role of the menu at a time.
	KindToggle Kind = "toggle"
)

// ParseKind maps a persisted view_type to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSelect:
		return KindSelect, nil
	case KindToggle:
		return KindToggle, nil
	}
	return "", fmt.Errorf("unknown role menu type %q", s)
}

func (k Kind) String() string { return string(k) }

// Controls lists the control names a kind renders, in display order.
func (k Kind) Controls() []string {
	if k == KindToggle {
		return []string{SelectControl}
	}
	return []string{SelectControl, AddControl, RemoveControl}
}
