package theme

import (
	"fmt"
	"sort"
	"sync"
)

// Color is the int value used by discordgo.MessageEmbed.Color
type Color = int

// Theme holds all color roles used across the project.
// Keep these roles generic enough so they can be reused across features.
// If a feature needs a very specific color, add it here so themes can
// override it explicitly.
type Theme struct {
	// Human-friendly name for the theme (unique within the registry).
	Name string

	// Core roles
	Primary Color
	Info    Color
	Success Color
	Error   Color
	Muted   Color

	// Feature roles
	RoleMenu      Color
	FAQ           Color
	MemberInfo    Color
	MessageEdit   Color
	MessageDelete Color
}

// Clone returns a copy of the Theme.
func (t *Theme) Clone() *Theme {
	cp := *t
	return &cp
}

// ensureDefaults fills zero-valued fields so themes can override only a
// subset of roles.
func (t *Theme) ensureDefaults() {
	if t.Primary == 0 {
		t.Primary = 0x5865F2
	}
	if t.Info == 0 {
		t.Info = 0x3B82F6
	}
	if t.Success == 0 {
		t.Success = 0x57F287
	}
	if t.Error == 0 {
		t.Error = 0xED4245
	}
	if t.Muted == 0 {
		t.Muted = 0x99AAB5
	}

	if t.RoleMenu == 0 {
		t.RoleMenu = t.Success
	}
	if t.FAQ == 0 {
		t.FAQ = t.Primary
	}
	if t.MemberInfo == 0 {
		t.MemberInfo = t.Primary
	}
	if t.MessageEdit == 0 {
		t.MessageEdit = 0xE0AF68
	}
	if t.MessageDelete == 0 {
		t.MessageDelete = 0xF7768E
	}
}

func defaultTheme() *Theme {
	th := &Theme{Name: "default"}
	th.ensureDefaults()
	return th
}

var (
	mu        sync.RWMutex
	registry  = map[string]*Theme{}
	currentTh = defaultTheme()
)

// Register adds a theme to the registry. It returns an error if the name is empty or already registered.
func Register(t *Theme) error {
	if t == nil {
		return fmt.Errorf("theme: cannot register nil theme")
	}
	if t.Name == "" {
		return fmt.Errorf("theme: name is required")
	}
	cp := t.Clone()
	cp.ensureDefaults()

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[cp.Name]; exists {
		return fmt.Errorf("theme: theme %q already registered", cp.Name)
	}
	registry[cp.Name] = cp
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(t *Theme) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

// SetCurrent switches the active theme by name. An empty name restores the
// default theme.
func SetCurrent(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || name == "default" {
		currentTh = defaultTheme()
		return nil
	}
	th, ok := registry[name]
	if !ok {
		return fmt.Errorf("theme: theme %q not found", name)
	}
	currentTh = th.Clone()
	return nil
}

// Names lists the registered themes.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry)+1)
	out = append(out, "default")
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out[1:])
	return out
}

// Current returns a copy of the current theme.
func Current() *Theme {
	mu.RLock()
	defer mu.RUnlock()
	return currentTh.Clone()
}

// Default returns a copy of the built-in default theme.
func Default() *Theme {
	return defaultTheme()
}

func Primary() Color       { return Current().Primary }
func Info() Color          { return Current().Info }
func Success() Color       { return Current().Success }
func Error() Color         { return Current().Error }
func Muted() Color         { return Current().Muted }
func RoleMenu() Color      { return Current().RoleMenu }
func FAQ() Color           { return Current().FAQ }
func MemberInfo() Color    { return Current().MemberInfo }
func MessageEdit() Color   { return Current().MessageEdit }
func MessageDelete() Color { return Current().MessageDelete }
