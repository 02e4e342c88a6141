// Package hotkey registers the system-wide translate shortcut and runs the
// handler for each press on a dedicated goroutine.
package hotkey

import (
	"fmt"
	"sort"
	"strings"
)

// Modifier is a platform-neutral modifier key
type Modifier int

const (
	ModCtrl Modifier = iota
	ModAlt
	ModShift
	ModSuper
)

var modifierNames = map[Modifier]string{
	ModCtrl:  "ctrl",
	ModAlt:   "alt",
	ModShift: "shift",
	ModSuper: "super",
}

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"win":     ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

var keyAliases = map[string]string{
	"return": "enter",
	"esc":    "escape",
	"del":    "delete",
}

// Combo is a parsed key combination such as alt+shift+t
type Combo struct {
	Mods []Modifier
	Key  string
}

// Parse reads a combination written as modifiers and one key joined by "+".
// Names are case-insensitive.
func Parse(s string) (Combo, error) {
	if strings.TrimSpace(s) == "" {
		return Combo{}, fmt.Errorf("empty hotkey")
	}

	var combo Combo
	seen := make(map[Modifier]bool)
	for _, part := range strings.Split(s, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty key name", s)
		}
		if mod, ok := modifierAliases[name]; ok {
			if !seen[mod] {
				seen[mod] = true
				combo.Mods = append(combo.Mods, mod)
			}
			continue
		}
		if alias, ok := keyAliases[name]; ok {
			name = alias
		}
		if !isKnownKey(name) {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, part)
		}
		if combo.Key != "" {
			return Combo{}, fmt.Errorf("hotkey %q: more than one non-modifier key", s)
		}
		combo.Key = name
	}

	if combo.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	if len(combo.Mods) == 0 {
		return Combo{}, fmt.Errorf("hotkey %q: at least one modifier is required", s)
	}
	sort.Slice(combo.Mods, func(i, j int) bool { return combo.Mods[i] < combo.Mods[j] })
	return combo, nil
}

// String renders c in canonical form, e.g. "ctrl+alt+t"
func (c Combo) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, modifierNames[m])
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

func isKnownKey(name string) bool {
	if len(name) == 1 {
		c := name[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	switch name {
	case "space", "enter", "escape", "tab", "delete", "up", "down", "left", "right":
		return true
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && fmt.Sprintf("f%d", n) == name {
		return n >= 1 && n <= 20
	}
	return false
}
