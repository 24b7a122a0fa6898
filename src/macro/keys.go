package macro

import (
	"fmt"
	"strings"
)

// Chord is one key with its held modifiers, in robotgo key names.
type Chord struct {
	Key       string
	Modifiers []string
}

func (c Chord) String() string {
	if c.Key == "" {
		return ""
	}
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		parts = append(parts, strings.ToUpper(m[:1])+m[1:])
	}
	parts = append(parts, strings.ToUpper(c.Key[:1])+c.Key[1:])
	return strings.Join(parts, "+")
}

var modifierNames = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"shift":   "shift",
	"win":     "cmd",
	"cmd":     "cmd",
}

var keyNames = map[string]string{
	"return": "enter",
	"esc":    "escape",
	"del":    "delete",
	"space":  "space",
}

// ParseChord turns "Ctrl+Shift+L" style text into a Chord.
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	if len(parts) == 0 || strings.TrimSpace(parts[len(parts)-1]) == "" {
		return Chord{}, fmt.Errorf("empty key in chord %q", s)
	}
	var c Chord
	for i, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if i < len(parts)-1 {
			mod, ok := modifierNames[p]
			if !ok {
				return Chord{}, fmt.Errorf("unknown modifier %q in chord %q", p, s)
			}
			c.Modifiers = append(c.Modifiers, mod)
			continue
		}
		if alias, ok := keyNames[p]; ok {
			p = alias
		}
		c.Key = p
	}
	return c, nil
}

// MustChord is ParseChord for literals.
func MustChord(s string) Chord {
	c, err := ParseChord(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Keys is the editor shortcut map the scripts rely on.
type Keys struct {
	SelectAll   Chord
	Compound    Chord
	Save        Chord
	Preprocess  Chord
	ReplaceClip Chord
	Export      Chord
	Paste       Chord
	Confirm     Chord
}

// DefaultKeys matches the shortcut file written by the shortcuts installer.
func DefaultKeys() Keys {
	return Keys{
		SelectAll:   MustChord("Ctrl+A"),
		Compound:    MustChord("Alt+G"),
		Save:        MustChord("Ctrl+S"),
		Preprocess:  MustChord("Ctrl+P"),
		ReplaceClip: MustChord("Ctrl+L"),
		Export:      MustChord("Ctrl+E"),
		Paste:       MustChord("Ctrl+V"),
		Confirm:     MustChord("Enter"),
	}
}
