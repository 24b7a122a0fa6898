// Package hotkey watches the global keyboard hook for one key combination.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Windows virtual-key codes. Modifiers map to both left and right variants.
var rawcodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"esc":       {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pagedown":  {34},
	"pause":     {19},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

var aliases = map[string]string{
	"control": "ctrl",
	"win":     "cmd",
	"super":   "cmd",
	"return":  "enter",
	"escape":  "esc",
	"del":     "delete",
	"ins":     "insert",
	"pgup":    "pageup",
	"pgdn":    "pagedown",
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		rawcodes[string(c)] = []uint16{uint16(c - 'a' + 65)}
	}
	for c := '0'; c <= '9'; c++ {
		rawcodes[string(c)] = []uint16{uint16(c - '0' + 48)}
	}
	for i := 1; i <= 24; i++ {
		rawcodes[fmt.Sprintf("f%d", i)] = []uint16{uint16(111 + i)}
	}
}

// parseHotkey converts "Ctrl+Alt+B" to normalized key names.
func parseHotkey(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if a, ok := aliases[part]; ok {
			part = a
		}
		keys = append(keys, part)
	}
	return keys
}

func keyNameToRawcodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		name = a
	}
	return rawcodes[name]
}

// Combo tracks which keys of a combination are held.
type Combo struct {
	mu    sync.Mutex
	names []string
	codes [][]uint16
	held  []bool
}

// ParseCombo builds a Combo; every key must be known.
func ParseCombo(combo string) (*Combo, error) {
	c := &Combo{}
	for _, name := range parseHotkey(combo) {
		codes := keyNameToRawcodes(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", combo, name)
		}
		c.names = append(c.names, name)
		c.codes = append(c.codes, codes)
	}
	if len(c.names) == 0 {
		return nil, fmt.Errorf("hotkey %q has no keys", combo)
	}
	c.held = make([]bool, len(c.names))
	return c, nil
}

func (c *Combo) index(raw uint16) int {
	for i, codes := range c.codes {
		for _, code := range codes {
			if code == raw {
				return i
			}
		}
	}
	return -1
}

// Down records a key press and reports whether the whole combination is now
// held. A completed combination resets so holding the keys fires once.
func (c *Combo) Down(raw uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(raw)
	if i < 0 {
		return false
	}
	c.held[i] = true
	for _, h := range c.held {
		if !h {
			return false
		}
	}
	for j := range c.held {
		c.held[j] = false
	}
	return true
}

// Up records a key release.
func (c *Combo) Up(raw uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(raw); i >= 0 {
		c.held[i] = false
	}
}

var hookMu sync.Mutex

// Listen starts the global hook and calls callback, on the hook goroutine,
// each time combo is pressed. The returned stop function ends the hook.
func Listen(combo string, callback func()) (stop func(), err error) {
	c, err := ParseCombo(combo)
	if err != nil {
		return nil, err
	}
	hookMu.Lock()
	evChan := gohook.Start()
	hookMu.Unlock()
	if evChan == nil {
		return nil, fmt.Errorf("hotkey: global hook failed to start")
	}
	log.Printf("Hotkey: listening for %s", combo)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Hotkey: PANIC in hook goroutine: %v", r)
			}
		}()
		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				if c.Down(ev.Rawcode) {
					log.Printf("Hotkey: %s pressed", combo)
					if callback != nil {
						callback()
					}
				}
			case gohook.KeyUp:
				c.Up(ev.Rawcode)
			}
		}
		log.Printf("Hotkey: event channel closed")
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			hookMu.Lock()
			gohook.End()
			hookMu.Unlock()
		})
	}, nil
}
