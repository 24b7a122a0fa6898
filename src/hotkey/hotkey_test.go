package hotkey

import (
	"reflect"
	"testing"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"control", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"super", []uint16{91, 92}},
		{"b", []uint16{66}},
		{"z", []uint16{90}},
		{"0", []uint16{48}},
		{"9", []uint16{57}},
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"escape", []uint16{27}},
		{"pgdn", []uint16{34}},
		{"unknown", nil},
	}
	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			if got := keyNameToRawcodes(tt.keyName); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) = %v, want %v", tt.keyName, got, tt.expected)
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+B", []string{"ctrl", "alt", "b"}},
		{"Ctrl + Shift + F13", []string{"ctrl", "shift", "f13"}},
		{"Win+Shift+S", []string{"cmd", "shift", "s"}},
		{"Control+Return", []string{"ctrl", "enter"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseHotkey(tt.input); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseHotkey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseComboRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseCombo("Ctrl+Hyper"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := ParseCombo(" + "); err == nil {
		t.Error("expected error for empty combo")
	}
}

func TestComboFiresOncePerPress(t *testing.T) {
	c, err := ParseCombo("Ctrl+Alt+B")
	if err != nil {
		t.Fatal(err)
	}
	const lctrl, ralt, b, other = 162, 165, 66, 67

	if c.Down(lctrl) || c.Down(other) || c.Down(ralt) {
		t.Fatal("fired before all keys were held")
	}
	if !c.Down(b) {
		t.Fatal("did not fire with all keys held")
	}
	// State resets after firing; auto-repeat of B alone does nothing.
	if c.Down(b) {
		t.Error("fired again on key repeat")
	}

	c.Up(b)
	c.Up(ralt)
	if c.Down(lctrl) || c.Down(b) {
		t.Error("fired without alt held")
	}
	if !c.Down(ralt) {
		t.Error("did not fire when last key arrived")
	}
}
