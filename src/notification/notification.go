package notification

import (
	"log"
)

const maxToastChars = 200

// ShowStatus displays a short-lived, non-activating toast in the lower-left
// corner. It never blocks the caller.
func ShowStatus(text string) {
	displayText := text
	if len([]rune(text)) > maxToastChars {
		displayText = string([]rune(text)[:maxToastChars]) + "..."
	}
	if err := showToast(displayText); err != nil {
		log.Printf("Failed to show notification: %v", err)
	}
}

// ShowOverlay puts up the topmost "input is blocked" banner, replacing the
// text of one already visible.
func ShowOverlay(reason string) {
	if err := showOverlay("Input blocked: " + reason + "\nPlease wait, do not touch mouse or keyboard"); err != nil {
		log.Printf("Overlay: show failed: %v", err)
	}
}

// CloseOverlay removes the banner. Safe to call when none is visible.
func CloseOverlay() {
	if err := closeOverlay(); err != nil {
		log.Printf("Overlay: close failed: %v", err)
	}
}

// Overlay adapts the package-level banner to the inputblock.Overlay interface.
type Overlay struct{}

func (Overlay) Show(reason string) { ShowOverlay(reason) }
func (Overlay) Hide()              { CloseOverlay() }
