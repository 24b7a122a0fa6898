//go:build !windows

package notification

import "log"

// ShowBlockingError logs a blocking error message on non-Windows platforms.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
}

// ShowInfo logs an informational message on non-Windows platforms.
func ShowInfo(title, message string) {
	log.Printf("%s: %s", title, message)
}

// AskYesNo cannot prompt here and always declines.
func AskYesNo(title, message string) bool {
	log.Printf("%s: %s (declined, no prompt available)", title, message)
	return false
}

func showToast(text string) error {
	log.Printf("Status: %s", text)
	return nil
}

func showOverlay(text string) error {
	log.Printf("Overlay: %s", text)
	return nil
}

func closeOverlay() error { return nil }
