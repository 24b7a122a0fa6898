package clipboard

import (
	"log"
	"sync"

	"golang.design/x/clipboard"
)

var (
	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
)

// Init prepares the system clipboard; later calls return the first result.
func Init() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	if err := Init(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Read returns the current clipboard text, empty when it holds none.
func Read() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	mu.Lock()
	defer mu.Unlock()
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// WithText places text on the clipboard for the duration of fn, then puts the
// previous text content back. Non-text content is not preserved.
func WithText(text string, fn func() error) error {
	prev, err := Read()
	if err != nil {
		return err
	}
	if err := Write(text); err != nil {
		return err
	}
	defer func() {
		if prev == "" {
			return
		}
		if err := Write(prev); err != nil {
			log.Printf("Clipboard: restore failed: %v", err)
		}
	}()
	return fn()
}

// System exposes the package functions as a value for callers that take a
// paste interface.
type System struct{}

func (System) WithText(text string, fn func() error) error { return WithText(text, fn) }
