// Package tray runs the notification-area icon and its menu.
package tray

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/getlantern/systray"
)

// Menu holds the click handlers. Each runs on its own goroutine.
type Menu struct {
	OnRun     func()
	OnRestore func()
	OnInstall func()
	OnAbout   func()
	OnQuit    func()
}

var (
	ready   atomic.Bool
	mu      sync.Mutex
	pending string
	about   string
)

// Run shows the icon and blocks until Quit. onReady runs once the menu exists.
func Run(tooltip string, menu Menu, onReady, onExit func()) {
	systray.Run(func() {
		systray.SetIcon(iconICO())
		systray.SetTitle("CapCut Bypass")
		systray.SetTooltip(tooltip)

		mRun := systray.AddMenuItem("Run bypass", "Compound, pre-process and replace the selected clip")
		mRestore := systray.AddMenuItem("Restore backup", "Put the project back as it was before the last run")
		mInstall := systray.AddMenuItem("Install shortcuts", "Patch CapCut's shortcut files")
		systray.AddSeparator()
		mAbout := systray.AddMenuItem("About", "")
		mQuit := systray.AddMenuItem("Quit", "Quit the application")

		ready.Store(true)
		mu.Lock()
		if pending != "" {
			systray.SetTooltip(pending)
		}
		mu.Unlock()

		go func() {
			for {
				select {
				case <-mRun.ClickedCh:
					dispatch(menu.OnRun)
				case <-mRestore.ClickedCh:
					dispatch(menu.OnRestore)
				case <-mInstall.ClickedCh:
					dispatch(menu.OnInstall)
				case <-mAbout.ClickedCh:
					dispatch(menu.OnAbout)
				case <-mQuit.ClickedCh:
					dispatch(menu.OnQuit)
					systray.Quit()
					return
				}
			}
		}()
		if onReady != nil {
			onReady()
		}
	}, func() {
		ready.Store(false)
		if onExit != nil {
			onExit()
		}
	})
}

func dispatch(fn func()) {
	if fn == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Tray: PANIC in menu handler: %v", r)
			}
		}()
		fn()
	}()
}

// UpdateTooltip sets the hover text; calls before the icon exists are kept
// and applied when it appears.
func UpdateTooltip(text string) {
	mu.Lock()
	defer mu.Unlock()
	pending = text
	if ready.Load() {
		systray.SetTooltip(text)
	}
}

// SetAboutExtra records an extra line for the About box.
func SetAboutExtra(text string) {
	mu.Lock()
	about = text
	mu.Unlock()
}

// AboutExtra returns the line set by SetAboutExtra.
func AboutExtra() string {
	mu.Lock()
	defer mu.Unlock()
	return about
}

// Quit removes the icon and makes Run return.
func Quit() { systray.Quit() }
