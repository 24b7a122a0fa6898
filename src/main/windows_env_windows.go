//go:build windows

package main

import (
	"log"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const processPerMonitorDPIAware = 2

// enableDPIAwareness keeps window rectangles in physical pixels so the
// locator's area ranking and diagnostics capture match the screen.
func enableDPIAwareness() {
	shcore := windows.NewLazySystemDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			log.Printf("DPI: per-monitor awareness set")
		} else {
			log.Printf("DPI: SetProcessDpiAwareness failed: 0x%x", ret)
		}
		return
	}

	user32 := windows.NewLazySystemDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		log.Printf("DPI: no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret != 0 {
		log.Printf("DPI: system awareness set (fallback)")
	}
}

const (
	smCXScreen        = 0
	smCYScreen        = 1
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	smCMonitors       = 80
)

func logMonitorConfiguration() {
	log.Printf("MONITOR: %d monitors, virtual x:%d y:%d w:%d h:%d, primary w:%d h:%d",
		win.GetSystemMetrics(smCMonitors),
		win.GetSystemMetrics(smXVirtualScreen), win.GetSystemMetrics(smYVirtualScreen),
		win.GetSystemMetrics(smCXVirtualScreen), win.GetSystemMetrics(smCYVirtualScreen),
		win.GetSystemMetrics(smCXScreen), win.GetSystemMetrics(smCYScreen))
}
