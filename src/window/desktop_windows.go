//go:build windows

package window

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const fileDialogClass = "#32770"

var (
	user32          = syscall.NewLazyDLL("user32.dll")
	procKeybdEvent  = user32.NewProc("keybd_event")
	procAllowSetFgW = user32.NewProc("AllowSetForegroundWindow")
	procGetWindowW  = user32.NewProc("GetWindowTextW")

	enumCallback = syscall.NewCallback(enumProc)

	enumMu    sync.Mutex
	enumSeq   uintptr
	enumFuncs = map[uintptr]func(windows.HWND) bool{}
)

// enumProc dispatches EnumWindows/EnumChildWindows callbacks to the Go
// closure registered under lparam. Returning 0 stops the enumeration.
func enumProc(hwnd windows.HWND, lparam uintptr) uintptr {
	enumMu.Lock()
	fn := enumFuncs[lparam]
	enumMu.Unlock()
	if fn == nil || !fn(hwnd) {
		return 0
	}
	return 1
}

func register(fn func(windows.HWND) bool) (uintptr, func()) {
	enumMu.Lock()
	enumSeq++
	id := enumSeq
	enumFuncs[id] = fn
	enumMu.Unlock()
	return id, func() {
		enumMu.Lock()
		delete(enumFuncs, id)
		enumMu.Unlock()
	}
}

func eachTopLevel(fn func(windows.HWND) bool) {
	id, done := register(fn)
	defer done()
	// EnumWindows reports an error when the callback stops early; ignore it.
	_ = windows.EnumWindows(enumCallback, unsafe.Pointer(id))
}

func eachChild(parent windows.HWND, fn func(windows.HWND) bool) {
	id, done := register(fn)
	defer done()
	win.EnumChildWindows(win.HWND(parent), enumCallback, id)
}

// NewDesktop returns the Win32 desktop.
func NewDesktop() *Win32Desktop { return &Win32Desktop{} }

// Win32Desktop implements Desktop and Dialogs with user32.
type Win32Desktop struct{}

func (d *Win32Desktop) TopLevelWindows(pid int32) ([]Candidate, error) {
	var out []Candidate
	eachTopLevel(func(hwnd windows.HWND) bool {
		if !windows.IsWindowVisible(hwnd) {
			return true
		}
		var owner uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &owner); err != nil || int32(owner) != pid {
			return true
		}
		title := windowText(hwnd)
		if title == "" {
			return true
		}
		var r win.RECT
		if !win.GetWindowRect(win.HWND(hwnd), &r) {
			return true
		}
		out = append(out, Candidate{
			PID:    pid,
			Handle: Handle(hwnd),
			Title:  title,
			Rect:   Rect{Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom},
		})
		return true
	})
	return out, nil
}

func (d *Win32Desktop) Foreground(h Handle) error {
	hwnd := windows.HWND(h)
	if !windows.IsWindow(hwnd) {
		return fmt.Errorf("window %#x no longer exists", uintptr(h))
	}
	if win.IsIconic(win.HWND(h)) {
		win.ShowWindow(win.HWND(h), win.SW_RESTORE)
	}
	const asfwAny = ^uintptr(0)
	procAllowSetFgW.Call(asfwAny)

	// A synthetic Alt tap lifts the foreground lock for background callers.
	const vkMenu, keyUp = 0x12, 0x0002
	procKeybdEvent.Call(vkMenu, 0, 0, 0)
	procKeybdEvent.Call(vkMenu, 0, keyUp, 0)

	win.SetForegroundWindow(win.HWND(h))
	win.BringWindowToTop(win.HWND(h))

	for i := 0; i < 5; i++ {
		if windows.GetForegroundWindow() == hwnd {
			return nil
		}
		time.Sleep(40 * time.Millisecond)
	}
	return errors.New("SetForegroundWindow did not take effect")
}

func (d *Win32Desktop) Bounds(h Handle) (Rect, error) {
	var r win.RECT
	if !win.GetWindowRect(win.HWND(h), &r) {
		return Rect{}, fmt.Errorf("GetWindowRect failed for %#x", uintptr(h))
	}
	return Rect{Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom}, nil
}

// FindFileDialog prefers the foreground dialog, then any visible one.
func (d *Win32Desktop) FindFileDialog() (Handle, bool) {
	fg := windows.GetForegroundWindow()
	if isFileDialog(fg) {
		return Handle(fg), true
	}
	var found windows.HWND
	eachTopLevel(func(hwnd windows.HWND) bool {
		if isFileDialog(hwnd) {
			found = hwnd
			return false
		}
		return true
	})
	return Handle(found), found != 0
}

func (d *Win32Desktop) SetFileName(dlg Handle, path string) error {
	edit := fileNameEdit(windows.HWND(dlg))
	if edit == 0 {
		return errors.New("file dialog has no filename field")
	}
	text, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	win.SendMessage(win.HWND(edit), win.WM_SETTEXT, 0, uintptr(unsafe.Pointer(text)))
	if got := windowText(edit); !strings.EqualFold(got, path) {
		return fmt.Errorf("filename field reads %q after WM_SETTEXT", got)
	}
	return nil
}

func (d *Win32Desktop) Submit(dlg Handle) error {
	if !windows.IsWindow(windows.HWND(dlg)) {
		return errors.New("file dialog closed")
	}
	win.SendMessage(win.HWND(dlg), win.WM_COMMAND, win.IDOK, 0)
	return nil
}

func isFileDialog(hwnd windows.HWND) bool {
	if hwnd == 0 || !windows.IsWindowVisible(hwnd) {
		return false
	}
	return className(hwnd) == fileDialogClass && fileNameEdit(hwnd) != 0
}

// fileNameEdit finds the first visible Edit control, which in both the
// classic and Vista-style pickers is the filename box.
func fileNameEdit(dlg windows.HWND) windows.HWND {
	var edit windows.HWND
	eachChild(dlg, func(child windows.HWND) bool {
		if className(child) == "Edit" && windows.IsWindowVisible(child) {
			edit = child
			return false
		}
		return true
	})
	return edit
}

func className(hwnd windows.HWND) string {
	buf := make([]uint16, 256)
	n, err := windows.GetClassName(hwnd, &buf[0], int32(len(buf)))
	if err != nil || n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func windowText(hwnd windows.HWND) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 || int(n) > len(buf) {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}
