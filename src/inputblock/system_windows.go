//go:build windows

package inputblock

import (
	"golang.org/x/sys/windows"
)

var (
	user32         = windows.NewLazySystemDLL("user32.dll")
	procBlockInput = user32.NewProc("BlockInput")
)

// NewSystem returns the Win32 BlockInput toggle. Blocking requires the
// process to run elevated; otherwise Block returns an access error.
func NewSystem() System { return win32System{} }

type win32System struct{}

func (win32System) Block() error   { return blockInput(true) }
func (win32System) Unblock() error { return blockInput(false) }

func blockInput(on bool) error {
	var arg uintptr
	if on {
		arg = 1
	}
	ret, _, err := procBlockInput.Call(arg)
	if ret == 0 {
		return err
	}
	return nil
}
