//go:build !windows

package window

import "errors"

var errUnsupported = errors.New("window control is only supported on Windows")

// NewDesktop returns a desktop that finds no windows on this platform.
func NewDesktop() *StubDesktop { return &StubDesktop{} }

type StubDesktop struct{}

func (d *StubDesktop) TopLevelWindows(pid int32) ([]Candidate, error) { return nil, nil }
func (d *StubDesktop) Foreground(h Handle) error                      { return errUnsupported }
func (d *StubDesktop) Bounds(h Handle) (Rect, error)                  { return Rect{}, errUnsupported }
func (d *StubDesktop) FindFileDialog() (Handle, bool)                 { return 0, false }
func (d *StubDesktop) SetFileName(dlg Handle, path string) error      { return errUnsupported }
func (d *StubDesktop) Submit(dlg Handle) error                        { return errUnsupported }
