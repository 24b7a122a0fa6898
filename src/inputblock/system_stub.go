//go:build !windows

package inputblock

import "errors"

// NewSystem returns a toggle that cannot block input on this platform.
func NewSystem() System { return stubSystem{} }

type stubSystem struct{}

func (stubSystem) Block() error   { return errors.New("input blocking is only supported on Windows") }
func (stubSystem) Unblock() error { return nil }
