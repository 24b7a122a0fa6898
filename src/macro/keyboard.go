package macro

import (
	"github.com/go-vgo/robotgo"
)

// RobotKeyboard sends synthetic key events with robotgo.
type RobotKeyboard struct{}

func (RobotKeyboard) Tap(c Chord) error {
	args := make([]interface{}, 0, len(c.Modifiers))
	for _, m := range c.Modifiers {
		args = append(args, m)
	}
	return robotgo.KeyTap(c.Key, args...)
}
