package action

import "github.com/go-vgo/robotgo"

// Driver performs the physical pointer/keyboard effects. The executor only
// touches it in live-run mode, and tests substitute a mock.
type Driver interface {
	MoveMouse(x, y int) error
	Click(x, y int) error
	TypeText(text string) error
	Scroll(dy int) error
}

// RobotDriver drives the real pointer and keyboard.
type RobotDriver struct{}

func NewRobotDriver() *RobotDriver {
	return &RobotDriver{}
}

func (d *RobotDriver) MoveMouse(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (d *RobotDriver) Click(x, y int) error {
	robotgo.Move(x, y)
	robotgo.Click("left")
	return nil
}

func (d *RobotDriver) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

func (d *RobotDriver) Scroll(dy int) error {
	robotgo.Scroll(0, dy)
	return nil
}
