package action

import (
	"fmt"
	"image"
	"testing"

	"github.com/screenfleet/screenfleet/internal/screen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDriver is a mock implementation of Driver
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) MoveMouse(x, y int) error {
	args := m.Called(x, y)
	return args.Error(0)
}

func (m *MockDriver) Click(x, y int) error {
	args := m.Called(x, y)
	return args.Error(0)
}

func (m *MockDriver) TypeText(text string) error {
	args := m.Called(text)
	return args.Error(0)
}

func (m *MockDriver) Scroll(dy int) error {
	args := m.Called(dy)
	return args.Error(0)
}

type fixedSource struct {
	screens []screen.Screen
}

func (s *fixedSource) Screens() []screen.Screen {
	return s.screens
}

func (s *fixedSource) Capture(idx screen.Index) (*image.RGBA, screen.Screen, error) {
	return nil, screen.Screen{}, fmt.Errorf("not implemented")
}

func dualMonitorSource() *fixedSource {
	return &fixedSource{screens: []screen.Screen{
		{Index: 0, Primary: true, Left: 0, Top: 0, Width: 1920, Height: 1080},
		{Index: 1, Left: 1920, Top: 0, Width: 1920, Height: 1080},
	}}
}

func TestExecutor_DryRunNeverTouchesDriver(t *testing.T) {
	driver := new(MockDriver)
	exec := NewExecutor(dualMonitorSource(), driver, DryRun)

	err := exec.Execute(Action{Kind: KindClick, X: 0.5, Y: 0.5, Screen: 0, Relative: true})
	require.NoError(t, err)

	driver.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
	driver.AssertNotCalled(t, "MoveMouse", mock.Anything, mock.Anything)
}

func TestExecutor_RelativeCoordinatesAreFractions(t *testing.T) {
	driver := new(MockDriver)
	driver.On("Click", 2880, 540).Return(nil)
	exec := NewExecutor(dualMonitorSource(), driver, LiveRun)

	// Center of screen 1 (left 1920, 1920x1080) resolves to (2880, 540).
	err := exec.Execute(Action{Kind: KindClick, X: 0.5, Y: 0.5, Screen: 1, Relative: true})
	require.NoError(t, err)

	driver.AssertExpectations(t)
}

func TestExecutor_AbsoluteCoordinatesPassThrough(t *testing.T) {
	driver := new(MockDriver)
	driver.On("Click", 100, 200).Return(nil)
	exec := NewExecutor(dualMonitorSource(), driver, LiveRun)

	err := exec.Execute(Action{Kind: KindClick, X: 100, Y: 200, Screen: 0, Relative: false})
	require.NoError(t, err)

	driver.AssertExpectations(t)
}

func TestExecutor_UnknownScreenFallsBackToAbsolute(t *testing.T) {
	driver := new(MockDriver)
	driver.On("Click", 300, 400).Return(nil)
	exec := NewExecutor(dualMonitorSource(), driver, LiveRun)

	// Screen 9 does not exist: coordinates are used as global pixels, the
	// action is never rejected for an unknown screen alone.
	err := exec.Execute(Action{Kind: KindClick, X: 300, Y: 400, Screen: 9, Relative: false})
	require.NoError(t, err)

	driver.AssertExpectations(t)
}

func TestExecutor_TypeClicksFirstForFocus(t *testing.T) {
	driver := new(MockDriver)
	driver.On("Click", 960, 540).Return(nil)
	driver.On("TypeText", "hello").Return(nil)
	exec := NewExecutor(dualMonitorSource(), driver, LiveRun)

	err := exec.Execute(Action{Kind: KindType, X: 0.5, Y: 0.5, Screen: 0, Relative: true, Text: "hello"})
	require.NoError(t, err)

	driver.AssertExpectations(t)
}

func TestExecutor_ScrollMovesThenScrolls(t *testing.T) {
	driver := new(MockDriver)
	driver.On("MoveMouse", 960, 540).Return(nil)
	driver.On("Scroll", -3).Return(nil)
	exec := NewExecutor(dualMonitorSource(), driver, LiveRun)

	err := exec.Execute(Action{Kind: KindScroll, X: 0.5, Y: 0.5, Screen: 0, Relative: true, Dy: -3})
	require.NoError(t, err)

	driver.AssertExpectations(t)
}

func TestExecutor_DriverFaultBecomesExecutionError(t *testing.T) {
	driver := new(MockDriver)
	driver.On("Click", mock.Anything, mock.Anything).Return(fmt.Errorf("input device busy"))
	exec := NewExecutor(dualMonitorSource(), driver, LiveRun)

	err := exec.Execute(Action{Kind: KindClick, X: 10, Y: 10, Relative: false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution failed")
}

func TestAction_Validate(t *testing.T) {
	assert.NoError(t, Action{Kind: KindClick, X: 0.5, Y: 0.5, Relative: true}.Validate())
	assert.ErrorIs(t, Action{Kind: "reboot"}.Validate(), ErrUnknownKind)
	assert.Error(t, Action{Kind: KindClick, X: 1.5, Y: 0.5, Relative: true}.Validate(),
		"relative coordinates outside [0,1] are rejected")
}
