package tui

import (
	"github.com/go-go-golems/bigredbutton/pkg/state"
)

// DeviceView is what the simulator draws each refresh.
type DeviceView struct {
	Snapshot      state.Snapshot
	Mode          string
	LEDOn         bool
	ButtonPressed bool
	LinkUp        bool
}

// Device is the simulated hardware the UI drives.
type Device interface {
	View() DeviceView
	// ToggleButton flips the button and returns whether it is now pressed.
	ToggleButton() bool
	// ToggleLink flips the network link and returns whether it is now up.
	ToggleLink() bool
}
