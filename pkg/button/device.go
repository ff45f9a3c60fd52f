package button

import (
	"errors"
	"io"
)

// ErrUnsupported is returned by Open on systems without joystick input.
var ErrUnsupported = errors.New("button input not supported")

// Event is a button change on an input device.
type Event struct {
	// Init is set for the synthetic events reporting the initial state.
	Init    bool
	Index   int
	Pressed bool
}

// Device is an opened input device with buttons.
type Device interface {
	io.Closer
	// Index returns the index of the device on the system.
	Index() int
	// Name returns the name of the device.
	Name() string
	// ReadEvent blocks for the next button event. Events of other
	// controls are skipped.
	ReadEvent() (Event, error)
}
