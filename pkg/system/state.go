// Package system implements the lifecycle state machine of the bridge.
package system

import (
	"fmt"
	"time"
)

// State is the lifecycle state of the bridge.
type State int

// States.
const (
	Startup State = iota
	ManualReset
	SearchingForDevices
	Connecting
	Connected
	ConnectionError
	Reconnecting
	CommunicationError
	Idle
	SessionStarting
	SessionActive
	ShotDetected
	SessionSuspended
	SessionEnding
	SessionEnded
	DeviceError
	SystemError
	Recovery
	// Reserved states have no handlers.
	Configuration
	FirmwareUpdate
	Sleep

	numStates
)

var stateNames = [numStates]string{
	"STARTUP",
	"MANUAL_RESET",
	"SEARCHING_FOR_DEVICES",
	"CONNECTING",
	"CONNECTED",
	"CONNECTION_ERROR",
	"RECONNECTING",
	"COMMUNICATION_ERROR",
	"IDLE",
	"SESSION_STARTING",
	"SESSION_ACTIVE",
	"SHOT_DETECTED",
	"SESSION_SUSPENDED",
	"SESSION_ENDING",
	"SESSION_ENDED",
	"DEVICE_ERROR",
	"SYSTEM_ERROR",
	"RECOVERY",
	"CONFIGURATION",
	"FIRMWARE_UPDATE",
	"SLEEP",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState looks up a State by its name.
func ParseState(name string) (State, bool) {
	for n, s := range stateNames {
		if s == name {
			return State(n), true
		}
	}
	return Startup, false
}

// States lists all states.
func States() []State {
	states := make([]State, numStates)
	for n := range states {
		states[n] = State(n)
	}
	return states
}

// SessionEvent is a session signal fed into the machine.
type SessionEvent int

// Session events.
const (
	SessionEventStarted SessionEvent = iota
	SessionEventActive
	SessionEventShot
	SessionEventSuspended
	SessionEventResumed
	SessionEventEnding
	SessionEventEnded
)

var sessionEventNames = map[SessionEvent]string{
	SessionEventStarted:   "started",
	SessionEventActive:    "active",
	SessionEventShot:      "shot",
	SessionEventSuspended: "suspended",
	SessionEventResumed:   "resumed",
	SessionEventEnding:    "ending",
	SessionEventEnded:     "ended",
}

// String implements fmt.Stringer.
func (e SessionEvent) String() string {
	if name, ok := sessionEventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("SessionEvent(%d)", int(e))
}

// ErrorKind classifies errors reported to the machine.
type ErrorKind int

// Error kinds.
const (
	ErrorDevice ErrorKind = iota
	ErrorCommunication
	ErrorSystem
)

var errorKindNames = map[ErrorKind]string{
	ErrorDevice:        "device",
	ErrorCommunication: "communication",
	ErrorSystem:        "system",
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MaxRetries bounds the retry counter before a wider recovery.
const MaxRetries = 15

var validTransitions = map[State][]State{
	Startup:             {SearchingForDevices},
	ManualReset:         {SearchingForDevices},
	SearchingForDevices: {Connecting, ConnectionError},
	Connecting:          {Connected, ConnectionError},
	Connected:           {Idle, CommunicationError},
	ConnectionError:     {Reconnecting, SearchingForDevices},
	Reconnecting:        {Connected, ConnectionError},
	CommunicationError:  {Reconnecting, SearchingForDevices},
	Idle:                {SessionStarting, CommunicationError},
	SessionStarting:     {SessionActive, Idle},
	SessionActive:       {ShotDetected, SessionSuspended, SessionEnding, CommunicationError},
	ShotDetected:        {SessionActive, SessionEnding},
	SessionSuspended:    {SessionActive, SessionEnding},
	SessionEnding:       {SessionEnded},
	SessionEnded:        {Idle, SessionStarting},
	DeviceError:         {Recovery, SystemError},
	Recovery:            {SearchingForDevices, SystemError},
}

// IsValidTransition tells whether from can move to to.
func IsValidTransition(from, to State) bool {
	if from == SystemError {
		return to == ManualReset
	}
	if to == ManualReset || to == SystemError {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var stateTimeouts = map[State]time.Duration{
	Startup:            5000 * time.Millisecond,
	ManualReset:        100 * time.Millisecond,
	Connecting:         35000 * time.Millisecond,
	ConnectionError:    3000 * time.Millisecond,
	Reconnecting:       5000 * time.Millisecond,
	CommunicationError: 2000 * time.Millisecond,
	SessionEnded:       10000 * time.Millisecond,
	ShotDetected:       3000 * time.Millisecond,
	Recovery:           5000 * time.Millisecond,
	DeviceError:        3000 * time.Millisecond,
}

// TimeoutOf returns the timeout set when entering s, 0 for none.
func TimeoutOf(s State) time.Duration {
	return stateTimeouts[s]
}

// Context is the bookkeeping of the machine.
type Context struct {
	Current   State
	Previous  State
	EnteredAt time.Time
	// Timeout is 0 when the current state has none.
	Timeout       time.Duration
	RetryCount    uint8
	CanTransition bool
}

// Transition describes a completed state change.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// String formats the transition for logs.
func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Reason)
}
