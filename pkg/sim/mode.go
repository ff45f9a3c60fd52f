package sim

import (
	"fmt"
	"strings"
	"time"
)

// Mode is how much of the timer is driven automatically.
type Mode int

// Modes.
const (
	// Manual only advertises on a connect command and is driven by
	// console commands.
	Manual Mode = iota
	// AutoConnect advertises while scanned.
	AutoConnect
	// AutoShots also starts a session and fires shots at random.
	AutoShots
	// Realistic paces shots like a shooter and stops on its own.
	Realistic
)

var modeNames = []string{"manual", "auto-connect", "auto-shots", "realistic"}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name, "auto" stands for auto-shots.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "auto", "shots":
		return AutoShots, nil
	case "connect":
		return AutoConnect, nil
	}
	for n, s := range modeNames {
		if s == name {
			return Mode(n), nil
		}
	}
	return Manual, fmt.Errorf("unknown mode %q", name)
}

func (m Mode) advertises() bool { return m != Manual }
func (m Mode) autoShots() bool  { return m == AutoShots || m == Realistic }

// Timing of the simulation.
const (
	StepInterval      = 100 * time.Millisecond
	ConnectDelay      = 2000 * time.Millisecond
	SessionStartDelay = 3000 * time.Millisecond
	MinShotInterval   = 800 * time.Millisecond
	MaxShotInterval   = 3000 * time.Millisecond
	MaxShots          = 20
	// AutoStopChance is the chance per second to stop a realistic
	// session once it ran AutoStopAfter.
	AutoStopChance = 0.1
	AutoStopAfter  = 10 * time.Second
	// AdvertiseInterval paces advertisements while scanned.
	AdvertiseInterval = time.Second
)
