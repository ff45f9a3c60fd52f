package timer

import (
	"fmt"
	"time"
)

// ShotEvent is produced once per detected shot.
type ShotEvent struct {
	SessionID uint32
	// ShotNumber is 1-based and equals the session's shot count
	// after this shot.
	ShotNumber uint16
	// AbsoluteTimeMs is the time since session start on the device clock.
	AbsoluteTimeMs uint32
	// SplitTimeMs is 0 for the first shot of a session.
	SplitTimeMs uint32
	// DetectedAt is the local receipt time of the notification.
	DetectedAt  time.Time
	DeviceModel string
	IsFirstShot bool
}

// DetectedAtMs returns DetectedAt in milliseconds since the Unix epoch.
func (e ShotEvent) DetectedAtMs() uint64 {
	return uint64(e.DetectedAt.UnixNano() / int64(time.Millisecond))
}

// String formats the shot for logs.
func (e ShotEvent) String() string {
	return fmt.Sprintf("shot #%d session=%d time=%s split=%s",
		e.ShotNumber, e.SessionID, FormatMillis(e.AbsoluteTimeMs), FormatMillis(e.SplitTimeMs))
}

// Session is the live session on a device.
type Session struct {
	SessionID  uint32
	IsActive   bool
	TotalShots uint16
	// StartedAt is the local time the session started.
	StartedAt         time.Time
	StartDelaySeconds float32
}

// StartTimestampMs returns the low 32 bits of StartedAt in milliseconds.
func (s Session) StartTimestampMs() uint32 {
	return uint32(s.StartedAt.UnixNano() / int64(time.Millisecond))
}

// Reset starts a new session.
func (s *Session) Reset(id uint32, at time.Time, delaySeconds float32) {
	*s = Session{
		SessionID:         id,
		IsActive:          true,
		StartedAt:         at,
		StartDelaySeconds: delaySeconds,
	}
}

// Clear discards the session.
func (s *Session) Clear() {
	*s = Session{}
}

// FormatMillis renders milliseconds as seconds with two decimals.
func FormatMillis(ms uint32) string {
	return fmt.Sprintf("%d.%02ds", ms/1000, (ms%1000)/10)
}

// ConnectionState is the link state of a device.
type ConnectionState int

// Connection states.
const (
	Disconnected ConnectionState = iota
	Scanning
	Connecting
	Connected
	Error
)

var connectionStateNames = map[ConnectionState]string{
	Disconnected: "DISCONNECTED",
	Scanning:     "SCANNING",
	Connecting:   "CONNECTING",
	Connected:    "CONNECTED",
	Error:        "ERROR",
}

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	if name, ok := connectionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// EventKind identifies a domain event.
type EventKind int

// Domain events.
const (
	ShotDetected EventKind = iota
	SessionStarted
	SessionSuspended
	SessionResumed
	SessionStopped
	CountdownComplete
	ConnectionStateChanged
)

var eventKindNames = map[EventKind]string{
	ShotDetected:           "ShotDetected",
	SessionStarted:         "SessionStarted",
	SessionSuspended:       "SessionSuspended",
	SessionResumed:         "SessionResumed",
	SessionStopped:         "SessionStopped",
	CountdownComplete:      "CountdownComplete",
	ConnectionStateChanged: "ConnectionStateChanged",
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a domain event. Shot is set for ShotDetected, State for
// ConnectionStateChanged, and Session holds a snapshot for the others.
type Event struct {
	Kind    EventKind
	Shot    ShotEvent
	Session Session
	State   ConnectionState
}

// String formats the event for logs.
func (e Event) String() string {
	switch e.Kind {
	case ShotDetected:
		return e.Shot.String()
	case ConnectionStateChanged:
		return fmt.Sprintf("%s %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s session=%d shots=%d", e.Kind, e.Session.SessionID, e.Session.TotalShots)
}
