package system

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/present"
	"github.com/robotalks/shotbridge/pkg/timer"
)

// Owner is the application collaborator of the machine.
type Owner interface {
	// IsInitialized reports the application finished startup.
	IsInitialized() bool
	// ResetToInitialState drops transient counters and disconnects
	// the device.
	ResetToInitialState()
	// DisplayData provides what presentation calls show.
	DisplayData() DisplayData
}

// DisplayData is the snapshot handed to the presenter.
type DisplayData struct {
	PeerName       string
	Session        timer.Session
	LastShot       timer.ShotEvent
	LastShotNumber uint16
}

// SystemErrorLogInterval limits the reminders logged in SystemError.
const SystemErrorLogInterval = 10 * time.Second

// Machine is the lifecycle authority of the bridge. It's not safe for
// concurrent use, all calls are expected from the loop.
type Machine struct {
	Owner     Owner
	Presenter present.Presenter
	Clock     fx.Clock

	ctx       Context
	listeners []func(Transition)

	lastErrorLog time.Time
}

// New creates a Machine in Startup.
func New(owner Owner, presenter present.Presenter, clock fx.Clock) *Machine {
	if clock == nil {
		clock = fx.SystemClock
	}
	m := &Machine{Owner: owner, Presenter: presenter, Clock: clock}
	m.ctx = Context{
		Current:       Startup,
		Previous:      Startup,
		EnteredAt:     clock.Now(),
		CanTransition: true,
	}
	return m
}

// Initialize enters Startup with its entry actions.
func (m *Machine) Initialize() {
	m.ForceTransition(Startup, "Initialization")
}

// OnTransition registers a callback for completed transitions.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.listeners = append(m.listeners, fn)
}

// Context returns a copy of the machine context.
func (m *Machine) Context() Context {
	return m.ctx
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.ctx.Current
}

// Previous returns the previous state.
func (m *Machine) Previous() State {
	return m.ctx.Previous
}

// RetryCount returns the retry counter.
func (m *Machine) RetryCount() uint8 {
	return m.ctx.RetryCount
}

// EnableTransitions sets the global transition gate.
func (m *Machine) EnableTransitions(enable bool) {
	m.ctx.CanTransition = enable
}

// CanTransition reports the transition gate.
func (m *Machine) CanTransition() bool {
	return m.ctx.CanTransition
}

// RequestTransition moves to the state if the transition is valid.
// It changes nothing when returning false.
func (m *Machine) RequestTransition(to State, reason string) bool {
	if !m.ctx.CanTransition {
		glog.Warningf("transition %s -> %s rejected, transitions disabled (%s)", m.ctx.Current, to, reason)
		return false
	}
	if !IsValidTransition(m.ctx.Current, to) {
		glog.Warningf("invalid transition %s -> %s (%s)", m.ctx.Current, to, reason)
		return false
	}
	m.transition(to, reason)
	return true
}

// ForceTransition moves to the state unconditionally.
func (m *Machine) ForceTransition(to State, reason string) {
	m.transition(to, reason)
}

func (m *Machine) transition(to State, reason string) {
	from := m.ctx.Current
	now := m.Clock.Now()
	glog.Infof("state %s -> %s (%s)", from, to, reason)

	m.exit(from)
	m.ctx.Previous = from
	m.ctx.Current = to
	m.ctx.EnteredAt = now
	m.ctx.Timeout = 0
	m.enter(to)
	m.present(from, to)

	tr := Transition{From: from, To: to, Reason: reason, At: now}
	for _, fn := range m.listeners {
		fn(tr)
	}
}

func (m *Machine) exit(s State) {
	if s == ManualReset && m.Owner != nil {
		m.Owner.ResetToInitialState()
	}
}

func (m *Machine) enter(s State) {
	if s == ManualReset {
		m.ctx.RetryCount = 0
	}
	m.ctx.Timeout = stateTimeouts[s]
}

func (m *Machine) present(from, to State) {
	if m.Presenter == nil {
		return
	}
	var data DisplayData
	if m.Owner != nil {
		data = m.Owner.DisplayData()
	}
	switch to {
	case Startup:
		m.Presenter.ShowStartup()
	case SearchingForDevices:
		m.Presenter.ShowConnectionState(timer.Scanning, "")
	case Connecting:
		m.Presenter.ShowConnectionState(timer.Connecting, data.PeerName)
	case Connected, Idle:
		m.Presenter.ShowConnectionState(timer.Connected, data.PeerName)
	case ConnectionError, CommunicationError:
		m.Presenter.ShowConnectionState(timer.Error, data.PeerName)
	case SessionStarting:
		m.Presenter.ShowCountdown(data.Session)
	case SessionActive:
		if from == SessionStarting || from == SessionSuspended {
			m.Presenter.ShowWaitingForShots(data.Session)
		}
	case ShotDetected:
		m.Presenter.ShowShotData(data.LastShot)
	case SessionEnded:
		m.Presenter.ShowSessionEnd(data.Session, data.LastShotNumber)
	}
}

// TimeInCurrentState returns the time spent in the current state.
func (m *Machine) TimeInCurrentState() time.Duration {
	return m.Clock.Now().Sub(m.ctx.EnteredAt)
}

// StateInfo describes the current state for logs.
func (m *Machine) StateInfo() string {
	return fmt.Sprintf("%s (%dms)", m.ctx.Current, m.TimeInCurrentState()/time.Millisecond)
}

// IsInErrorState tells whether the machine is handling an error.
func (m *Machine) IsInErrorState() bool {
	switch m.ctx.Current {
	case ConnectionError, CommunicationError, DeviceError, SystemError:
		return true
	}
	return false
}

// IsInConnectionState tells whether a connection is being established.
func (m *Machine) IsInConnectionState() bool {
	switch m.ctx.Current {
	case SearchingForDevices, Connecting, Connected, Reconnecting:
		return true
	}
	return false
}

// IsInSessionState tells whether a session is in progress.
func (m *Machine) IsInSessionState() bool {
	switch m.ctx.Current {
	case SessionStarting, SessionActive, ShotDetected, SessionSuspended, SessionEnding:
		return true
	}
	return false
}

// CanAcceptEvents tells whether device events are meaningful now.
func (m *Machine) CanAcceptEvents() bool {
	switch m.ctx.Current {
	case Idle, SessionStarting, SessionActive, ShotDetected, SessionSuspended:
		return true
	}
	return false
}

// Update runs the timeout handler if the timeout elapsed, then the
// steady-state handler of the current state.
func (m *Machine) Update() {
	if m.ctx.Timeout > 0 && m.TimeInCurrentState() >= m.ctx.Timeout {
		m.handleTimeout()
	}
	m.handleState()
}

func (m *Machine) handleTimeout() {
	switch m.ctx.Current {
	case Startup:
		m.ForceTransition(SystemError, "Startup timeout")
	case Connecting:
		m.RequestTransition(ConnectionError, "Connection timeout")
	case ConnectionError:
		if m.ctx.RetryCount >= MaxRetries {
			if m.RequestTransition(SearchingForDevices, "Max retries exceeded") {
				m.ctx.RetryCount = 0
			}
		} else if m.RequestTransition(Reconnecting, "Retry connection") {
			m.ctx.RetryCount++
		}
	case Reconnecting:
		m.RequestTransition(ConnectionError, "Reconnection timeout")
	case CommunicationError:
		m.RequestTransition(Reconnecting, "Communication error recovery")
	case SessionEnded:
		m.RequestTransition(Idle, "Session summary complete")
	case ShotDetected:
		m.RequestTransition(SessionActive, "Shot display complete")
	case Recovery:
		if m.ctx.RetryCount >= MaxRetries {
			m.ForceTransition(SystemError, "Recovery failed")
		} else if m.RequestTransition(SearchingForDevices, "Recovery attempt") {
			m.ctx.RetryCount++
		}
	case ManualReset:
		m.RequestTransition(SearchingForDevices, "Manual reset complete")
	case DeviceError:
		m.RequestTransition(Recovery, "Device error recovery")
	default:
		m.ctx.Timeout = 0
	}
}

func (m *Machine) handleState() {
	switch m.ctx.Current {
	case Startup:
		if m.Owner != nil && m.Owner.IsInitialized() {
			m.RequestTransition(SearchingForDevices, "Startup complete")
		}
	case ManualReset:
		m.RequestTransition(SearchingForDevices, "Manual reset complete")
	case Connected:
		m.RequestTransition(Idle, "Connection established")
	case SessionEnding:
		m.RequestTransition(SessionEnded, "Session end processing")
	case SystemError:
		now := m.Clock.Now()
		if m.lastErrorLog.IsZero() || now.Sub(m.lastErrorLog) >= SystemErrorLogInterval {
			m.lastErrorLog = now
			glog.Errorf("system error, manual reset required")
		}
	}
}

// OnButtonPressed forces ManualReset.
func (m *Machine) OnButtonPressed() {
	m.ForceTransition(ManualReset, "Button pressed")
}

// OnConnectionStateChanged maps a device connection state to a
// transition. It returns whether a transition happened.
func (m *Machine) OnConnectionStateChanged(state timer.ConnectionState) bool {
	switch state {
	case timer.Scanning:
		if m.ctx.Current == SearchingForDevices {
			return false
		}
		return m.RequestTransition(SearchingForDevices, "Device scanning")
	case timer.Connecting:
		return m.RequestTransition(Connecting, "Device connecting")
	case timer.Connected:
		return m.RequestTransition(Connected, "Device connected")
	case timer.Disconnected:
		if m.IsInSessionState() {
			return m.RequestTransition(CommunicationError, "Device disconnected during session")
		}
		return m.RequestTransition(ConnectionError, "Device disconnected")
	case timer.Error:
		return m.RequestTransition(ConnectionError, "Device connection error")
	}
	return false
}

// OnSessionEvent maps a session event to a transition. It returns
// whether a transition happened.
func (m *Machine) OnSessionEvent(event SessionEvent) bool {
	switch event {
	case SessionEventStarted:
		return m.RequestTransition(SessionStarting, "Session started")
	case SessionEventActive:
		return m.RequestTransition(SessionActive, "Session active")
	case SessionEventShot:
		return m.RequestTransition(ShotDetected, "Shot detected")
	case SessionEventSuspended:
		return m.RequestTransition(SessionSuspended, "Session suspended")
	case SessionEventResumed:
		return m.RequestTransition(SessionActive, "Session resumed")
	case SessionEventEnding:
		return m.RequestTransition(SessionEnding, "Session ending")
	case SessionEventEnded:
		return m.RequestTransition(SessionEnded, "Session ended")
	}
	glog.Warningf("unknown session event %v", event)
	return false
}

// OnError maps an error kind to a transition. It returns whether a
// transition happened.
func (m *Machine) OnError(kind ErrorKind) bool {
	switch kind {
	case ErrorDevice:
		return m.RequestTransition(DeviceError, "Device error")
	case ErrorCommunication:
		return m.RequestTransition(CommunicationError, "Communication error")
	case ErrorSystem:
		m.ForceTransition(SystemError, "System error")
		return true
	}
	glog.Warningf("unknown error kind %v", kind)
	return false
}
