// Package bridge wires a timer device to the state machine and the
// presenters, and runs the periodic health checks.
package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/present"
	"github.com/robotalks/shotbridge/pkg/system"
	"github.com/robotalks/shotbridge/pkg/timer"
)

// CommandTarget is the target of commands taken by the Bridge.
const CommandTarget = "bridge"

// Defaults.
const (
	DefaultHealthInterval  = 5 * time.Second
	DefaultWatchdogTimeout = 10 * time.Second
)

// EventSink receives the wire form of domain events.
type EventSink interface {
	PublishEvent(fx.Message)
}

// Bridge owns the device and the state machine. Device events are
// queued and fed to the machine one per loop iteration.
type Bridge struct {
	Device          *device.Device
	Machine         *system.Machine
	Events          EventSink
	Clock           fx.Clock
	HealthInterval  time.Duration
	WatchdogTimeout time.Duration

	initialized    bool
	queue          []timer.Event
	buttons        []*msgs.ButtonPress
	sessionActive  bool
	lastShot       timer.ShotEvent
	lastShotNumber uint16
	lastSessionID  uint32
	lastEventAt    time.Time
	lastHealthAt   time.Time
	watchdogFired  bool
}

// New creates a Bridge presenting through the presenter.
func New(dev *device.Device, presenter present.Presenter) *Bridge {
	b := &Bridge{
		Device:          dev,
		Clock:           fx.SystemClock,
		HealthInterval:  DefaultHealthInterval,
		WatchdogTimeout: DefaultWatchdogTimeout,
	}
	b.Machine = system.New(b, presenter, fx.ClockFunc(func() time.Time { return b.Clock.Now() }))
	b.Machine.OnTransition(b.onTransition)

	dev.OnShotDetected(func(s timer.ShotEvent) {
		b.enqueue(timer.Event{Kind: timer.ShotDetected, Shot: s})
	})
	sessionEvent := func(kind timer.EventKind) func(timer.Session) {
		return func(s timer.Session) { b.enqueue(timer.Event{Kind: kind, Session: s}) }
	}
	dev.OnSessionStarted(sessionEvent(timer.SessionStarted))
	dev.OnCountdownComplete(sessionEvent(timer.CountdownComplete))
	dev.OnSessionSuspended(sessionEvent(timer.SessionSuspended))
	dev.OnSessionResumed(sessionEvent(timer.SessionResumed))
	dev.OnSessionStopped(sessionEvent(timer.SessionStopped))
	dev.OnConnectionStateChanged(func(s timer.ConnectionState) {
		b.enqueue(timer.Event{Kind: timer.ConnectionStateChanged, State: s})
	})
	dev.OnShotList(b.onShotList)
	return b
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	if loop.Clock != nil {
		b.Clock = loop.Clock
	}
	loop.Add(b.Device)
	loop.AddController(fx.PrLvControl, b)
}

// Initialize initializes the device and enters Startup.
func (b *Bridge) Initialize() error {
	b.Machine.Initialize()
	if err := b.Device.Initialize(); err != nil {
		return fmt.Errorf("initialize device: %w", err)
	}
	b.initialized = true
	b.lastHealthAt = b.Clock.Now()
	return nil
}

// IsInitialized implements system.Owner.
func (b *Bridge) IsInitialized() bool {
	return b.initialized
}

// ResetToInitialState implements system.Owner.
func (b *Bridge) ResetToInitialState() {
	glog.Info("resetting to initial state")
	b.sessionActive = false
	b.lastShot = timer.ShotEvent{}
	b.lastShotNumber = 0
	b.watchdogFired = false
	if err := b.Device.Disconnect(); err != nil {
		glog.Warningf("disconnect: %v", err)
	}
	// Events raised by the disconnect itself are stale.
	b.queue = nil
}

// DisplayData implements system.Owner.
func (b *Bridge) DisplayData() system.DisplayData {
	return system.DisplayData{
		PeerName:       b.Device.Peer().DisplayName(),
		Session:        b.Device.Session(),
		LastShot:       b.lastShot,
		LastShotNumber: b.lastShotNumber,
	}
}

// SessionActive reports whether a session is running on the timer.
func (b *Bridge) SessionActive() bool { return b.sessionActive }

// LastShot returns the last shot and its number.
func (b *Bridge) LastShot() (timer.ShotEvent, uint16) {
	return b.lastShot, b.lastShotNumber
}

// PendingEvents returns the number of queued device events.
func (b *Bridge) PendingEvents() int { return len(b.queue) }

func (b *Bridge) enqueue(ev timer.Event) {
	b.queue = append(b.queue, ev)
	b.lastEventAt = b.Clock.Now()
	b.watchdogFired = false
}

// Control implements Controller.
func (b *Bridge) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch msg := mctx.CurrentMessage().(type) {
		case *msgs.ButtonPress:
			mctx.MessageTaken()
			b.buttons = append(b.buttons, msg)
		case *fx.Command:
			if msg.Target == CommandTarget {
				mctx.MessageTaken()
				out, err := b.Execute(msg.Name, msg.Args...)
				msg.Done(out, err)
			}
		}
	}))
	b.Step()
	if len(b.queue) > 0 || len(b.buttons) > 0 {
		cc.TriggerNext()
	}
	return nil
}

// Step consumes at most one button press and one device event, then
// updates the machine and runs the periodic checks.
func (b *Bridge) Step() {
	if len(b.buttons) > 0 {
		press := b.buttons[0]
		b.buttons = b.buttons[1:]
		glog.Infof("button pressed (%s)", press.Source)
		b.Machine.OnButtonPressed()
	}
	if len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		b.handleEvent(ev)
	}
	b.Machine.Update()
	b.reconcile()
	now := b.Clock.Now()
	b.watchdog(now)
	if b.HealthInterval > 0 && now.Sub(b.lastHealthAt) >= b.HealthInterval {
		b.lastHealthAt = now
		glog.Info(b.Health())
	}
}

// PressButton queues a button press, it must be called from the loop.
func (b *Bridge) PressButton(source string) {
	press := &msgs.ButtonPress{}
	press.Source = source
	b.buttons = append(b.buttons, press)
}

func (b *Bridge) handleEvent(ev timer.Event) {
	glog.V(1).Infof("handle %s in %s", ev, b.Machine.Current())
	switch ev.Kind {
	case timer.ConnectionStateChanged:
		b.publish(msgs.ConnectionFrom(ev.State, b.Device.Peer().Name, b.Device.Peer().Address))
		if ev.State == timer.Disconnected || ev.State == timer.Error {
			b.sessionActive = false
		}
		if !b.Machine.OnConnectionStateChanged(ev.State) {
			b.connectionLost(ev.State)
		}
	case timer.SessionStarted:
		b.publish(msgs.SessionFrom(ev.Kind, ev.Session))
		b.sessionActive = true
		b.lastShot = timer.ShotEvent{}
		b.lastShotNumber = 0
		b.lastSessionID = ev.Session.SessionID
		if !b.Machine.OnSessionEvent(system.SessionEventStarted) {
			glog.Warningf("session %d started in %s", ev.Session.SessionID, b.Machine.Current())
		}
	case timer.CountdownComplete:
		b.publish(msgs.SessionFrom(ev.Kind, ev.Session))
		b.Machine.OnSessionEvent(system.SessionEventActive)
	case timer.ShotDetected:
		b.publish(msgs.ShotFrom(ev.Shot))
		b.lastShot = ev.Shot
		b.lastShotNumber = ev.Shot.ShotNumber
		switch b.Machine.Current() {
		case system.ShotDetected, system.SessionStarting:
			b.Machine.OnSessionEvent(system.SessionEventActive)
		}
		b.Machine.OnSessionEvent(system.SessionEventShot)
	case timer.SessionSuspended:
		b.publish(msgs.SessionFrom(ev.Kind, ev.Session))
		if b.Machine.Current() == system.ShotDetected {
			b.Machine.OnSessionEvent(system.SessionEventActive)
		}
		b.Machine.OnSessionEvent(system.SessionEventSuspended)
	case timer.SessionResumed:
		b.publish(msgs.SessionFrom(ev.Kind, ev.Session))
		b.Machine.OnSessionEvent(system.SessionEventResumed)
	case timer.SessionStopped:
		b.publish(msgs.SessionFrom(ev.Kind, ev.Session))
		b.sessionActive = false
		if b.Machine.Current() == system.SessionStarting {
			b.Machine.RequestTransition(system.Idle, "Session cancelled")
		} else {
			b.Machine.OnSessionEvent(system.SessionEventEnding)
		}
		if ev.Session.TotalShots > 0 && b.Device.SupportsShotList() {
			if err := b.Device.RequestShotList(ev.Session.SessionID); err != nil {
				glog.Warningf("request shot list: %v", err)
			}
		}
	}
}

// connectionLost routes a link loss the table rejects from the current
// state into the communication error recovery.
func (b *Bridge) connectionLost(state timer.ConnectionState) {
	if state != timer.Disconnected && state != timer.Error {
		return
	}
	switch current := b.Machine.Current(); {
	case current == system.Idle:
		b.Machine.OnError(system.ErrorCommunication)
	case b.Machine.IsInSessionState() || current == system.SessionEnded:
		b.Machine.ForceTransition(system.CommunicationError, "Connection lost during session")
	}
}

// reconcile catches up with a connection which completed while the
// machine could not accept the Connected event.
func (b *Bridge) reconcile() {
	if !b.Device.IsConnected() {
		return
	}
	switch b.Machine.Current() {
	case system.Reconnecting:
		b.Machine.OnConnectionStateChanged(timer.Connected)
	case system.SearchingForDevices:
		if b.Machine.OnConnectionStateChanged(timer.Connecting) {
			b.Machine.OnConnectionStateChanged(timer.Connected)
		}
	}
}

func (b *Bridge) watchdog(now time.Time) {
	if !b.sessionActive || b.watchdogFired || b.WatchdogTimeout <= 0 {
		return
	}
	if now.Sub(b.lastEventAt) >= b.WatchdogTimeout {
		b.watchdogFired = true
		glog.Warningf("no timer activity for %s during session %d", now.Sub(b.lastEventAt), b.lastSessionID)
	}
}

func (b *Bridge) onTransition(tr system.Transition) {
	b.publish(msgs.StateChangeFrom(tr.From.String(), tr.To.String(), tr.Reason, tr.At))
	if tr.To == system.SearchingForDevices {
		if err := b.Device.StartScanning(); err != nil {
			glog.Warningf("start scanning: %v", err)
		}
	}
}

func (b *Bridge) onShotList(list device.ShotList) {
	b.publish(msgs.ShotListFrom(list.SessionID, list.Records, list.Err))
	if list.Err != nil {
		glog.Warningf("shot list of session %d: %v", list.SessionID, list.Err)
		return
	}
	glog.Info(FormatShotList(list))
}

func (b *Bridge) publish(msg fx.Message) {
	if b.Events != nil {
		b.Events.PublishEvent(msg)
	}
}

// Health summarizes the bridge for the periodic health log.
func (b *Bridge) Health() string {
	session := "none"
	if b.sessionActive {
		s := b.Device.Session()
		session = fmt.Sprintf("%d (%d shots)", s.SessionID, s.TotalShots)
	}
	return fmt.Sprintf("health: state=%s connection=%s peer=%s session=%s retries=%d",
		b.Machine.StateInfo(), b.Device.State(), b.Device.Peer(), session, b.Machine.RetryCount())
}

// FormatShotList renders a shot list as a table.
func FormatShotList(list device.ShotList) string {
	lines := []string{fmt.Sprintf("session %d: %d shots", list.SessionID, len(list.Records))}
	var prev uint32
	for n, rec := range list.Records {
		var split uint32
		if n > 0 && rec.TimeMs >= prev {
			split = rec.TimeMs - prev
		}
		prev = rec.TimeMs
		lines = append(lines, fmt.Sprintf("  #%-3d %9s  %9s", rec.ShotNumber,
			timer.FormatMillis(rec.TimeMs), timer.FormatMillis(split)))
	}
	return strings.Join(lines, "\n")
}

// Execute runs a console command.
func (b *Bridge) Execute(name string, args ...string) (string, error) {
	switch name {
	case "status":
		return b.Health(), nil
	case "reset":
		b.PressButton("console")
		return "reset requested", nil
	case "shots":
		id := b.lastSessionID
		if len(args) > 0 {
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return "", fmt.Errorf("bad session id %q", args[0])
			}
		}
		if err := b.Device.RequestShotList(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("reading shot list of session %d", id), nil
	}
	return "", fmt.Errorf("unknown command %q", name)
}
