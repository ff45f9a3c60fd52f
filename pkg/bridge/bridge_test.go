package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/present"
	"github.com/robotalks/shotbridge/pkg/sim"
	"github.com/robotalks/shotbridge/pkg/system"
	"github.com/robotalks/shotbridge/pkg/timer"
	"github.com/robotalks/shotbridge/pkg/timer/protocol"
)

type eventSink struct {
	events []fx.Message
}

func (s *eventSink) PublishEvent(msg fx.Message) {
	s.events = append(s.events, msg)
}

func (s *eventSink) shotLists() (lists []*msgs.ShotList) {
	for _, ev := range s.events {
		if l, ok := ev.(*msgs.ShotList); ok {
			lists = append(lists, l)
		}
	}
	return
}

type harness struct {
	ctx    context.Context
	clock  *fx.ManualClock
	loop   *fx.Loop
	radio  *sim.Radio
	bridge *Bridge
	rec    *present.Recorder
	sink   *eventSink
}

func newHarness(t *testing.T, vendor protocol.Vendor, mode sim.Mode) *harness {
	h := &harness{
		ctx:   context.Background(),
		clock: fx.NewManualClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		rec:   &present.Recorder{},
		sink:  &eventSink{},
	}
	tm, err := sim.NewTimer(vendor, "aa:bb:cc:dd:ee:ff", "", mode, 3)
	require.NoError(t, err)
	h.radio = sim.NewRadio(tm)
	h.radio.ConnectDelay = 0

	dev := device.New(h.radio)
	dev.Sleep = func(time.Duration) {}
	h.bridge = New(dev, h.rec)
	h.bridge.Events = h.sink

	h.loop = fx.NewLoop()
	h.loop.Clock = h.clock
	h.loop.Add(h.radio, h.bridge)
	require.NoError(t, h.bridge.Initialize())
	return h
}

func (h *harness) tick(d time.Duration) {
	h.clock.Advance(d)
	h.loop.Step(h.ctx)
}

func (h *harness) runFor(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += sim.StepInterval {
		h.tick(sim.StepInterval)
	}
}

func (h *harness) exec(t *testing.T, name string, args ...string) {
	_, err := h.radio.Execute(h.clock.Now(), name, args...)
	require.NoError(t, err)
	h.tick(sim.StepInterval)
}

func (h *harness) state() system.State {
	return h.bridge.Machine.Current()
}

// connect brings the bridge to Idle with the simulated timer.
func (h *harness) connect(t *testing.T) {
	h.tick(sim.StepInterval)
	require.Equal(t, system.SearchingForDevices, h.state())
	h.exec(t, "connect")
	h.runFor(3 * sim.StepInterval)
	require.Equal(t, system.Idle, h.state())
	require.True(t, h.bridge.Device.IsConnected())
}

func TestBridgeSGSession(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)
	name := h.bridge.Device.Peer().DisplayName()

	h.exec(t, "start")
	require.Equal(t, system.SessionStarting, h.state())
	require.True(t, h.bridge.SessionActive())
	id := h.bridge.Device.Session().SessionID
	h.runFor(sim.SessionStartDelay)
	require.Equal(t, system.SessionActive, h.state())

	h.clock.Advance(900 * time.Millisecond)
	h.exec(t, "shot")
	require.Equal(t, system.ShotDetected, h.state())
	h.clock.Advance(1400 * time.Millisecond)
	h.exec(t, "shot")
	require.Equal(t, system.ShotDetected, h.state())
	shot, number := h.bridge.LastShot()
	require.EqualValues(t, 2, number)
	require.EqualValues(t, 1500, shot.SplitTimeMs)

	h.exec(t, "stop")
	require.Equal(t, system.SessionEnded, h.state())
	require.False(t, h.bridge.SessionActive())

	deadline := time.Now().Add(2 * time.Second)
	for len(h.sink.shotLists()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		h.tick(0)
	}
	lists := h.sink.shotLists()
	require.Len(t, lists, 1)
	require.Equal(t, id, lists[0].SessionId)
	require.Len(t, lists[0].Records, 2)
	require.EqualValues(t, 5500, lists[0].Records[1].TimeMs)

	h.runFor(system.TimeoutOf(system.SessionEnded) + sim.StepInterval)
	require.Equal(t, system.Idle, h.state())

	require.Equal(t, []string{
		"startup",
		"connection SCANNING ",
		"connection CONNECTING " + name,
		"connection CONNECTED " + name,
		"connection CONNECTED " + name,
		"countdown " + itoa(id) + " 3.0",
		"waiting " + itoa(id),
		"shot 1 4000 0",
		"shot 2 5500 1500",
		"end " + itoa(id) + " 2 2",
		"connection CONNECTED " + name,
	}, h.rec.Signals())
}

func TestBridgeOneEventPerTick(t *testing.T) {
	h := newHarness(t, protocol.SpecialPie, sim.Manual)
	h.connect(t)

	h.exec(t, "start")
	require.Equal(t, system.SessionStarting, h.state())
	require.Equal(t, 1, h.bridge.PendingEvents())
	h.tick(0)
	require.Equal(t, system.SessionActive, h.state())
	require.Equal(t, 0, h.bridge.PendingEvents())
	id := h.bridge.Device.Session().SessionID
	require.Equal(t, []string{"countdown " + itoa(id) + " 0.0", "waiting " + itoa(id)}, h.rec.Signals()[5:])

	h.clock.Advance(2240 * time.Millisecond)
	h.exec(t, "shot")
	require.Equal(t, "shot 1 2340 0", h.rec.Last())
	h.exec(t, "stop")
	require.Equal(t, system.SessionEnded, h.state())
	require.Equal(t, "end "+itoa(id)+" 1 1", h.rec.Last())
	require.Empty(t, h.sink.shotLists())
}

func TestBridgeShotStartsSession(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)
	h.exec(t, "start")
	require.Equal(t, system.SessionStarting, h.state())
	h.exec(t, "shot")
	require.Equal(t, system.ShotDetected, h.state())
	require.Equal(t, system.SessionActive, h.bridge.Machine.Previous())
}

func TestBridgeDisconnectInIdle(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)
	name := h.bridge.Device.Peer().DisplayName()

	h.exec(t, "disconnect")
	require.Equal(t, system.CommunicationError, h.state())
	require.Equal(t, "connection ERROR "+name, h.rec.Last())

	h.runFor(system.TimeoutOf(system.CommunicationError))
	require.Equal(t, system.Reconnecting, h.state())
	h.runFor(3 * time.Second)
	require.Equal(t, timer.Scanning, h.bridge.Device.State())
	require.Equal(t, system.Reconnecting, h.state())

	h.exec(t, "connect")
	h.runFor(3 * sim.StepInterval)
	require.Equal(t, system.Idle, h.state())
}

func TestBridgeDisconnectInSession(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)
	h.exec(t, "start")
	h.runFor(sim.SessionStartDelay)
	require.Equal(t, system.SessionActive, h.state())

	h.exec(t, "disconnect")
	require.Equal(t, system.CommunicationError, h.state())
	require.False(t, h.bridge.SessionActive())
}

func TestBridgeDisconnectRecoversFromSessionStates(t *testing.T) {
	testCases := []struct {
		name  string
		state system.State
		setup func(t *testing.T, h *harness)
	}{
		{
			name:  "starting",
			state: system.SessionStarting,
			setup: func(t *testing.T, h *harness) {
				h.exec(t, "start")
			},
		},
		{
			name:  "suspended",
			state: system.SessionSuspended,
			setup: func(t *testing.T, h *harness) {
				h.exec(t, "start")
				h.runFor(sim.SessionStartDelay)
				h.exec(t, "suspend")
			},
		},
		{
			name:  "shot detected",
			state: system.ShotDetected,
			setup: func(t *testing.T, h *harness) {
				h.exec(t, "start")
				h.runFor(sim.SessionStartDelay)
				h.exec(t, "shot")
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, protocol.SGTimer, sim.Manual)
			h.connect(t)
			tc.setup(t, h)
			require.Equal(t, tc.state, h.state())

			h.exec(t, "disconnect")
			require.Equal(t, system.CommunicationError, h.state())
			require.False(t, h.bridge.SessionActive())

			h.runFor(system.TimeoutOf(system.CommunicationError))
			require.Equal(t, system.Reconnecting, h.state())
			h.runFor(3 * time.Second)
			require.Equal(t, timer.Scanning, h.bridge.Device.State())

			h.exec(t, "connect")
			h.runFor(3 * sim.StepInterval)
			require.Equal(t, system.Idle, h.state())
			require.True(t, h.bridge.Device.IsConnected())
		})
	}
}

func TestBridgeButton(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)

	press := &msgs.ButtonPress{}
	press.Source = "test"
	h.loop.PostMessage(press)
	h.loop.PostMessage(press)
	h.tick(0)
	require.Equal(t, system.SearchingForDevices, h.state())
	require.Equal(t, system.ManualReset, h.bridge.Machine.Previous())
	require.Equal(t, timer.Scanning, h.bridge.Device.State())
	require.False(t, h.bridge.Device.IsConnected())
	require.Equal(t, "connection SCANNING ", h.rec.Last())

	// The second press is handled on the next iteration.
	h.tick(0)
	require.Equal(t, system.SearchingForDevices, h.state())
	require.Equal(t, system.ManualReset, h.bridge.Machine.Previous())
	require.EqualValues(t, 0, h.bridge.Machine.RetryCount())
	require.Equal(t, 0, h.bridge.PendingEvents())
}

func TestBridgeCommands(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)

	cmd := fx.NewCommand(CommandTarget, "status")
	h.loop.PostMessage(cmd)
	h.tick(0)
	out, err := cmd.Wait(h.ctx)
	require.NoError(t, err)
	require.Contains(t, out, "state=IDLE")
	require.Contains(t, out, "connection=CONNECTED")

	cmd = fx.NewCommand(CommandTarget, "reset")
	h.loop.PostMessage(cmd)
	h.tick(0)
	out, err = cmd.Wait(h.ctx)
	require.NoError(t, err)
	require.Equal(t, "reset requested", out)
	h.tick(0)
	require.Equal(t, system.SearchingForDevices, h.state())

	_, err = h.bridge.Execute("fly")
	require.Error(t, err)
	_, err = h.bridge.Execute("shots", "x")
	require.Error(t, err)
}

func TestBridgeWatchdog(t *testing.T) {
	h := newHarness(t, protocol.SGTimer, sim.Manual)
	h.connect(t)
	h.exec(t, "start")
	h.runFor(sim.SessionStartDelay)
	require.False(t, h.bridge.watchdogFired)
	h.runFor(DefaultWatchdogTimeout)
	require.True(t, h.bridge.watchdogFired)
	h.exec(t, "shot")
	require.False(t, h.bridge.watchdogFired)
}

func TestFormatShotList(t *testing.T) {
	out := FormatShotList(device.ShotList{SessionID: 9, Records: []protocol.ShotRecord{
		{ShotNumber: 1, TimeMs: 2340},
		{ShotNumber: 2, TimeMs: 3330},
	}})
	require.Contains(t, out, "session 9: 2 shots")
	require.Contains(t, out, "2.34s")
	require.Contains(t, out, "0.99s")
}

func itoa(n uint32) string {
	return fmt.Sprint(n)
}
