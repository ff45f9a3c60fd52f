// Package sim simulates shot timers behind a radio, for running the
// bridge without hardware.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
)

// Radio implements device.Transport over simulated timers.
type Radio struct {
	Clock        fx.Clock
	ConnectDelay time.Duration

	timers []*Timer

	lock         sync.Mutex
	found        func(device.Peer)
	lastAdvertAt time.Time
}

// NewRadio creates a Radio with timers.
func NewRadio(timers ...*Timer) *Radio {
	return &Radio{Clock: fx.SystemClock, ConnectDelay: ConnectDelay, timers: timers}
}

// Timers returns the simulated timers.
func (r *Radio) Timers() []*Timer {
	return r.timers
}

// Timer finds a timer by address, or the first one when address is
// empty.
func (r *Radio) Timer(address string) *Timer {
	for _, t := range r.timers {
		if address == "" || t.Address == address {
			return t
		}
	}
	return nil
}

// StartScan implements device.Transport.
func (r *Radio) StartScan(found func(device.Peer)) error {
	r.lock.Lock()
	r.found = found
	r.lastAdvertAt = time.Time{}
	r.lock.Unlock()
	return nil
}

// StopScan implements device.Transport.
func (r *Radio) StopScan() error {
	r.lock.Lock()
	r.found = nil
	r.lock.Unlock()
	return nil
}

// Scanning tells whether a central is scanning.
func (r *Radio) Scanning() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.found != nil
}

// Connect implements device.Transport.
func (r *Radio) Connect(ctx context.Context, address string) (device.Link, error) {
	t := r.Timer(address)
	if t == nil || address == "" {
		return nil, device.ErrNotConnected
	}
	if r.ConnectDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.ConnectDelay):
		}
	}
	link := &simLink{timer: t, connected: true, subs: make(map[uuid.UUID]func([]byte))}
	t.attach(link, r.Clock.Now())
	glog.Infof("sim %s: connected", t.Name)
	return link, nil
}

// Step advertises and advances the timers to now.
func (r *Radio) Step(now time.Time) {
	r.lock.Lock()
	found := r.found
	advertise := found != nil && (r.lastAdvertAt.IsZero() || now.Sub(r.lastAdvertAt) >= AdvertiseInterval)
	r.lock.Unlock()
	for _, t := range r.timers {
		if found != nil && t.shouldAdvertiseAt(advertise) {
			found(t.Peer())
			r.lock.Lock()
			r.lastAdvertAt = now
			r.lock.Unlock()
		}
		t.Step(now)
	}
}

// AddToLoop implements LoopAdder.
func (r *Radio) AddToLoop(l *fx.Loop) {
	r.Clock = l.Clock
	l.AddController(fx.PrLvControl, fx.ControlFunc(r.HandleCommands))
	l.AddController(fx.PrLvTop, fx.ControlFunc(r.Control))
}

// Control is a controller stepping the simulation.
func (r *Radio) Control(cc fx.ControlContext) error {
	r.Step(cc.Time())
	return nil
}

type simLink struct {
	timer *Timer

	lock      sync.Mutex
	connected bool
	subs      map[uuid.UUID]func([]byte)
	// cursor is guarded by the timer lock.
	cursor *shotListCursor
}

func (l *simLink) notify(service, char uuid.UUID, frame []byte) {
	l.lock.Lock()
	fn := l.subs[char]
	connected := l.connected
	l.lock.Unlock()
	if connected && fn != nil {
		fn(append([]byte(nil), frame...))
	}
}

func (l *simLink) drop() {
	l.lock.Lock()
	l.connected = false
	l.lock.Unlock()
}

func (l *simLink) check(service, char uuid.UUID) error {
	if !l.Connected() {
		return device.ErrNotConnected
	}
	p := l.timer.Profile
	if service != p.Service {
		return device.ErrServiceNotFound
	}
	if char != p.Notify && (p.ShotList == uuid.Nil || char != p.ShotList) {
		return device.ErrCharacteristicNotFound
	}
	return nil
}

// Subscribe implements device.Link.
func (l *simLink) Subscribe(service, char uuid.UUID, fn func([]byte)) error {
	if err := l.check(service, char); err != nil {
		return err
	}
	if char != l.timer.Profile.Notify {
		return device.ErrNotifyUnsupported
	}
	l.lock.Lock()
	l.subs[char] = fn
	l.lock.Unlock()
	return nil
}

// Write implements device.Link.
func (l *simLink) Write(service, char uuid.UUID, data []byte) error {
	if err := l.check(service, char); err != nil {
		return err
	}
	if char != l.timer.Profile.ShotList {
		return device.ErrUnsupported
	}
	return l.timer.selectShotList(data)
}

// Read implements device.Link.
func (l *simLink) Read(service, char uuid.UUID) ([]byte, error) {
	if err := l.check(service, char); err != nil {
		return nil, err
	}
	if char != l.timer.Profile.ShotList {
		return nil, device.ErrUnsupported
	}
	return l.timer.readShotList(), nil
}

// Connected implements device.Link.
func (l *simLink) Connected() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.connected
}

// Close implements device.Link.
func (l *simLink) Close() error {
	l.drop()
	l.timer.detach(l)
	return nil
}
