package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/shotbridge/pkg/device"
	"github.com/robotalks/shotbridge/pkg/timer/protocol"
)

var (
	// ErrNoSession indicates the command needs an active session.
	ErrNoSession = errors.New("no active session")
	// ErrSessionActive indicates a session is already running.
	ErrSessionActive = errors.New("session already active")
	// ErrNotLinked indicates no central is connected to the timer.
	ErrNotLinked = errors.New("timer not connected")
)

// Timer is a simulated shot timer peripheral. It emits the vendor's
// notification frames to the connected link.
type Timer struct {
	Profile protocol.Profile
	Address string
	Name    string
	RSSI    int

	lock sync.Mutex
	mode Mode
	rnd  *rand.Rand
	link *simLink

	connectedAt  time.Time
	autoStarted  bool
	advertiseNow bool

	sessionID    uint32
	active       bool
	suspended    bool
	startedAt    time.Time
	beginAt      time.Time
	begun        bool
	shots        []protocol.ShotRecord
	nextShotAt   time.Time
	lastStopRoll time.Time

	// stored shot lists by session, served on the shot list characteristic.
	history map[uint32][]protocol.ShotRecord
}

// NewTimer creates a simulated timer of the vendor.
func NewTimer(vendor protocol.Vendor, address, name string, mode Mode, seed int64) (*Timer, error) {
	profile, ok := protocol.ProfileOf(vendor)
	if !ok {
		return nil, device.ErrUnknownVendor
	}
	if name == "" {
		switch vendor {
		case protocol.SGTimer:
			name = protocol.SGNamePrefix + "-SIM"
		default:
			name = "SP-SIM"
		}
	}
	return &Timer{
		Profile: profile,
		Address: address,
		Name:    name,
		RSSI:    -55,
		mode:    mode,
		rnd:     rand.New(rand.NewSource(seed)),
		history: make(map[uint32][]protocol.ShotRecord),
	}, nil
}

// Vendor returns the vendor the timer speaks.
func (t *Timer) Vendor() protocol.Vendor { return t.Profile.Vendor }

// Peer returns the advertisement of the timer.
func (t *Timer) Peer() device.Peer {
	return device.Peer{
		Address:  t.Address,
		Name:     t.Name,
		Services: []uuid.UUID{t.Profile.Service},
		RSSI:     t.RSSI,
	}
}

// Mode returns the simulation mode.
func (t *Timer) Mode() Mode {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.mode
}

// SetMode changes the simulation mode.
func (t *Timer) SetMode(mode Mode) {
	t.lock.Lock()
	defer t.lock.Unlock()
	glog.Infof("sim %s: mode %s", t.Name, mode)
	t.mode = mode
	t.autoStarted = false
}

// Linked tells whether a central is connected.
func (t *Timer) Linked() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.link != nil
}

// Status describes the timer for the console.
func (t *Timer) Status() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	linked := "advertising"
	if t.link != nil {
		linked = "connected"
	}
	session := "no session"
	if t.active {
		session = fmt.Sprintf("session %d active, %d shots", t.sessionID, len(t.shots))
		if t.suspended {
			session += ", suspended"
		}
	} else if t.sessionID != 0 {
		session = fmt.Sprintf("session %d ended, %d shots", t.sessionID, len(t.shots))
	}
	return fmt.Sprintf("%s [%s] %s mode=%s %s, %s",
		t.Name, t.Address, t.Profile.Model, t.mode, linked, session)
}

// Advertise makes the timer advertise on the next step, used in Manual
// mode.
func (t *Timer) Advertise() {
	t.lock.Lock()
	t.advertiseNow = true
	t.lock.Unlock()
}

// shouldAdvertiseAt consumes a pending Advertise, due tells whether
// the periodic advertisement is due.
func (t *Timer) shouldAdvertiseAt(due bool) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.link != nil {
		t.advertiseNow = false
		return false
	}
	adv := t.advertiseNow || (due && t.mode.advertises())
	t.advertiseNow = false
	return adv
}

func (t *Timer) attach(link *simLink, now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.link = link
	t.connectedAt = now
	t.autoStarted = false
}

func (t *Timer) detach(link *simLink) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.link == link {
		t.link = nil
	}
}

// Drop breaks the link as if the timer went out of range.
func (t *Timer) Drop() error {
	t.lock.Lock()
	link := t.link
	t.link = nil
	t.lock.Unlock()
	if link == nil {
		return ErrNotLinked
	}
	link.drop()
	glog.Infof("sim %s: link dropped", t.Name)
	return nil
}

func (t *Timer) emit(frame []byte) {
	if t.link != nil {
		t.link.notify(t.Profile.Service, t.Profile.Notify, frame)
	}
}

// StartSession starts a session.
func (t *Timer) StartSession(now time.Time) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.startSession(now)
}

func (t *Timer) startSession(now time.Time) error {
	if t.link == nil {
		return ErrNotLinked
	}
	if t.active {
		return ErrSessionActive
	}
	t.sessionID = uint32(now.Unix())
	t.active, t.suspended, t.begun = true, false, false
	t.startedAt = now
	t.shots = nil
	t.lastStopRoll = now
	switch t.Vendor() {
	case protocol.SGTimer:
		t.beginAt = now.Add(SessionStartDelay)
		t.emit(protocol.SGSessionStartedFrame(t.sessionID, uint16(SessionStartDelay/(100*time.Millisecond))))
	case protocol.SpecialPie:
		t.sessionID &= 0xff
		t.beginAt, t.begun = now, true
		t.emit(protocol.PieSessionStartFrame(uint8(t.sessionID)))
	}
	t.nextShotAt = t.beginAt.Add(t.shotInterval())
	glog.Infof("sim %s: session %d started", t.Name, t.sessionID)
	return nil
}

// StopSession stops the active session.
func (t *Timer) StopSession() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stopSession()
}

func (t *Timer) stopSession() error {
	if !t.active {
		return ErrNoSession
	}
	t.active, t.suspended = false, false
	total := uint16(len(t.shots))
	switch t.Vendor() {
	case protocol.SGTimer:
		t.history[t.sessionID] = append([]protocol.ShotRecord(nil), t.shots...)
		t.emit(protocol.SGSessionStoppedFrame(t.sessionID, total))
	case protocol.SpecialPie:
		t.emit(protocol.PieSessionStopFrame(uint8(t.sessionID)))
	}
	glog.Infof("sim %s: session %d stopped, %d shots", t.Name, t.sessionID, total)
	return nil
}

// Suspend suspends the active session, only the SG timer supports it.
func (t *Timer) Suspend() error {
	return t.setSuspended(true)
}

// Resume resumes a suspended session.
func (t *Timer) Resume() error {
	return t.setSuspended(false)
}

func (t *Timer) setSuspended(suspended bool) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.Vendor() != protocol.SGTimer {
		return device.ErrUnsupported
	}
	if !t.active || t.suspended == suspended {
		return ErrNoSession
	}
	t.suspended = suspended
	total := uint16(len(t.shots))
	if suspended {
		t.emit(protocol.SGSessionSuspendedFrame(t.sessionID, total))
	} else {
		t.emit(protocol.SGSessionResumedFrame(t.sessionID, total))
	}
	return nil
}

// Shot fires a shot in the active session.
func (t *Timer) Shot(now time.Time) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.shot(now)
}

func (t *Timer) shot(now time.Time) error {
	if !t.active || t.suspended {
		return ErrNoSession
	}
	elapsed := now.Sub(t.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	ms := uint32(elapsed / time.Millisecond)
	rec := protocol.ShotRecord{ShotNumber: uint16(len(t.shots) + 1), TimeMs: ms}
	switch t.Vendor() {
	case protocol.SGTimer:
		t.emit(protocol.SGShotFrame(t.sessionID, rec.ShotNumber-1, ms))
	case protocol.SpecialPie:
		secs, centis := ms/1000, (ms%1000)/10
		if secs > 255 {
			secs, centis = 255, 99
		}
		// The timer stores what it reports.
		rec.TimeMs = secs*1000 + centis*10
		t.emit(protocol.PieShotFrame(uint8(secs), uint8(centis), uint8(rec.ShotNumber-1)))
	}
	t.shots = append(t.shots, rec)
	glog.V(1).Infof("sim %s: shot #%d at %dms", t.Name, rec.ShotNumber, rec.TimeMs)
	return nil
}

func (t *Timer) randDuration(min, max time.Duration) time.Duration {
	return min + time.Duration(t.rnd.Int63n(int64(max-min)))
}

// shotInterval paces shots, the realistic mode starts fast and slows
// down along the string.
func (t *Timer) shotInterval() time.Duration {
	if t.mode != Realistic {
		return t.randDuration(MinShotInterval, MaxShotInterval)
	}
	switch n := len(t.shots); {
	case n < 5:
		return t.randDuration(MinShotInterval, MinShotInterval+800*time.Millisecond)
	case n < 10:
		return t.randDuration(MinShotInterval+200*time.Millisecond, MaxShotInterval-500*time.Millisecond)
	default:
		return t.randDuration(MaxShotInterval-800*time.Millisecond, MaxShotInterval)
	}
}

// Step advances the automatic behavior to now.
func (t *Timer) Step(now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.link == nil {
		return
	}
	if t.active && !t.begun && !now.Before(t.beginAt) {
		t.begun = true
		t.emit(protocol.SGSetBeginFrame(t.sessionID))
	}
	if !t.mode.autoShots() {
		return
	}
	if !t.autoStarted && !t.active && now.Sub(t.connectedAt) >= SessionStartDelay {
		t.autoStarted = true
		t.startSession(now)
		return
	}
	if !t.active || t.suspended || !t.begun {
		return
	}
	if len(t.shots) < MaxShots && !now.Before(t.nextShotAt) {
		t.shot(now)
		t.nextShotAt = now.Add(t.shotInterval())
	}
	if t.mode == Realistic && now.Sub(t.startedAt) > AutoStopAfter && now.Sub(t.lastStopRoll) >= time.Second {
		t.lastStopRoll = now
		if t.rnd.Float64() < AutoStopChance {
			t.stopSession()
		}
	}
}

type shotListCursor struct {
	records []protocol.ShotRecord
	next    int
}

func (t *Timer) selectShotList(req []byte) error {
	id, ok := protocol.ParseShotListRequest(req)
	if !ok {
		return fmt.Errorf("bad shot list request % x", req)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.link == nil {
		return ErrNotLinked
	}
	t.link.cursor = &shotListCursor{records: t.history[id]}
	return nil
}

func (t *Timer) readShotList() []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.link == nil || t.link.cursor == nil {
		return protocol.ShotListEndRecord()
	}
	c := t.link.cursor
	if c.next >= len(c.records) {
		return protocol.ShotListEndRecord()
	}
	rec := c.records[c.next]
	c.next++
	return protocol.EncodeShotRecord(rec)
}
