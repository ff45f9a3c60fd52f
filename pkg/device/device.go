package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/timer"
	"github.com/robotalks/shotbridge/pkg/timer/protocol"
)

// Default timings.
const (
	DefaultSettleDelay       = 500 * time.Millisecond
	DefaultConnectTimeout    = 10 * time.Second
	DefaultScanDuration      = 10 * time.Second
	DefaultReconnectInterval = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
)

// Device is the session adapter of one shot timer. It owns the transport
// link and the decoder of the connected timer. All methods except the
// transport callbacks must be called from the loop goroutine.
type Device struct {
	Transport         Transport
	Clock             fx.Clock
	SettleDelay       time.Duration
	ConnectTimeout    time.Duration
	ScanDuration      time.Duration
	ReconnectInterval time.Duration
	HeartbeatInterval time.Duration
	// Sleep waits for the settle delay.
	Sleep func(time.Duration)
	// Wake is called when transport callbacks queue work.
	Wake func()

	initialized   bool
	state         timer.ConnectionState
	peer          Peer
	profile       protocol.Profile
	decoder       *protocol.Decoder
	link          Link
	gen           uint64
	scanning      bool
	autoReconnect bool
	scanStartedAt time.Time
	lastAttempt   time.Time
	lastHeartbeat time.Time

	inboxLock sync.Mutex
	inbox     []inboxItem

	handlers handlers
}

type inboxItem struct {
	gen      uint64
	at       time.Time
	peer     *Peer
	notify   []byte
	shotList *ShotList
}

// ShotList is the result of RequestShotList.
type ShotList struct {
	SessionID uint32
	Records   []protocol.ShotRecord
	Err       error
}

type handlers struct {
	shot      []func(timer.ShotEvent)
	started   []func(timer.Session)
	countdown []func(timer.Session)
	stopped   []func(timer.Session)
	suspended []func(timer.Session)
	resumed   []func(timer.Session)
	state     []func(timer.ConnectionState)
	shotList  []func(ShotList)
}

// New creates a Device with default timings.
func New(transport Transport) *Device {
	return &Device{
		Transport:         transport,
		Clock:             fx.SystemClock,
		SettleDelay:       DefaultSettleDelay,
		ConnectTimeout:    DefaultConnectTimeout,
		ScanDuration:      DefaultScanDuration,
		ReconnectInterval: DefaultReconnectInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
		Sleep:             time.Sleep,
	}
}

// AddToLoop implements LoopAdder.
func (d *Device) AddToLoop(loop *fx.Loop) {
	d.Wake = loop.TriggerNext
	if loop.Clock != nil {
		d.Clock = loop.Clock
	}
	loop.AddController(fx.PrLvSense, d)
}

// Control implements Controller.
func (d *Device) Control(fx.ControlContext) error {
	d.Update()
	return nil
}

// OnShotDetected subscribes to shots.
func (d *Device) OnShotDetected(fn func(timer.ShotEvent)) {
	d.handlers.shot = append(d.handlers.shot, fn)
}

// OnSessionStarted subscribes to session starts.
func (d *Device) OnSessionStarted(fn func(timer.Session)) {
	d.handlers.started = append(d.handlers.started, fn)
}

// OnCountdownComplete subscribes to the end of the start delay.
func (d *Device) OnCountdownComplete(fn func(timer.Session)) {
	d.handlers.countdown = append(d.handlers.countdown, fn)
}

// OnSessionStopped subscribes to session stops.
func (d *Device) OnSessionStopped(fn func(timer.Session)) {
	d.handlers.stopped = append(d.handlers.stopped, fn)
}

// OnSessionSuspended subscribes to session suspensions.
func (d *Device) OnSessionSuspended(fn func(timer.Session)) {
	d.handlers.suspended = append(d.handlers.suspended, fn)
}

// OnSessionResumed subscribes to session resumptions.
func (d *Device) OnSessionResumed(fn func(timer.Session)) {
	d.handlers.resumed = append(d.handlers.resumed, fn)
}

// OnConnectionStateChanged subscribes to connection state changes.
func (d *Device) OnConnectionStateChanged(fn func(timer.ConnectionState)) {
	d.handlers.state = append(d.handlers.state, fn)
}

// OnShotList subscribes to shot list results.
func (d *Device) OnShotList(fn func(ShotList)) {
	d.handlers.shotList = append(d.handlers.shotList, fn)
}

// Initialize prepares the device, it must be called before scanning.
func (d *Device) Initialize() error {
	if d.Transport == nil {
		return fmt.Errorf("device: transport required")
	}
	if d.Clock == nil {
		d.Clock = fx.SystemClock
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	d.initialized = true
	glog.Info("device initialized")
	return nil
}

// State returns the connection state.
func (d *Device) State() timer.ConnectionState { return d.state }

// IsConnected reports whether a timer is connected.
func (d *Device) IsConnected() bool {
	return d.link != nil && d.state == timer.Connected
}

// Peer returns the connected or last connected peer.
func (d *Device) Peer() Peer { return d.peer }

// Vendor returns the vendor of the connected timer.
func (d *Device) Vendor() protocol.Vendor { return d.profile.Vendor }

// Session returns a snapshot of the live session.
func (d *Device) Session() timer.Session {
	if d.decoder == nil {
		return timer.Session{}
	}
	return d.decoder.Session()
}

// SupportsRemoteStart reports whether sessions can be started remotely.
func (d *Device) SupportsRemoteStart() bool { return d.profile.RemoteStart }

// SupportsShotList reports whether the shot list can be read.
func (d *Device) SupportsShotList() bool { return d.profile.ShotListRead }

// SupportsSessionControl reports whether sessions can be controlled remotely.
func (d *Device) SupportsSessionControl() bool { return d.profile.SessionCtl }

// StartSession starts a session on the timer. None of the supported
// timers accept remote commands.
func (d *Device) StartSession() error { return ErrUnsupported }

// StopSession stops the session on the timer.
func (d *Device) StopSession() error { return ErrUnsupported }

// StartScanning starts searching for timers. Scanning stops when a timer
// is found or after ScanDuration.
func (d *Device) StartScanning() error {
	if !d.initialized {
		return ErrNotInitialized
	}
	d.autoReconnect = true
	if d.link != nil || d.scanning {
		return nil
	}
	d.lastAttempt = d.Clock.Now()
	d.setState(timer.Scanning)
	if err := d.Transport.StartScan(d.onPeerFound); err != nil {
		glog.Errorf("start scan failed: %v", err)
		d.setState(timer.Error)
		return err
	}
	d.scanning, d.scanStartedAt = true, d.lastAttempt
	glog.Info("scanning for timers")
	return nil
}

func (d *Device) stopScan() {
	if !d.scanning {
		return
	}
	d.scanning = false
	if err := d.Transport.StopScan(); err != nil {
		glog.Warningf("stop scan failed: %v", err)
	}
}

// Connect connects the timer. It blocks for the connection setup,
// including the settle delay.
func (d *Device) Connect(peer Peer) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	if d.link != nil {
		return ErrBusy
	}
	vendor := protocol.Detect(peer.Name, peer.Services)
	profile, ok := protocol.ProfileOf(vendor)
	if !ok {
		return ErrUnknownVendor
	}
	d.stopScan()
	d.autoReconnect = true
	d.lastAttempt = d.Clock.Now()
	d.peer, d.profile = peer, profile
	d.setState(timer.Connecting)
	glog.Infof("connecting %s timer %s", vendor, peer)

	ctx, cancel := context.WithTimeout(context.Background(), d.ConnectTimeout)
	defer cancel()
	link, err := d.Transport.Connect(ctx, peer.Address)
	if err != nil {
		glog.Errorf("connect %s failed: %v", peer, err)
		d.setState(timer.Error)
		return err
	}
	d.Sleep(d.SettleDelay)

	d.gen++
	gen := d.gen
	err = link.Subscribe(profile.Service, profile.Notify, func(data []byte) {
		buf := make([]byte, len(data))
		copy(buf, data)
		d.post(inboxItem{gen: gen, notify: buf})
	})
	if err != nil {
		glog.Errorf("subscribe %s on %s failed: %v", profile.Notify, peer, err)
		if cerr := link.Close(); cerr != nil {
			glog.Warningf("close link: %v", cerr)
		}
		d.setState(timer.Error)
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	d.link = link
	d.decoder = protocol.NewDecoder(vendor, "")
	d.lastHeartbeat = d.Clock.Now()
	glog.Infof("connected %s", peer)
	d.setState(timer.Connected)
	return nil
}

// Disconnect releases the link. The device won't reconnect by itself
// until StartScanning is called.
func (d *Device) Disconnect() error {
	d.autoReconnect = false
	d.stopScan()
	err := d.releaseLink()
	d.setState(timer.Disconnected)
	return err
}

// Close implements io.Closer.
func (d *Device) Close() error {
	return d.Disconnect()
}

func (d *Device) releaseLink() error {
	if d.decoder != nil {
		d.decoder.Reset()
	}
	link := d.link
	if link == nil {
		return nil
	}
	d.link = nil
	d.gen++
	return link.Close()
}

// RequestShotList reads the shot list of a session in the background.
// The result is delivered to OnShotList subscribers from Update.
func (d *Device) RequestShotList(sessionID uint32) error {
	if !d.SupportsShotList() {
		return ErrUnsupported
	}
	if !d.IsConnected() {
		return ErrNotConnected
	}
	link, profile, gen, limit := d.link, d.profile, d.gen, int(d.Session().TotalShots)
	if limit == 0 || limit > protocol.MaxShotListReads {
		limit = protocol.MaxShotListReads
	}
	go func() {
		result := readShotList(link, profile, sessionID, limit)
		d.post(inboxItem{gen: gen, shotList: &result})
	}()
	return nil
}

func readShotList(link Link, profile protocol.Profile, sessionID uint32, limit int) ShotList {
	result := ShotList{SessionID: sessionID}
	if result.Err = link.Write(profile.Service, profile.ShotList, protocol.ShotListRequest(sessionID)); result.Err != nil {
		return result
	}
	for n := 0; n < limit; n++ {
		buf, err := link.Read(profile.Service, profile.ShotList)
		if err != nil {
			result.Err = err
			return result
		}
		rec, end, err := protocol.ParseShotRecord(buf)
		if err != nil {
			result.Err = err
			return result
		}
		if end {
			break
		}
		result.Records = append(result.Records, rec)
	}
	return result
}

func (d *Device) onPeerFound(peer Peer) {
	d.post(inboxItem{peer: &peer})
}

func (d *Device) post(item inboxItem) {
	item.at = d.Clock.Now()
	d.inboxLock.Lock()
	d.inbox = append(d.inbox, item)
	d.inboxLock.Unlock()
	if wake := d.Wake; wake != nil {
		wake()
	}
}

// Update drains transport callbacks in arrival order, then polls the
// link, the scan and the reconnect policy.
func (d *Device) Update() {
	if !d.initialized {
		return
	}
	d.inboxLock.Lock()
	items := d.inbox
	d.inbox = nil
	d.inboxLock.Unlock()
	for _, item := range items {
		d.handleItem(item)
	}

	now := d.Clock.Now()
	if d.link != nil && !d.link.Connected() {
		d.connectionLost()
	}
	if d.scanning && now.Sub(d.scanStartedAt) >= d.ScanDuration {
		glog.Info("no timer found")
		d.stopScan()
		d.lastAttempt = now
		d.setState(timer.Disconnected)
	}
	if d.link == nil && !d.scanning && d.autoReconnect &&
		now.Sub(d.lastAttempt) >= d.ReconnectInterval {
		glog.Info("attempting to reconnect")
		d.StartScanning()
	}
	if d.IsConnected() && !d.Session().IsActive &&
		now.Sub(d.lastHeartbeat) >= d.HeartbeatInterval {
		d.lastHeartbeat = now
		glog.Infof("%s connected, waiting for a session", d.peer.DisplayName())
	}
}

func (d *Device) handleItem(item inboxItem) {
	switch {
	case item.peer != nil:
		if !d.scanning {
			return
		}
		if vendor := protocol.Detect(item.peer.Name, item.peer.Services); vendor != protocol.UnknownVendor {
			glog.Infof("found %s timer %s", vendor, item.peer)
			if err := d.Connect(*item.peer); err != nil {
				d.lastAttempt = d.Clock.Now()
			}
		} else {
			glog.V(2).Infof("ignore peer %s", item.peer)
		}
	case item.notify != nil:
		if item.gen != d.gen || d.decoder == nil {
			return
		}
		for _, ev := range d.decoder.Decode(item.notify, item.at) {
			d.dispatch(ev)
		}
	case item.shotList != nil:
		if item.gen != d.gen {
			return
		}
		for _, fn := range d.handlers.shotList {
			fn(*item.shotList)
		}
	}
}

func (d *Device) connectionLost() {
	glog.Warningf("%s connection lost", d.peer.DisplayName())
	if err := d.releaseLink(); err != nil {
		glog.Warningf("close link: %v", err)
	}
	d.lastAttempt = d.Clock.Now()
	d.setState(timer.Disconnected)
}

func (d *Device) setState(s timer.ConnectionState) {
	if s == d.state {
		return
	}
	glog.Infof("connection state %s -> %s", d.state, s)
	d.state = s
	for _, fn := range d.handlers.state {
		fn(s)
	}
}

func (d *Device) dispatch(ev timer.Event) {
	glog.V(1).Infof("event %s", ev)
	var fns []func(timer.Session)
	switch ev.Kind {
	case timer.ShotDetected:
		for _, fn := range d.handlers.shot {
			fn(ev.Shot)
		}
		return
	case timer.SessionStarted:
		fns = d.handlers.started
	case timer.CountdownComplete:
		fns = d.handlers.countdown
	case timer.SessionStopped:
		fns = d.handlers.stopped
	case timer.SessionSuspended:
		fns = d.handlers.suspended
	case timer.SessionResumed:
		fns = d.handlers.resumed
	}
	for _, fn := range fns {
		fn(ev.Session)
	}
}
