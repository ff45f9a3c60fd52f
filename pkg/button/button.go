// Package button turns presses of an input device into button messages
// on the loop.
package button

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
)

// Defaults.
const (
	DefaultDebounce   = 50 * time.Millisecond
	DefaultOpenRetry  = time.Second
	SourceInputDevice = "button"
	autoDetectDevice  = -1
	anyButton         = -1
)

// Debouncer accepts a press only when the previous accepted press is at
// least Interval ago.
type Debouncer struct {
	Interval time.Duration

	last time.Time
}

// Press reports whether the press at the time is accepted.
func (d *Debouncer) Press(at time.Time) bool {
	if !d.last.IsZero() && at.Sub(d.last) < d.Interval {
		return false
	}
	d.last = at
	return true
}

// Reader reads an input device and posts msgs.ButtonPress to the loop.
type Reader struct {
	// DeviceIndex selects /dev/input/jsN, -1 detects the first one.
	DeviceIndex int
	// Button selects the button, -1 accepts all.
	Button    int
	Debounce  Debouncer
	OpenRetry time.Duration
	Clock     fx.Clock
	// Open overrides the device opening.
	Open func(index int) (Device, error)
}

// NewReader creates a Reader.
func NewReader(deviceIndex int) *Reader {
	return &Reader{
		DeviceIndex: deviceIndex,
		Button:      anyButton,
		Debounce:    Debouncer{Interval: DefaultDebounce},
		OpenRetry:   DefaultOpenRetry,
		Clock:       fx.SystemClock,
	}
}

// AddToLoop implements LoopAdder.
func (r *Reader) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("button", r))
}

func (r *Reader) open() (Device, error) {
	if r.Open != nil {
		return r.Open(r.DeviceIndex)
	}
	if r.DeviceIndex == autoDetectDevice {
		return Detect(0)
	}
	return Open(r.DeviceIndex)
}

// Run implements Runnable.
func (r *Reader) Run(ctx context.Context) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	for {
		dev, err := r.open()
		if err == ErrUnsupported {
			glog.Warning("button input not supported on this system")
			return nil
		}
		if err != nil {
			glog.V(1).Infof("open button device: %v", err)
		} else if dev != nil {
			glog.Infof("button device %d %q opened", dev.Index(), dev.Name())
			err = fx.RunWithContextCloser(ctx, dev, func() error {
				return r.read(dev, loopCtl)
			})
			glog.Warningf("button device closed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.OpenRetry):
		}
	}
}

func (r *Reader) read(dev Device, lc fx.LoopControl) error {
	for {
		ev, err := dev.ReadEvent()
		if err != nil {
			return err
		}
		if ev.Init || !ev.Pressed || (r.Button != anyButton && ev.Index != r.Button) {
			continue
		}
		if !r.Debounce.Press(r.Clock.Now()) {
			glog.V(2).Infof("button %d bounce", ev.Index)
			continue
		}
		press := &msgs.ButtonPress{}
		press.Source = SourceInputDevice
		lc.PostMessage(press)
		lc.TriggerNext()
	}
}
