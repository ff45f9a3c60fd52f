package protocol

import (
	"encoding/hex"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/timer"
)

// Decoder turns notification buffers of one vendor into events.
type Decoder struct {
	vendor  Vendor
	model   string
	session timer.Session
	sg      sgTimer
	pie     specialPie
}

// NewDecoder creates a Decoder for the vendor. An empty model uses
// the vendor's default model name.
func NewDecoder(v Vendor, model string) *Decoder {
	if model == "" {
		if p, ok := ProfileOf(v); ok {
			model = p.Model
		}
	}
	return &Decoder{vendor: v, model: model}
}

// Vendor returns the vendor of the decoder.
func (d *Decoder) Vendor() Vendor { return d.vendor }

// Model returns the device model stamped on shots.
func (d *Decoder) Model() string { return d.model }

// Session returns a snapshot of the live session.
func (d *Decoder) Session() timer.Session { return d.session }

// Reset clears split tracking and discards the session.
func (d *Decoder) Reset() {
	d.session.Clear()
	d.sg = sgTimer{}
	d.pie = specialPie{}
}

// Decode decodes one notification received at the given time. Malformed
// frames produce no events and leave the state untouched.
func (d *Decoder) Decode(buf []byte, at time.Time) []timer.Event {
	if glog.V(1) {
		glog.Infof("%s RCV %s", d.vendor, hex.EncodeToString(buf))
	}
	switch d.vendor {
	case SGTimer:
		return d.sg.decode(d, buf, at)
	case SpecialPie:
		return d.pie.decode(d, buf, at)
	}
	glog.Warningf("no decoder for vendor %s", d.vendor)
	return nil
}

func (d *Decoder) sessionEvent(kind timer.EventKind) timer.Event {
	return timer.Event{Kind: kind, Session: d.session}
}
