package protocol

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/timer"
)

// Special Pie frame markers and message types.
const (
	PieHead0 byte = 0xF8
	PieHead1 byte = 0xF9

	PieSessionStart byte = 0x34
	PieSessionStop  byte = 0x18
	PieShotDetected byte = 0x36

	pieMinFrameLen  = 6
	pieShotFrameLen = 10
)

type specialPie struct {
	hasPreviousShot bool
	prevSeconds     uint8
	prevCentis      uint8
}

func validPieFrame(buf []byte) bool {
	n := len(buf)
	return n >= pieMinFrameLen &&
		buf[0] == PieHead0 && buf[1] == PieHead1 &&
		buf[n-2] == PieHead1 && buf[n-1] == PieHead0
}

// PieSplitMs computes the split between two readings of the
// seconds/centiseconds clock, borrowing a second when needed.
// The result is negative when the current reading is earlier.
func PieSplitMs(prevSeconds, prevCentis, seconds, centis uint8) int32 {
	deltaSeconds := int32(seconds) - int32(prevSeconds)
	deltaCentis := int32(centis) - int32(prevCentis)
	if deltaCentis < 0 {
		deltaSeconds--
		deltaCentis += 100
	}
	return deltaSeconds*1000 + deltaCentis*10
}

func (p *specialPie) decode(d *Decoder, buf []byte, at time.Time) []timer.Event {
	if !validPieFrame(buf) {
		glog.V(1).Infof("specialpie: invalid frame discarded (%d bytes)", len(buf))
		return nil
	}
	switch buf[2] {
	case PieSessionStart:
		sessionID := uint32(buf[3])
		d.session.Reset(sessionID, at, 0)
		*p = specialPie{}
		glog.Infof("specialpie: session %d started", sessionID)
		return []timer.Event{
			d.sessionEvent(timer.SessionStarted),
			d.sessionEvent(timer.CountdownComplete),
		}
	case PieSessionStop:
		d.session.IsActive = false
		*p = specialPie{}
		glog.Infof("specialpie: session %d stopped", buf[3])
		return []timer.Event{d.sessionEvent(timer.SessionStopped)}
	case PieShotDetected:
		if len(buf) < pieShotFrameLen {
			glog.Warningf("specialpie: shot frame too short: %d", len(buf))
			return nil
		}
		seconds, centis, number := buf[4], buf[5], buf[6]
		if centis > 99 {
			glog.Warningf("specialpie: centiseconds out of range: %d", centis)
			return nil
		}
		shot := timer.ShotEvent{
			SessionID:      d.session.SessionID,
			ShotNumber:     uint16(number) + 1,
			AbsoluteTimeMs: uint32(seconds)*1000 + uint32(centis)*10,
			DetectedAt:     at,
			DeviceModel:    d.model,
			IsFirstShot:    !p.hasPreviousShot,
		}
		if p.hasPreviousShot {
			if split := PieSplitMs(p.prevSeconds, p.prevCentis, seconds, centis); split >= 0 {
				shot.SplitTimeMs = uint32(split)
			} else {
				glog.Warningf("specialpie: shot time went backwards (%d.%02d < %d.%02d), split reported as 0",
					seconds, centis, p.prevSeconds, p.prevCentis)
			}
		}
		p.hasPreviousShot, p.prevSeconds, p.prevCentis = true, seconds, centis
		d.session.TotalShots = shot.ShotNumber
		return []timer.Event{{Kind: timer.ShotDetected, Shot: shot}}
	}
	glog.V(1).Infof("specialpie: unknown message type 0x%02x ignored", buf[2])
	return nil
}
