package protocol

import (
	"encoding/binary"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/timer"
)

// SG Timer event ids.
const (
	SGSessionStarted   byte = 0x00
	SGSessionSuspended byte = 0x01
	SGSessionResumed   byte = 0x02
	SGSessionStopped   byte = 0x03
	SGShotDetected     byte = 0x04
	SGSessionSetBegin  byte = 0x05
)

// minimum payload length per event id.
var sgPayloadLen = map[byte]int{
	SGSessionStarted:   6,
	SGSessionSuspended: 6,
	SGSessionResumed:   6,
	SGSessionStopped:   6,
	SGShotDetected:     10,
	SGSessionSetBegin:  4,
}

type sgTimer struct {
	hasFirstShot   bool
	previousTimeMs uint32
}

func (p *sgTimer) decode(d *Decoder, buf []byte, at time.Time) []timer.Event {
	if len(buf) < 2 || int(buf[0]) != len(buf)-1 {
		glog.Warningf("sg: corrupt frame, length byte mismatch (%d bytes)", len(buf))
		return nil
	}
	id, payload := buf[1], buf[2:]
	minLen, known := sgPayloadLen[id]
	if !known {
		glog.Warningf("sg: unknown event 0x%02x ignored", id)
		return nil
	}
	if len(payload) < minLen {
		glog.Warningf("sg: event 0x%02x payload too short: %d", id, len(payload))
		return nil
	}
	sessionID := binary.BigEndian.Uint32(payload)

	switch id {
	case SGSessionStarted:
		delay := binary.BigEndian.Uint16(payload[4:])
		d.session.Reset(sessionID, at, float32(delay)/10)
		*p = sgTimer{}
		glog.Infof("sg: session %d started, delay %.1fs", sessionID, d.session.StartDelaySeconds)
		return []timer.Event{d.sessionEvent(timer.SessionStarted)}
	case SGSessionSuspended:
		d.session.TotalShots = binary.BigEndian.Uint16(payload[4:])
		glog.Infof("sg: session %d suspended, %d shots", sessionID, d.session.TotalShots)
		return []timer.Event{d.sessionEvent(timer.SessionSuspended)}
	case SGSessionResumed:
		d.session.TotalShots = binary.BigEndian.Uint16(payload[4:])
		glog.Infof("sg: session %d resumed, %d shots", sessionID, d.session.TotalShots)
		return []timer.Event{d.sessionEvent(timer.SessionResumed)}
	case SGSessionStopped:
		d.session.IsActive = false
		d.session.TotalShots = binary.BigEndian.Uint16(payload[4:])
		*p = sgTimer{}
		glog.Infof("sg: session %d stopped, %d shots", sessionID, d.session.TotalShots)
		return []timer.Event{d.sessionEvent(timer.SessionStopped)}
	case SGShotDetected:
		shotNum := binary.BigEndian.Uint16(payload[4:])
		shotTime := binary.BigEndian.Uint32(payload[6:])
		shot := timer.ShotEvent{
			SessionID:      sessionID,
			ShotNumber:     shotNum + 1,
			AbsoluteTimeMs: shotTime,
			DetectedAt:     at,
			DeviceModel:    d.model,
			IsFirstShot:    !p.hasFirstShot,
		}
		if p.hasFirstShot {
			if shotTime >= p.previousTimeMs {
				shot.SplitTimeMs = shotTime - p.previousTimeMs
			} else {
				glog.Warningf("sg: shot time went backwards (%d < %d), split reported as 0",
					shotTime, p.previousTimeMs)
			}
		}
		p.hasFirstShot, p.previousTimeMs = true, shotTime
		return []timer.Event{{Kind: timer.ShotDetected, Shot: shot}}
	case SGSessionSetBegin:
		return []timer.Event{d.sessionEvent(timer.CountdownComplete)}
	}
	return nil
}
