package protocol

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/shotbridge/pkg/timer"
)

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func decodeAll(d *Decoder, frames ...[]byte) []timer.Event {
	var events []timer.Event
	for n, frame := range frames {
		events = append(events, d.Decode(frame, testTime.Add(time.Duration(n)*time.Second))...)
	}
	return events
}

func TestSGSessionStarted(t *testing.T) {
	d := NewDecoder(SGTimer, "")
	events := d.Decode([]byte{0x07, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x1E}, testTime)
	require.Len(t, events, 1)
	ev := events[0]
	require.Equal(t, timer.SessionStarted, ev.Kind)
	require.Equal(t, uint32(1), ev.Session.SessionID)
	require.True(t, ev.Session.IsActive)
	require.Equal(t, uint16(0), ev.Session.TotalShots)
	require.Equal(t, float32(3.0), ev.Session.StartDelaySeconds)
	require.Equal(t, testTime, ev.Session.StartedAt)
	require.Equal(t, ev.Session, d.Session())
}

func TestSGSessionStartedPayloadLengthByte(t *testing.T) {
	// The length byte counts only the payload here, not the event id, so
	// the frame fails the len(buf)-1 check and is dropped. Rejecting it is
	// intended; see TestSGSessionStarted for the well formed frame.
	d := NewDecoder(SGTimer, "")
	require.Empty(t, d.Decode([]byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x1E}, testTime))
	require.Equal(t, timer.Session{}, d.Session())
}

func TestSGFirstShotAfterStart(t *testing.T) {
	d := NewDecoder(SGTimer, "SG-SST4-123")
	events := decodeAll(d,
		SGSessionStartedFrame(1, 30),
		[]byte{0x0B, 0x04, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x03, 0xE8},
	)
	require.Len(t, events, 2)
	shot := events[1]
	require.Equal(t, timer.ShotDetected, shot.Kind)
	require.Equal(t, timer.ShotEvent{
		SessionID:      1,
		ShotNumber:     1,
		AbsoluteTimeMs: 1000,
		SplitTimeMs:    0,
		DetectedAt:     testTime.Add(time.Second),
		DeviceModel:    "SG-SST4-123",
		IsFirstShot:    true,
	}, shot.Shot)
}

func TestSGSplits(t *testing.T) {
	times := []uint32{1520, 1830, 2100, 2100, 5999, 70000}
	d := NewDecoder(SGTimer, "")
	frames := [][]byte{SGSessionStartedFrame(9, 0)}
	for n, ms := range times {
		frames = append(frames, SGShotFrame(9, uint16(n), ms))
	}
	events := decodeAll(d, frames...)
	require.Len(t, events, len(times)+1)
	for n, ev := range events[1:] {
		require.Equal(t, timer.ShotDetected, ev.Kind)
		require.Equal(t, uint16(n+1), ev.Shot.ShotNumber)
		require.Equal(t, times[n], ev.Shot.AbsoluteTimeMs)
		if n == 0 {
			require.True(t, ev.Shot.IsFirstShot)
			require.Zero(t, ev.Shot.SplitTimeMs)
		} else {
			require.False(t, ev.Shot.IsFirstShot)
			require.Equal(t, times[n]-times[n-1], ev.Shot.SplitTimeMs)
		}
	}
}

func TestSGShotTimeBackwards(t *testing.T) {
	d := NewDecoder(SGTimer, "")
	events := decodeAll(d,
		SGSessionStartedFrame(2, 0),
		SGShotFrame(2, 0, 5000),
		SGShotFrame(2, 1, 1000),
		SGShotFrame(2, 2, 1500),
	)
	require.Len(t, events, 4)
	require.Zero(t, events[2].Shot.SplitTimeMs)
	require.Equal(t, uint32(500), events[3].Shot.SplitTimeMs)
}

func TestSGSessionLifecycle(t *testing.T) {
	d := NewDecoder(SGTimer, "")
	events := decodeAll(d,
		SGSessionStartedFrame(3, 25),
		SGSetBeginFrame(3),
		SGShotFrame(3, 0, 900),
		SGSessionSuspendedFrame(3, 1),
		SGSessionResumedFrame(3, 1),
		SGShotFrame(3, 1, 2400),
		SGSessionStoppedFrame(3, 2),
		SGShotFrame(3, 0, 700),
	)
	kinds := make([]timer.EventKind, len(events))
	for n, ev := range events {
		kinds[n] = ev.Kind
	}
	require.Equal(t, []timer.EventKind{
		timer.SessionStarted,
		timer.CountdownComplete,
		timer.ShotDetected,
		timer.SessionSuspended,
		timer.SessionResumed,
		timer.ShotDetected,
		timer.SessionStopped,
		timer.ShotDetected,
	}, kinds)
	require.True(t, events[3].Session.IsActive)
	require.Equal(t, uint16(1), events[3].Session.TotalShots)
	require.Equal(t, uint32(1500), events[5].Shot.SplitTimeMs)
	require.False(t, events[6].Session.IsActive)
	require.Equal(t, uint16(2), events[6].Session.TotalShots)
	// stop clears split tracking
	require.True(t, events[7].Shot.IsFirstShot)
	require.Zero(t, events[7].Shot.SplitTimeMs)
}

func TestSGMalformedFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x00}},
		{"length too large", []byte{0x09, 0x04, 0x00}},
		{"length too small", []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x1E}},
		{"length zero", []byte{0x00, 0x05}},
		{"start payload short", SGFrame(SGSessionStarted, 0, 0, 0, 1, 0)},
		{"shot payload short", SGFrame(SGShotDetected, 0, 0, 0, 1, 0, 0, 0, 0, 3)},
		{"set begin payload short", SGFrame(SGSessionSetBegin, 0, 0, 1)},
		{"unknown event", SGFrame(0x42, 0, 0, 0, 1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(SGTimer, "")
			decodeAll(d, SGSessionStartedFrame(4, 0), SGShotFrame(4, 0, 1000))
			before := *d
			require.Empty(t, d.Decode(tc.frame, testTime))
			require.Equal(t, before, *d)
		})
	}
}

func TestSGLengthMismatchNeverEmits(t *testing.T) {
	base := SGShotFrame(1, 0, 1000)
	for n := 0; n < 256; n++ {
		if n == len(base)-1 {
			continue
		}
		frame := append([]byte{byte(n)}, base[1:]...)
		d := NewDecoder(SGTimer, "")
		require.Empty(t, d.Decode(frame, testTime), "len byte %d", n)
		require.Equal(t, *NewDecoder(SGTimer, ""), *d)
	}
}

func TestPieSessionStart(t *testing.T) {
	d := NewDecoder(SpecialPie, "")
	events := d.Decode([]byte{0xF8, 0xF9, 0x34, 0x05, 0xF9, 0xF8}, testTime)
	require.Len(t, events, 2)
	require.Equal(t, timer.SessionStarted, events[0].Kind)
	require.Equal(t, timer.CountdownComplete, events[1].Kind)
	for _, ev := range events {
		require.Equal(t, uint32(5), ev.Session.SessionID)
		require.True(t, ev.Session.IsActive)
		require.Zero(t, ev.Session.TotalShots)
		require.Zero(t, ev.Session.StartDelaySeconds)
	}
}

func TestPieShots(t *testing.T) {
	d := NewDecoder(SpecialPie, "")
	events := decodeAll(d,
		PieSessionStartFrame(7),
		PieShotFrame(1, 85, 0),
		PieShotFrame(2, 10, 1),
		PieShotFrame(2, 10, 2),
		PieShotFrame(4, 99, 3),
		PieSessionStopFrame(7),
	)
	require.Len(t, events, 7)
	shots := events[2:6]
	expect := []struct {
		abs, split uint32
	}{{1850, 0}, {2100, 250}, {2100, 0}, {4990, 2890}}
	for n, ev := range shots {
		require.Equal(t, timer.ShotDetected, ev.Kind)
		require.Equal(t, uint32(7), ev.Shot.SessionID)
		require.Equal(t, uint16(n+1), ev.Shot.ShotNumber)
		require.Equal(t, expect[n].abs, ev.Shot.AbsoluteTimeMs)
		require.Equal(t, expect[n].split, ev.Shot.SplitTimeMs)
		require.Equal(t, n == 0, ev.Shot.IsFirstShot)
		require.Equal(t, "Special Pie Timer", ev.Shot.DeviceModel)
	}
	stop := events[6]
	require.Equal(t, timer.SessionStopped, stop.Kind)
	require.False(t, stop.Session.IsActive)
	require.Equal(t, uint16(4), stop.Session.TotalShots)
}

func TestPieSplitBorrowMatchesDirect(t *testing.T) {
	for prevS := 0; prevS < 256; prevS += 3 {
		for prevCs := 0; prevCs < 100; prevCs += 7 {
			for s := 0; s < 256; s++ {
				for cs := 0; cs < 100; cs++ {
					direct := int32(s*1000+cs*10) - int32(prevS*1000+prevCs*10)
					got := PieSplitMs(uint8(prevS), uint8(prevCs), uint8(s), uint8(cs))
					if got != direct {
						t.Fatalf("split %d.%02d -> %d.%02d: got %d, want %d", prevS, prevCs, s, cs, got, direct)
					}
				}
			}
		}
	}
}

func TestPieInvalidFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"too short", []byte{0xF8, 0xF9, 0xF9, 0xF8}},
		{"five bytes", []byte{0xF8, 0xF9, 0x34, 0xF9, 0xF8}},
		{"bad head", []byte{0xF8, 0xF8, 0x34, 0x05, 0xF9, 0xF8}},
		{"bad tail", []byte{0xF8, 0xF9, 0x34, 0x05, 0xF8, 0xF9}},
		{"short shot", []byte{0xF8, 0xF9, 0x36, 0x00, 0x01, 0x02, 0xF9, 0xF8}},
		{"shot missing checksum", []byte{0xF8, 0xF9, 0x36, 0x00, 0x01, 0x02, 0x03, 0xF9, 0xF8}},
		{"centis out of range", PieShotFrame(1, 100, 0)},
		{"unknown type", PieFrame(0x99, 0x01)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(SpecialPie, "")
			decodeAll(d, PieSessionStartFrame(1), PieShotFrame(1, 0, 0))
			before := *d
			require.Empty(t, d.Decode(tc.frame, testTime))
			require.Equal(t, before, *d)
		})
	}
}

func TestDecoderReset(t *testing.T) {
	for _, v := range []Vendor{SGTimer, SpecialPie} {
		t.Run(v.String(), func(t *testing.T) {
			d := NewDecoder(v, "")
			if v == SGTimer {
				decodeAll(d, SGSessionStartedFrame(1, 0), SGShotFrame(1, 0, 1000))
			} else {
				decodeAll(d, PieSessionStartFrame(1), PieShotFrame(1, 0, 0))
			}
			require.True(t, d.Session().IsActive)
			d.Reset()
			require.Equal(t, *NewDecoder(v, ""), *d)
		})
	}
}

func TestUnknownVendorDecodesNothing(t *testing.T) {
	d := NewDecoder(UnknownVendor, "")
	require.Empty(t, d.Decode(SGSessionStartedFrame(1, 0), testTime))
	require.Empty(t, d.Decode(PieSessionStartFrame(1), testTime))
}

func TestDetect(t *testing.T) {
	testCases := []struct {
		name     string
		advName  string
		services []uuid.UUID
		expect   Vendor
	}{
		{"sg by service", "", []uuid.UUID{SGServiceUUID}, SGTimer},
		{"sg by name", "SG-SST4-0042", nil, SGTimer},
		{"pie by service", "timer", []uuid.UUID{uuid.MustParse("0917FE11-0000-1000-8000-00805F9B34FB"), PieServiceUUID}, SpecialPie},
		{"unknown", "Headphones", []uuid.UUID{uuid.MustParse("0000180F-0000-1000-8000-00805F9B34FB")}, UnknownVendor},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Detect(tc.advName, tc.services))
		})
	}
}

func TestParseVendor(t *testing.T) {
	v, err := ParseVendor("SG")
	require.NoError(t, err)
	require.Equal(t, SGTimer, v)
	v, err = ParseVendor("specialpie")
	require.NoError(t, err)
	require.Equal(t, SpecialPie, v)
	_, err = ParseVendor("unknown")
	require.Error(t, err)
}
