package protocol

import "encoding/binary"

// SGFrame builds an SG Timer frame with the length prefix.
func SGFrame(eventID byte, payload ...byte) []byte {
	buf := make([]byte, 0, len(payload)+2)
	buf = append(buf, byte(len(payload)+1), eventID)
	return append(buf, payload...)
}

func sgSessionPayload(sessionID uint32, value uint16) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint32(buf, sessionID)
	binary.BigEndian.PutUint16(buf[4:], value)
	return buf
}

// SGSessionStartedFrame encodes SESSION_STARTED, delay in 0.1s units.
func SGSessionStartedFrame(sessionID uint32, delayTenths uint16) []byte {
	return SGFrame(SGSessionStarted, sgSessionPayload(sessionID, delayTenths)...)
}

// SGSessionSuspendedFrame encodes SESSION_SUSPENDED.
func SGSessionSuspendedFrame(sessionID uint32, totalShots uint16) []byte {
	return SGFrame(SGSessionSuspended, sgSessionPayload(sessionID, totalShots)...)
}

// SGSessionResumedFrame encodes SESSION_RESUMED.
func SGSessionResumedFrame(sessionID uint32, totalShots uint16) []byte {
	return SGFrame(SGSessionResumed, sgSessionPayload(sessionID, totalShots)...)
}

// SGSessionStoppedFrame encodes SESSION_STOPPED.
func SGSessionStoppedFrame(sessionID uint32, totalShots uint16) []byte {
	return SGFrame(SGSessionStopped, sgSessionPayload(sessionID, totalShots)...)
}

// SGShotFrame encodes SHOT_DETECTED with a 0-based shot number.
func SGShotFrame(sessionID uint32, shotNum uint16, timeMs uint32) []byte {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint32(buf, sessionID)
	binary.BigEndian.PutUint16(buf[4:], shotNum)
	binary.BigEndian.PutUint32(buf[6:], timeMs)
	return SGFrame(SGShotDetected, buf...)
}

// SGSetBeginFrame encodes SESSION_SET_BEGIN.
func SGSetBeginFrame(sessionID uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, sessionID)
	return SGFrame(SGSessionSetBegin, buf...)
}

// PieFrame wraps a Special Pie message with the frame markers.
func PieFrame(msgType byte, payload ...byte) []byte {
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, PieHead0, PieHead1, msgType)
	buf = append(buf, payload...)
	return append(buf, PieHead1, PieHead0)
}

// PieSessionStartFrame encodes SESSION_START.
func PieSessionStartFrame(sessionID uint8) []byte {
	return PieFrame(PieSessionStart, sessionID)
}

// PieSessionStopFrame encodes SESSION_STOP.
func PieSessionStopFrame(sessionID uint8) []byte {
	return PieFrame(PieSessionStop, sessionID)
}

// PieShotFrame encodes SHOT_DETECTED the way the device does:
// F8 F9 36 00 SEC CS SHOT CHK F9 F8, with a 0-based shot number.
// Decoders don't verify CHK.
func PieShotFrame(seconds, centis, shotNumber uint8) []byte {
	chk := PieShotDetected ^ seconds ^ centis ^ shotNumber
	return PieFrame(PieShotDetected, 0, seconds, centis, shotNumber, chk)
}
