package protocol

import (
	"encoding/binary"
	"errors"
)

// Shot list constants of the SG Timer.
const (
	ShotListRecordLen        = 6
	ShotListEnd       uint32 = 0xFFFFFFFF
	// MaxShotListReads caps the number of records read per request.
	MaxShotListReads = 100
)

// ErrShortRecord indicates a shot list read returned less than a record.
var ErrShortRecord = errors.New("shot list record too short")

// ShotRecord is one entry of the shot list.
type ShotRecord struct {
	// ShotNumber is 1-based like timer.ShotEvent.
	ShotNumber uint16
	TimeMs     uint32
}

// ShotListRequest encodes the write selecting the session to read.
func ShotListRequest(sessionID uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, sessionID)
	return buf
}

// ParseShotListRequest decodes a ShotListRequest.
func ParseShotListRequest(buf []byte) (uint32, bool) {
	if len(buf) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf), true
}

// ParseShotRecord decodes a record read from the shot list characteristic.
// end is true on the end of list marker.
func ParseShotRecord(buf []byte) (rec ShotRecord, end bool, err error) {
	if len(buf) < ShotListRecordLen {
		return rec, false, ErrShortRecord
	}
	rec.TimeMs = binary.BigEndian.Uint32(buf[2:])
	if rec.TimeMs == ShotListEnd {
		return rec, true, nil
	}
	rec.ShotNumber = binary.BigEndian.Uint16(buf) + 1
	return rec, false, nil
}

// EncodeShotRecord encodes a record as the device does.
func EncodeShotRecord(rec ShotRecord) []byte {
	buf := make([]byte, ShotListRecordLen)
	if rec.ShotNumber > 0 {
		binary.BigEndian.PutUint16(buf, rec.ShotNumber-1)
	}
	binary.BigEndian.PutUint32(buf[2:], rec.TimeMs)
	return buf
}

// ShotListEndRecord is the end of list marker.
func ShotListEndRecord() []byte {
	return EncodeShotRecord(ShotRecord{TimeMs: ShotListEnd})
}
