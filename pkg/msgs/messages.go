package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs/pb"
	"github.com/robotalks/shotbridge/pkg/timer"
	"github.com/robotalks/shotbridge/pkg/timer/protocol"
)

// TypeID Groups
const (
	GroupDevice  uint32 = 0x00010000
	GroupBridge  uint32 = 0x00020000
	GroupControl uint32 = 0x00030000
)

// TypeIDs
const (
	ShotTypeID        uint32 = TypeIDKindEvent | GroupDevice | 0x0001
	SessionTypeID     uint32 = TypeIDKindEvent | GroupDevice | 0x0002
	ConnectionTypeID  uint32 = TypeIDKindEvent | GroupDevice | 0x0003
	ShotListTypeID    uint32 = TypeIDKindEvent | GroupDevice | 0x0004
	StateChangeTypeID uint32 = TypeIDKindEvent | GroupBridge | 0x0001
	DisplayTypeID     uint32 = TypeIDKindEvent | GroupBridge | 0x0002
	ButtonPressTypeID uint32 = TypeIDKindCommand | GroupControl | 0x0001
)

// Shot event.
type Shot struct {
	pb.Shot
}

// ShotFrom converts a shot event.
func ShotFrom(e timer.ShotEvent) *Shot {
	return &Shot{Shot: *shotPb(e)}
}

func shotPb(e timer.ShotEvent) *pb.Shot {
	return &pb.Shot{
		SessionId:      e.SessionID,
		ShotNumber:     uint32(e.ShotNumber),
		AbsoluteTimeMs: e.AbsoluteTimeMs,
		SplitTimeMs:    e.SplitTimeMs,
		DetectedAtMs:   e.DetectedAtMs(),
		DeviceModel:    e.DeviceModel,
		IsFirstShot:    e.IsFirstShot,
	}
}

// NewMessage implements SerializableMessage.
func (m *Shot) NewMessage() fx.Message { return &Shot{} }

// TypeID implements SerializableMessage.
func (m *Shot) TypeID() uint32 { return ShotTypeID }

// Serializable implements SerializableMessage.
func (m *Shot) Serializable() proto.Message { return &m.Shot }

// Session event.
type Session struct {
	pb.Session
}

// SessionFrom converts a session lifecycle event.
func SessionFrom(kind timer.EventKind, s timer.Session) *Session {
	return &Session{Session: *sessionPb(kind.String(), s)}
}

func sessionPb(event string, s timer.Session) *pb.Session {
	return &pb.Session{
		Event:             event,
		SessionId:         s.SessionID,
		IsActive:          s.IsActive,
		TotalShots:        uint32(s.TotalShots),
		StartTimestampMs:  s.StartTimestampMs(),
		StartDelaySeconds: s.StartDelaySeconds,
	}
}

// NewMessage implements SerializableMessage.
func (m *Session) NewMessage() fx.Message { return &Session{} }

// TypeID implements SerializableMessage.
func (m *Session) TypeID() uint32 { return SessionTypeID }

// Serializable implements SerializableMessage.
func (m *Session) Serializable() proto.Message { return &m.Session }

// Connection event.
type Connection struct {
	pb.Connection
}

// ConnectionFrom creates a Connection event.
func ConnectionFrom(state timer.ConnectionState, peerName, peerAddress string) *Connection {
	return &Connection{Connection: pb.Connection{
		State:       state.String(),
		PeerName:    peerName,
		PeerAddress: peerAddress,
	}}
}

// NewMessage implements SerializableMessage.
func (m *Connection) NewMessage() fx.Message { return &Connection{} }

// TypeID implements SerializableMessage.
func (m *Connection) TypeID() uint32 { return ConnectionTypeID }

// Serializable implements SerializableMessage.
func (m *Connection) Serializable() proto.Message { return &m.Connection }

// ShotList event.
type ShotList struct {
	pb.ShotList
}

// ShotListFrom creates a ShotList event.
func ShotListFrom(sessionID uint32, records []protocol.ShotRecord, err error) *ShotList {
	m := &ShotList{ShotList: pb.ShotList{SessionId: sessionID}}
	for _, r := range records {
		m.Records = append(m.Records, &pb.ShotRecord{ShotNumber: uint32(r.ShotNumber), TimeMs: r.TimeMs})
	}
	if err != nil {
		m.Error = err.Error()
	}
	return m
}

// NewMessage implements SerializableMessage.
func (m *ShotList) NewMessage() fx.Message { return &ShotList{} }

// TypeID implements SerializableMessage.
func (m *ShotList) TypeID() uint32 { return ShotListTypeID }

// Serializable implements SerializableMessage.
func (m *ShotList) Serializable() proto.Message { return &m.ShotList }

// StateChange event.
type StateChange struct {
	pb.StateChange
}

// StateChangeFrom creates a StateChange event.
func StateChangeFrom(from, to, reason string, at time.Time) *StateChange {
	return &StateChange{StateChange: pb.StateChange{
		From:   from,
		To:     to,
		Reason: reason,
		AtMs:   fx.Millis(at),
	}}
}

// NewMessage implements SerializableMessage.
func (m *StateChange) NewMessage() fx.Message { return &StateChange{} }

// TypeID implements SerializableMessage.
func (m *StateChange) TypeID() uint32 { return StateChangeTypeID }

// Serializable implements SerializableMessage.
func (m *StateChange) Serializable() proto.Message { return &m.StateChange }

// Display kinds.
const (
	DisplayStartup    = "startup"
	DisplayConnection = "connection"
	DisplayCountdown  = "countdown"
	DisplayWaiting    = "waiting"
	DisplayShot       = "shot"
	DisplaySessionEnd = "session_end"
)

// Display event mirrors a presentation signal.
type Display struct {
	pb.Display
}

// DisplayStartupMsg creates the startup signal.
func DisplayStartupMsg() *Display {
	return &Display{Display: pb.Display{Kind: DisplayStartup}}
}

// DisplayConnectionMsg creates a connection signal.
func DisplayConnectionMsg(state timer.ConnectionState, peerName string) *Display {
	return &Display{Display: pb.Display{
		Kind:       DisplayConnection,
		Connection: &pb.Connection{State: state.String(), PeerName: peerName},
	}}
}

// DisplaySessionMsg creates a countdown or waiting signal.
func DisplaySessionMsg(kind string, s timer.Session) *Display {
	return &Display{Display: pb.Display{Kind: kind, Session: sessionPb("", s)}}
}

// DisplayShotMsg creates a shot signal.
func DisplayShotMsg(e timer.ShotEvent) *Display {
	return &Display{Display: pb.Display{Kind: DisplayShot, Shot: shotPb(e)}}
}

// DisplaySessionEndMsg creates a session end signal.
func DisplaySessionEndMsg(s timer.Session, lastShotNumber uint16) *Display {
	return &Display{Display: pb.Display{
		Kind:           DisplaySessionEnd,
		Session:        sessionPb("", s),
		LastShotNumber: uint32(lastShotNumber),
	}}
}

// NewMessage implements SerializableMessage.
func (m *Display) NewMessage() fx.Message { return &Display{} }

// TypeID implements SerializableMessage.
func (m *Display) TypeID() uint32 { return DisplayTypeID }

// Serializable implements SerializableMessage.
func (m *Display) Serializable() proto.Message { return &m.Display }

// ButtonPress command.
type ButtonPress struct {
	pb.ButtonPress
}

// NewMessage implements SerializableMessage.
func (m *ButtonPress) NewMessage() fx.Message { return &ButtonPress{} }

// TypeID implements SerializableMessage.
func (m *ButtonPress) TypeID() uint32 { return ButtonPressTypeID }

// Serializable implements SerializableMessage.
func (m *ButtonPress) Serializable() proto.Message { return &m.ButtonPress }
