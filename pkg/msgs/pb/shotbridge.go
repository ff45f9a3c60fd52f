// Package pb contains the protobuf messages exchanged by the bridge.
// The structs carry proto struct tags and are marshaled by reflection.
package pb

import (
	"github.com/golang/protobuf/proto"
)

// Envelope wraps an encoded message with its type.
type Envelope struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *Envelope) Reset()         { *m = Envelope{} }
func (m *Envelope) String() string { return proto.CompactTextString(m) }
func (*Envelope) ProtoMessage()    {}

// Shot is a detected shot.
type Shot struct {
	SessionId      uint32 `protobuf:"varint,1,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	ShotNumber     uint32 `protobuf:"varint,2,opt,name=shot_number,json=shotNumber,proto3" json:"shot_number,omitempty"`
	AbsoluteTimeMs uint32 `protobuf:"varint,3,opt,name=absolute_time_ms,json=absoluteTimeMs,proto3" json:"absolute_time_ms,omitempty"`
	SplitTimeMs    uint32 `protobuf:"varint,4,opt,name=split_time_ms,json=splitTimeMs,proto3" json:"split_time_ms,omitempty"`
	DetectedAtMs   uint64 `protobuf:"varint,5,opt,name=detected_at_ms,json=detectedAtMs,proto3" json:"detected_at_ms,omitempty"`
	DeviceModel    string `protobuf:"bytes,6,opt,name=device_model,json=deviceModel,proto3" json:"device_model,omitempty"`
	IsFirstShot    bool   `protobuf:"varint,7,opt,name=is_first_shot,json=isFirstShot,proto3" json:"is_first_shot,omitempty"`
}

func (m *Shot) Reset()         { *m = Shot{} }
func (m *Shot) String() string { return proto.CompactTextString(m) }
func (*Shot) ProtoMessage()    {}

// Session is a session lifecycle event.
type Session struct {
	Event             string  `protobuf:"bytes,1,opt,name=event,proto3" json:"event,omitempty"`
	SessionId         uint32  `protobuf:"varint,2,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	IsActive          bool    `protobuf:"varint,3,opt,name=is_active,json=isActive,proto3" json:"is_active,omitempty"`
	TotalShots        uint32  `protobuf:"varint,4,opt,name=total_shots,json=totalShots,proto3" json:"total_shots,omitempty"`
	StartTimestampMs  uint32  `protobuf:"varint,5,opt,name=start_timestamp_ms,json=startTimestampMs,proto3" json:"start_timestamp_ms,omitempty"`
	StartDelaySeconds float32 `protobuf:"fixed32,6,opt,name=start_delay_seconds,json=startDelaySeconds,proto3" json:"start_delay_seconds,omitempty"`
}

func (m *Session) Reset()         { *m = Session{} }
func (m *Session) String() string { return proto.CompactTextString(m) }
func (*Session) ProtoMessage()    {}

// Connection is a device connection state.
type Connection struct {
	State       string `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	PeerName    string `protobuf:"bytes,2,opt,name=peer_name,json=peerName,proto3" json:"peer_name,omitempty"`
	PeerAddress string `protobuf:"bytes,3,opt,name=peer_address,json=peerAddress,proto3" json:"peer_address,omitempty"`
}

func (m *Connection) Reset()         { *m = Connection{} }
func (m *Connection) String() string { return proto.CompactTextString(m) }
func (*Connection) ProtoMessage()    {}

// StateChange is a lifecycle transition of the bridge.
type StateChange struct {
	From   string `protobuf:"bytes,1,opt,name=from,proto3" json:"from,omitempty"`
	To     string `protobuf:"bytes,2,opt,name=to,proto3" json:"to,omitempty"`
	Reason string `protobuf:"bytes,3,opt,name=reason,proto3" json:"reason,omitempty"`
	AtMs   uint64 `protobuf:"varint,4,opt,name=at_ms,json=atMs,proto3" json:"at_ms,omitempty"`
}

func (m *StateChange) Reset()         { *m = StateChange{} }
func (m *StateChange) String() string { return proto.CompactTextString(m) }
func (*StateChange) ProtoMessage()    {}

// Display is a presentation signal.
type Display struct {
	Kind           string      `protobuf:"bytes,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Shot           *Shot       `protobuf:"bytes,2,opt,name=shot,proto3" json:"shot,omitempty"`
	Session        *Session    `protobuf:"bytes,3,opt,name=session,proto3" json:"session,omitempty"`
	Connection     *Connection `protobuf:"bytes,4,opt,name=connection,proto3" json:"connection,omitempty"`
	LastShotNumber uint32      `protobuf:"varint,5,opt,name=last_shot_number,json=lastShotNumber,proto3" json:"last_shot_number,omitempty"`
}

func (m *Display) Reset()         { *m = Display{} }
func (m *Display) String() string { return proto.CompactTextString(m) }
func (*Display) ProtoMessage()    {}

// ShotRecord is one entry of a stored shot list.
type ShotRecord struct {
	ShotNumber uint32 `protobuf:"varint,1,opt,name=shot_number,json=shotNumber,proto3" json:"shot_number,omitempty"`
	TimeMs     uint32 `protobuf:"varint,2,opt,name=time_ms,json=timeMs,proto3" json:"time_ms,omitempty"`
}

func (m *ShotRecord) Reset()         { *m = ShotRecord{} }
func (m *ShotRecord) String() string { return proto.CompactTextString(m) }
func (*ShotRecord) ProtoMessage()    {}

// ShotList is the stored shot list of a session.
type ShotList struct {
	SessionId uint32        `protobuf:"varint,1,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	Records   []*ShotRecord `protobuf:"bytes,2,rep,name=records,proto3" json:"records,omitempty"`
	Error     string        `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *ShotList) Reset()         { *m = ShotList{} }
func (m *ShotList) String() string { return proto.CompactTextString(m) }
func (*ShotList) ProtoMessage()    {}

// Advertisement is a peer seen by a radio.
type Advertisement struct {
	Address  string   `protobuf:"bytes,1,opt,name=address,proto3" json:"address,omitempty"`
	Name     string   `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Services []string `protobuf:"bytes,3,rep,name=services,proto3" json:"services,omitempty"`
	Rssi     int32    `protobuf:"zigzag32,4,opt,name=rssi,proto3" json:"rssi,omitempty"`
}

func (m *Advertisement) Reset()         { *m = Advertisement{} }
func (m *Advertisement) String() string { return proto.CompactTextString(m) }
func (*Advertisement) ProtoMessage()    {}

// ScanControl starts or stops scanning on a radio.
type ScanControl struct {
	Enable bool `protobuf:"varint,1,opt,name=enable,proto3" json:"enable,omitempty"`
}

func (m *ScanControl) Reset()         { *m = ScanControl{} }
func (m *ScanControl) String() string { return proto.CompactTextString(m) }
func (*ScanControl) ProtoMessage()    {}

// LinkStatus reports the link to a peer.
type LinkStatus struct {
	Address   string `protobuf:"bytes,1,opt,name=address,proto3" json:"address,omitempty"`
	Connected bool   `protobuf:"varint,2,opt,name=connected,proto3" json:"connected,omitempty"`
	Error     string `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *LinkStatus) Reset()         { *m = LinkStatus{} }
func (m *LinkStatus) String() string { return proto.CompactTextString(m) }
func (*LinkStatus) ProtoMessage()    {}

// Result answers a request made on a remote link.
type Result struct {
	Op    string `protobuf:"bytes,1,opt,name=op,proto3" json:"op,omitempty"`
	Error string `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
	Value []byte `protobuf:"bytes,3,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *Result) Reset()         { *m = Result{} }
func (m *Result) String() string { return proto.CompactTextString(m) }
func (*Result) ProtoMessage()    {}

// ButtonPress is a remote press of the reset button.
type ButtonPress struct {
	Source string `protobuf:"bytes,1,opt,name=source,proto3" json:"source,omitempty"`
}

func (m *ButtonPress) Reset()         { *m = ButtonPress{} }
func (m *ButtonPress) String() string { return proto.CompactTextString(m) }
func (*ButtonPress) ProtoMessage()    {}
