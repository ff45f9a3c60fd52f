package msgs

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs/pb"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
)

// Message Kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

// Envelope wraps a message with type information.
type Envelope struct {
	pb.Envelope
}

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// ErrNotSerializable indicates the message is not serializable.
var ErrNotSerializable = errors.New("not serializable message")

// SerializableMessage can be serialized over the wire.
type SerializableMessage interface {
	NewMessage() fx.Message
	TypeID() uint32
	Serializable() proto.Message
}

// MessageTypes are predefined mapping of type ID to messages.
var MessageTypes = map[uint32]SerializableMessage{
	ShotTypeID:        (*Shot)(nil),
	SessionTypeID:     (*Session)(nil),
	ConnectionTypeID:  (*Connection)(nil),
	StateChangeTypeID: (*StateChange)(nil),
	ShotListTypeID:    (*ShotList)(nil),
	DisplayTypeID:     (*Display)(nil),
	ButtonPressTypeID: (*ButtonPress)(nil),
}

// EnvelopeFrom creates an Envelope from a serializable message.
func EnvelopeFrom(msg fx.Message) (*Envelope, error) {
	s, ok := msg.(SerializableMessage)
	if !ok {
		return nil, ErrNotSerializable
	}
	data, err := proto.Marshal(s.Serializable())
	if err != nil {
		return nil, err
	}
	return &Envelope{Envelope: pb.Envelope{TypeId: s.TypeID(), Message: data}}, nil
}

// Encode encodes a serializable message into envelope bytes.
func Encode(msg fx.Message) ([]byte, error) {
	env, err := EnvelopeFrom(msg)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// Decode decodes the envelope into actual message.
func (e Envelope) Decode() (fx.Message, error) {
	msgType, ok := MessageTypes[e.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: e.TypeId}
	}
	msg := msgType.NewMessage()
	if err := proto.Unmarshal(e.Message, msg.(SerializableMessage).Serializable()); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Envelope to bytes.
func (e Envelope) Encode() ([]byte, error) {
	return proto.Marshal(&e.Envelope)
}

// Kind gets message kind from type ID.
func (e Envelope) Kind() uint32 {
	return e.TypeId & TypeIDMaskKind
}

// IsEvent determines if the message is an event.
func (e Envelope) IsEvent() bool {
	return e.Kind() == TypeIDKindEvent
}

// DecodeEnvelope decodes bytes into Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := proto.Unmarshal(data, &env.Envelope); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeMessage decodes envelope bytes into the actual message.
func DecodeMessage(data []byte) (fx.Message, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return env.Decode()
}
