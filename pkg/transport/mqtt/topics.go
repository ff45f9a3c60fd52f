package mqtt

import (
	"strings"

	"github.com/google/uuid"
)

// Radio topics, relative to the queue prefix.
const (
	TopicRadio = "radio/"
	TopicAdv   = TopicRadio + "adv"
	TopicScan  = TopicRadio + "scan"
)

// Link operations carried in topics.
const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpLink       = "link"
	OpSubscribe  = "subscribe"
	OpNotify     = "notify"
	OpWrite      = "write"
	OpRead       = "read"
	OpResult     = "result"
)

// PeerTopic is the topic of an operation on a peer.
func PeerTopic(address, op string) string {
	return TopicRadio + address + "/" + op
}

// CharTopic is the topic of an operation on a characteristic.
func CharTopic(address, op string, service, char uuid.UUID) string {
	return PeerTopic(address, op) + "/" + service.String() + "/" + char.String()
}

// ParseCharTopic splits radio/<addr>/<op>/<service>/<char>.
func ParseCharTopic(topic string) (address, op string, service, char uuid.UUID, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 5 || items[0] != "radio" {
		return
	}
	var err error
	if service, err = uuid.Parse(items[3]); err != nil {
		return
	}
	if char, err = uuid.Parse(items[4]); err != nil {
		return
	}
	return items[1], items[2], service, char, true
}

// ParsePeerTopic splits radio/<addr>/<op>.
func ParsePeerTopic(topic string) (address, op string, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[0] != "radio" {
		return
	}
	return items[1], items[2], true
}
