// Package mqtt publishes bridge events and display signals to a broker.
package mqtt

import (
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/timer"
	"github.com/robotalks/shotbridge/pkg/transport/mqtt"
)

// Broker is what the Publisher needs from the queue.
type Broker interface {
	mqtt.Broker
	PublishRetained(topic string, payload []byte) error
}

// Meta describes the bridge, published retained on <id>/meta.
type Meta struct {
	Description string            `json:"description,omitempty"`
	Transport   string            `json:"transport,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Topic leaves under the bridge ID.
const (
	TopicMeta    = "meta"
	TopicEvents  = "events"
	TopicDisplay = "display"
	TopicButton  = "button"
)

// SetWill clears the meta of the bridge when its connection drops.
func SetWill(opts *paho.ClientOptions, topicPrefix, id string) {
	opts.SetBinaryWill(topicPrefix+id+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("shotbridge:" + id)
	}
}

// Publisher implements present.Presenter on a broker and publishes
// domain events.
type Publisher struct {
	Broker Broker
	ID     string

	metaJSON []byte
}

// NewPublisher creates a Publisher.
func NewPublisher(b Broker, id string, meta Meta) *Publisher {
	data, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	return &Publisher{Broker: b, ID: id, metaJSON: data}
}

func (p *Publisher) topic(leaf string) string {
	return p.ID + "/" + leaf
}

// PublishMeta publishes the retained meta, called on every connect.
func (p *Publisher) PublishMeta() error {
	return p.Broker.PublishRetained(p.topic(TopicMeta), p.metaJSON)
}

// ClearMeta removes the retained meta.
func (p *Publisher) ClearMeta() error {
	return p.Broker.PublishRetained(p.topic(TopicMeta), nil)
}

// PublishEvent publishes a serializable message on <id>/events.
func (p *Publisher) PublishEvent(msg fx.Message) {
	p.publish(TopicEvents, msg)
}

func (p *Publisher) publish(leaf string, msg fx.Message) {
	data, err := msgs.Encode(msg)
	if err == nil {
		err = p.Broker.Publish(p.topic(leaf), data)
	}
	if err != nil {
		glog.Warningf("publish %s: %v", leaf, err)
	}
}

// SubscribeButton calls fn on every press published to <id>/button.
func (p *Publisher) SubscribeButton(fn func(source string)) error {
	_, err := p.Broker.Subscribe(p.topic(TopicButton), func(_ string, payload []byte) {
		msg, err := msgs.DecodeMessage(payload)
		if err != nil {
			glog.Warningf("bad button message: %v", err)
			return
		}
		if press, ok := msg.(*msgs.ButtonPress); ok {
			fn(press.Source)
		}
	})
	return err
}

// ShowStartup implements present.Presenter.
func (p *Publisher) ShowStartup() {
	p.publish(TopicDisplay, msgs.DisplayStartupMsg())
}

// ShowConnectionState implements present.Presenter.
func (p *Publisher) ShowConnectionState(state timer.ConnectionState, peerName string) {
	p.publish(TopicDisplay, msgs.DisplayConnectionMsg(state, peerName))
}

// ShowCountdown implements present.Presenter.
func (p *Publisher) ShowCountdown(session timer.Session) {
	p.publish(TopicDisplay, msgs.DisplaySessionMsg(msgs.DisplayCountdown, session))
}

// ShowWaitingForShots implements present.Presenter.
func (p *Publisher) ShowWaitingForShots(session timer.Session) {
	p.publish(TopicDisplay, msgs.DisplaySessionMsg(msgs.DisplayWaiting, session))
}

// ShowShotData implements present.Presenter.
func (p *Publisher) ShowShotData(shot timer.ShotEvent) {
	p.publish(TopicDisplay, msgs.DisplayShotMsg(shot))
}

// ShowSessionEnd implements present.Presenter.
func (p *Publisher) ShowSessionEnd(session timer.Session, lastShotNumber uint16) {
	p.publish(TopicDisplay, msgs.DisplaySessionEndMsg(session, lastShotNumber))
}
