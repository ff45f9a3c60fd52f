package mqtt

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/timer"
	"github.com/robotalks/shotbridge/pkg/transport/mqtt"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fakeBroker struct {
	lock sync.Mutex
	pubs []published
	subs map[string]mqtt.Handler
}

func (b *fakeBroker) Subscribe(topic string, h mqtt.Handler) (io.Closer, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.subs == nil {
		b.subs = make(map[string]mqtt.Handler)
	}
	b.subs[topic] = h
	return nopCloser{}, nil
}

func (b *fakeBroker) Publish(topic string, payload []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.pubs = append(b.pubs, published{topic: topic, payload: payload})
	return nil
}

func (b *fakeBroker) PublishRetained(topic string, payload []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.pubs = append(b.pubs, published{topic: topic, payload: payload, retained: true})
	return nil
}

func (b *fakeBroker) last(t *testing.T) published {
	b.lock.Lock()
	defer b.lock.Unlock()
	require.NotEmpty(t, b.pubs)
	return b.pubs[len(b.pubs)-1]
}

func TestPublisherMeta(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b, "range1", Meta{Description: "lane 1", Transport: "sim"})
	require.NoError(t, p.PublishMeta())
	pub := b.last(t)
	require.Equal(t, "range1/meta", pub.topic)
	require.True(t, pub.retained)
	var meta Meta
	require.NoError(t, json.Unmarshal(pub.payload, &meta))
	require.Equal(t, "lane 1", meta.Description)
	require.Equal(t, "sim", meta.Transport)

	require.NoError(t, p.ClearMeta())
	pub = b.last(t)
	require.True(t, pub.retained)
	require.Empty(t, pub.payload)
}

func TestPublisherDisplay(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b, "range1", Meta{})
	p.ShowShotData(timer.ShotEvent{SessionID: 7, ShotNumber: 2, AbsoluteTimeMs: 5500, SplitTimeMs: 1500})
	pub := b.last(t)
	require.Equal(t, "range1/display", pub.topic)
	msg, err := msgs.DecodeMessage(pub.payload)
	require.NoError(t, err)
	display, ok := msg.(*msgs.Display)
	require.True(t, ok)
	require.Equal(t, msgs.DisplayShot, display.Kind)
	require.EqualValues(t, 2, display.Shot.ShotNumber)
	require.EqualValues(t, 1500, display.Shot.SplitTimeMs)

	p.ShowSessionEnd(timer.Session{SessionID: 7, TotalShots: 2, StartedAt: time.Unix(100, 0)}, 2)
	msg, err = msgs.DecodeMessage(b.last(t).payload)
	require.NoError(t, err)
	display = msg.(*msgs.Display)
	require.Equal(t, msgs.DisplaySessionEnd, display.Kind)
	require.EqualValues(t, 2, display.LastShotNumber)
}

func TestPublisherEvents(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b, "range1", Meta{})
	p.PublishEvent(msgs.ConnectionFrom(timer.Connected, "SG Timer", "aa:bb"))
	pub := b.last(t)
	require.Equal(t, "range1/events", pub.topic)
	env, err := msgs.DecodeEnvelope(pub.payload)
	require.NoError(t, err)
	require.True(t, env.IsEvent())
	require.EqualValues(t, msgs.ConnectionTypeID, env.TypeId)
}

func TestPublisherButton(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b, "range1", Meta{})
	var sources []string
	require.NoError(t, p.SubscribeButton(func(source string) { sources = append(sources, source) }))
	h := b.subs["range1/button"]
	require.NotNil(t, h)

	press := &msgs.ButtonPress{}
	press.Source = "remote"
	data, err := msgs.Encode(press)
	require.NoError(t, err)
	h("range1/button", data)
	h("range1/button", []byte{0xff})
	data, err = msgs.Encode(msgs.DisplayStartupMsg())
	require.NoError(t, err)
	h("range1/button", data)
	require.Equal(t, []string{"remote"}, sources)
}
