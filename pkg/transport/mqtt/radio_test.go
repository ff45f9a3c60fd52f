package mqtt

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/shotbridge/pkg/device"
	"github.com/robotalks/shotbridge/pkg/timer"
)

var (
	testService = uuid.MustParse("7520ffff-14d2-4cda-8b6b-697c554c9311")
	testChar    = uuid.MustParse("75200001-14d2-4cda-8b6b-697c554c9311")
)

type memSub struct {
	broker  *memBroker
	topic   string
	handler Handler
}

func (s *memSub) Close() error {
	s.broker.lock.Lock()
	defer s.broker.lock.Unlock()
	for n, sub := range s.broker.subs {
		if sub == s {
			s.broker.subs = append(s.broker.subs[:n], s.broker.subs[n+1:]...)
			break
		}
	}
	return nil
}

// memBroker delivers messages synchronously to matching subscribers.
type memBroker struct {
	lock sync.Mutex
	subs []*memSub
}

func (b *memBroker) Subscribe(topic string, handler Handler) (io.Closer, error) {
	sub := &memSub{broker: b, topic: topic, handler: handler}
	b.lock.Lock()
	b.subs = append(b.subs, sub)
	b.lock.Unlock()
	return sub, nil
}

func (b *memBroker) Publish(topic string, payload []byte) error {
	var handlers []Handler
	b.lock.Lock()
	for _, sub := range b.subs {
		if sub.topic == topic || (IsWildcard(sub.topic) && MatchTopic(topic, sub.topic)) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.lock.Unlock()
	for _, h := range handlers {
		h(topic, append([]byte(nil), payload...))
	}
	return nil
}

func (b *memBroker) count() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subs)
}

type localLink struct {
	lock      sync.Mutex
	connected bool
	notify    func([]byte)
	written   [][]byte
	value     []byte
	closed    int
}

func (l *localLink) Subscribe(service, char uuid.UUID, fn func([]byte)) error {
	if service != testService {
		return device.ErrServiceNotFound
	}
	l.lock.Lock()
	l.notify = fn
	l.lock.Unlock()
	return nil
}

func (l *localLink) Write(service, char uuid.UUID, data []byte) error {
	l.lock.Lock()
	l.written = append(l.written, data)
	l.lock.Unlock()
	return nil
}

func (l *localLink) Read(service, char uuid.UUID) ([]byte, error) {
	return l.value, nil
}

func (l *localLink) Connected() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.connected
}

func (l *localLink) Close() error {
	l.lock.Lock()
	l.connected = false
	l.closed++
	l.lock.Unlock()
	return nil
}

func (l *localLink) send(data []byte) {
	l.lock.Lock()
	fn := l.notify
	l.lock.Unlock()
	fn(data)
}

func (l *localLink) drop() {
	l.lock.Lock()
	l.connected = false
	l.lock.Unlock()
}

type localTransport struct {
	lock     sync.Mutex
	scanning bool
	peers    []device.Peer
	link     *localLink
}

func (t *localTransport) StartScan(found func(device.Peer)) error {
	t.lock.Lock()
	t.scanning = true
	peers := t.peers
	t.lock.Unlock()
	for _, p := range peers {
		found(p)
	}
	return nil
}

func (t *localTransport) StopScan() error {
	t.lock.Lock()
	t.scanning = false
	t.lock.Unlock()
	return nil
}

func (t *localTransport) isScanning() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.scanning
}

func (t *localTransport) Connect(ctx context.Context, address string) (device.Link, error) {
	if address != "aa:bb" {
		return nil, errors.New("no such peer")
	}
	t.link = &localLink{connected: true, value: []byte{1, 2, 3}}
	return t.link, nil
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startServer(t *testing.T, tr *localTransport) (*memBroker, *RadioServer, func()) {
	broker := &memBroker{}
	server := NewRadioServer(broker, tr)
	server.PollInterval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		server.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return broker.count() >= 6 })
	return broker, server, func() {
		cancel()
		<-done
	}
}

func TestRadioScan(t *testing.T) {
	tr := &localTransport{peers: []device.Peer{{
		Address:  "aa:bb",
		Name:     "SG-SST4-9",
		Services: []uuid.UUID{testService},
		RSSI:     -60,
	}}}
	broker, _, stop := startServer(t, tr)
	defer stop()

	radio := NewRadio(broker)
	var found []device.Peer
	require.NoError(t, radio.StartScan(func(p device.Peer) { found = append(found, p) }))
	require.True(t, tr.isScanning())
	require.Len(t, found, 1)
	require.Equal(t, tr.peers[0], found[0])

	require.NoError(t, radio.StopScan())
	require.False(t, tr.isScanning())
}

func TestRadioLink(t *testing.T) {
	tr := &localTransport{}
	broker, _, stop := startServer(t, tr)
	defer stop()

	radio := NewRadio(broker)
	_, err := radio.Connect(context.Background(), "cc:dd")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no such peer")

	link, err := radio.Connect(context.Background(), "aa:bb")
	require.NoError(t, err)
	require.True(t, link.Connected())

	err = link.Subscribe(testChar, testChar, func([]byte) {})
	require.Equal(t, device.ErrServiceNotFound, err)

	var received [][]byte
	require.NoError(t, link.Subscribe(testService, testChar, func(data []byte) {
		received = append(received, data)
	}))
	tr.link.send([]byte{0x06, 0x05, 0, 0, 0, 1})
	require.Equal(t, [][]byte{{0x06, 0x05, 0, 0, 0, 1}}, received)

	require.NoError(t, link.Write(testService, testChar, []byte{0, 0, 0, 7}))
	require.Equal(t, [][]byte{{0, 0, 0, 7}}, tr.link.written)

	value, err := link.Read(testService, testChar)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, value)

	tr.link.drop()
	waitFor(t, func() bool { return !link.Connected() })
	_, err = link.Read(testService, testChar)
	require.Equal(t, device.ErrNotConnected, err)
	require.NoError(t, link.Close())
	require.NoError(t, link.Close())
}

func TestRadioConnectTimeout(t *testing.T) {
	radio := NewRadio(&memBroker{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := radio.Connect(ctx, "aa:bb")
	require.Equal(t, ErrTimeout, err)
}

func TestRadioDropLinks(t *testing.T) {
	tr := &localTransport{}
	broker, _, stop := startServer(t, tr)
	defer stop()

	radio := NewRadio(broker)
	link, err := radio.Connect(context.Background(), "aa:bb")
	require.NoError(t, err)
	radio.DropLinks()
	require.False(t, link.Connected())
}

func TestRadioBrokerLostDisconnectsDevice(t *testing.T) {
	peer := device.Peer{Address: "aa:bb", Name: "SG-SST4-9", Services: []uuid.UUID{testService}}
	tr := &localTransport{peers: []device.Peer{peer}}
	broker, _, stop := startServer(t, tr)
	defer stop()

	q := NewQueue(paho.NewClientOptions(), "")
	var chained int
	q.OnDisconnect = func(*Queue) { chained++ }
	radio := NewRadio(broker)
	radio.DropLinksOnDisconnect(q)

	dev := device.New(radio)
	dev.Sleep = func(time.Duration) {}
	var states []timer.ConnectionState
	dev.OnConnectionStateChanged(func(s timer.ConnectionState) { states = append(states, s) })
	require.NoError(t, dev.Initialize())
	require.NoError(t, dev.Connect(peer))
	require.True(t, dev.IsConnected())

	q.onConnectionLost(q.Client, errors.New("broker gone"))
	require.Equal(t, 1, chained)
	dev.Update()
	dev.Update()
	require.Equal(t, timer.Disconnected, dev.State())
	require.False(t, dev.IsConnected())
	var lost int
	for _, s := range states {
		if s == timer.Disconnected {
			lost++
		}
	}
	require.Equal(t, 1, lost)
}

func TestRemoteError(t *testing.T) {
	require.NoError(t, remoteError(""))
	require.Equal(t, device.ErrCharacteristicNotFound, remoteError(device.ErrCharacteristicNotFound.Error()))
	require.EqualError(t, remoteError("boom"), "boom")
}
