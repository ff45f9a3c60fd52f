package mqtt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"

	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs/pb"
)

// DefaultRequestTimeout bounds a request to the remote radio.
const DefaultRequestTimeout = 5 * time.Second

// Radio implements device.Transport with a remote radio reached
// through the broker.
type Radio struct {
	Broker         Broker
	RequestTimeout time.Duration

	lock  sync.Mutex
	adv   io.Closer
	found func(device.Peer)
	links map[*radioLink]struct{}
}

// NewRadio creates a Radio.
func NewRadio(b Broker) *Radio {
	return &Radio{Broker: b, RequestTimeout: DefaultRequestTimeout}
}

var remoteErrors = []error{
	device.ErrServiceNotFound,
	device.ErrCharacteristicNotFound,
	device.ErrNotifyUnsupported,
	device.ErrNotConnected,
	device.ErrUnsupported,
}

// remoteError restores sentinel errors reported by the remote radio.
func remoteError(msg string) error {
	if msg == "" {
		return nil
	}
	for _, err := range remoteErrors {
		if err.Error() == msg {
			return err
		}
	}
	return errors.New(msg)
}

func (r *Radio) timeout() time.Duration {
	if r.RequestTimeout > 0 {
		return r.RequestTimeout
	}
	return DefaultRequestTimeout
}

func (r *Radio) publish(topic string, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	return r.Broker.Publish(topic, data)
}

// StartScan implements device.Transport.
func (r *Radio) StartScan(found func(device.Peer)) error {
	r.lock.Lock()
	r.found = found
	if r.adv == nil {
		sub, err := r.Broker.Subscribe(TopicAdv, r.handleAdv)
		if err != nil {
			r.lock.Unlock()
			return err
		}
		r.adv = sub
	}
	r.lock.Unlock()
	return r.publish(TopicScan, &pb.ScanControl{Enable: true})
}

// StopScan implements device.Transport.
func (r *Radio) StopScan() error {
	r.lock.Lock()
	adv := r.adv
	r.adv, r.found = nil, nil
	r.lock.Unlock()
	errs := &fx.AggregatedError{}
	errs.Add(r.publish(TopicScan, &pb.ScanControl{Enable: false}))
	if adv != nil {
		errs.Add(adv.Close())
	}
	return errs.Aggregate()
}

func (r *Radio) handleAdv(_ string, payload []byte) {
	var adv pb.Advertisement
	if err := proto.Unmarshal(payload, &adv); err != nil {
		glog.Warningf("radio: bad advertisement: %v", err)
		return
	}
	r.lock.Lock()
	found := r.found
	r.lock.Unlock()
	if found != nil {
		found(PeerFromAdvertisement(&adv))
	}
}

// PeerFromAdvertisement converts an advertisement, services which are
// not valid UUIDs are skipped.
func PeerFromAdvertisement(adv *pb.Advertisement) device.Peer {
	peer := device.Peer{Address: adv.Address, Name: adv.Name, RSSI: int(adv.Rssi)}
	for _, s := range adv.Services {
		if id, err := uuid.Parse(s); err == nil {
			peer.Services = append(peer.Services, id)
		}
	}
	return peer
}

// AdvertisementFrom converts a peer into an advertisement.
func AdvertisementFrom(peer device.Peer) *pb.Advertisement {
	adv := &pb.Advertisement{Address: peer.Address, Name: peer.Name, Rssi: int32(peer.RSSI)}
	for _, s := range peer.Services {
		adv.Services = append(adv.Services, s.String())
	}
	return adv
}

// Connect implements device.Transport.
func (r *Radio) Connect(ctx context.Context, address string) (device.Link, error) {
	link := &radioLink{radio: r, address: address}
	statusCh := make(chan *pb.LinkStatus, 1)
	sub, err := r.Broker.Subscribe(PeerTopic(address, OpLink), func(_ string, payload []byte) {
		var st pb.LinkStatus
		if err := proto.Unmarshal(payload, &st); err != nil {
			glog.Warningf("radio: bad link status from %s: %v", address, err)
			return
		}
		if !st.Connected {
			atomic.StoreInt32(&link.connected, 0)
		}
		select {
		case statusCh <- &st:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	link.subs = append(link.subs, sub)
	if err := r.Broker.Publish(PeerTopic(address, OpConnect), nil); err != nil {
		sub.Close()
		return nil, err
	}
	select {
	case st := <-statusCh:
		if !st.Connected {
			sub.Close()
			if st.Error == "" {
				st.Error = "refused"
			}
			return nil, fmt.Errorf("connect %s: %s", address, st.Error)
		}
	case <-ctx.Done():
		link.Close()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
	atomic.StoreInt32(&link.connected, 1)
	r.lock.Lock()
	if r.links == nil {
		r.links = make(map[*radioLink]struct{})
	}
	r.links[link] = struct{}{}
	r.lock.Unlock()
	return link, nil
}

// DropLinks marks all links lost, used when the broker connection is
// lost.
func (r *Radio) DropLinks() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for link := range r.links {
		atomic.StoreInt32(&link.connected, 0)
	}
}

// DropLinksOnDisconnect drops the links whenever the queue loses the
// broker. The link status published meanwhile is never received.
func (r *Radio) DropLinksOnDisconnect(q *Queue) {
	prev := q.OnDisconnect
	q.OnDisconnect = func(q *Queue) {
		glog.Warning("broker lost, dropping radio links")
		r.DropLinks()
		if prev != nil {
			prev(q)
		}
	}
}

type radioLink struct {
	radio     *Radio
	address   string
	connected int32

	reqLock sync.Mutex
	lock    sync.Mutex
	subs    []io.Closer
	closed  bool
}

// request sends an operation on a characteristic and waits for the result.
func (l *radioLink) request(op string, service, char uuid.UUID, data []byte) ([]byte, error) {
	if !l.Connected() {
		return nil, device.ErrNotConnected
	}
	l.reqLock.Lock()
	defer l.reqLock.Unlock()
	resultCh := make(chan *pb.Result, 1)
	sub, err := l.radio.Broker.Subscribe(CharTopic(l.address, OpResult, service, char), func(_ string, payload []byte) {
		var res pb.Result
		if err := proto.Unmarshal(payload, &res); err != nil || res.Op != op {
			return
		}
		select {
		case resultCh <- &res:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer sub.Close()
	if err := l.radio.Broker.Publish(CharTopic(l.address, op, service, char), data); err != nil {
		return nil, err
	}
	select {
	case res := <-resultCh:
		return res.Value, remoteError(res.Error)
	case <-time.After(l.radio.timeout()):
		return nil, ErrTimeout
	}
}

// Subscribe implements device.Link.
func (l *radioLink) Subscribe(service, char uuid.UUID, fn func([]byte)) error {
	sub, err := l.radio.Broker.Subscribe(CharTopic(l.address, OpNotify, service, char), func(_ string, payload []byte) {
		fn(payload)
	})
	if err != nil {
		return err
	}
	if _, err := l.request(OpSubscribe, service, char, nil); err != nil {
		sub.Close()
		return err
	}
	l.lock.Lock()
	l.subs = append(l.subs, sub)
	l.lock.Unlock()
	return nil
}

// Write implements device.Link.
func (l *radioLink) Write(service, char uuid.UUID, data []byte) error {
	_, err := l.request(OpWrite, service, char, data)
	return err
}

// Read implements device.Link.
func (l *radioLink) Read(service, char uuid.UUID) ([]byte, error) {
	return l.request(OpRead, service, char, nil)
}

// Connected implements device.Link.
func (l *radioLink) Connected() bool {
	return atomic.LoadInt32(&l.connected) != 0
}

// Close implements device.Link.
func (l *radioLink) Close() error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return nil
	}
	l.closed = true
	subs := l.subs
	l.subs = nil
	l.lock.Unlock()

	atomic.StoreInt32(&l.connected, 0)
	l.radio.lock.Lock()
	delete(l.radio.links, l)
	l.radio.lock.Unlock()

	errs := &fx.AggregatedError{}
	errs.Add(l.radio.Broker.Publish(PeerTopic(l.address, OpDisconnect), nil))
	for _, sub := range subs {
		errs.Add(sub.Close())
	}
	return errs.Aggregate()
}
