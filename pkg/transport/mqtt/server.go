package mqtt

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"

	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs/pb"
)

// DefaultPollInterval is how often served links are checked.
const DefaultPollInterval = time.Second

// RadioServer exposes a local transport as a remote radio.
type RadioServer struct {
	Broker         Broker
	Transport      device.Transport
	ConnectTimeout time.Duration
	PollInterval   time.Duration

	lock  sync.Mutex
	links map[string]device.Link
}

// NewRadioServer creates a RadioServer.
func NewRadioServer(b Broker, t device.Transport) *RadioServer {
	return &RadioServer{
		Broker:         b,
		Transport:      t,
		ConnectTimeout: 10 * time.Second,
		PollInterval:   DefaultPollInterval,
		links:          make(map[string]device.Link),
	}
}

// Run implements Runnable.
func (s *RadioServer) Run(ctx context.Context) error {
	var subs []io.Closer
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
		s.closeLinks()
	}()
	subscribe := func(topic string, h Handler) error {
		sub, err := s.Broker.Subscribe(topic, h)
		if err == nil {
			subs = append(subs, sub)
		}
		return err
	}
	connect := func(topic string, _ []byte) { go s.handleConnect(ctx, topic) }
	errs := &fx.AggregatedError{}
	errs.Add(subscribe(TopicScan, s.handleScan))
	errs.Add(subscribe(PeerTopic("+", OpConnect), connect))
	errs.Add(subscribe(PeerTopic("+", OpDisconnect), s.handleDisconnect))
	for _, op := range []string{OpSubscribe, OpWrite, OpRead} {
		errs.Add(subscribe(PeerTopic("+", op)+"/+/+", s.handleCharOp))
	}
	if err := errs.Aggregate(); err != nil {
		return err
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *RadioServer) publish(topic string, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err == nil {
		err = s.Broker.Publish(topic, data)
	}
	if err != nil {
		glog.Warningf("radio server: publish %s: %v", topic, err)
	}
}

func (s *RadioServer) handleScan(_ string, payload []byte) {
	var ctl pb.ScanControl
	if err := proto.Unmarshal(payload, &ctl); err != nil {
		glog.Warningf("radio server: bad scan control: %v", err)
		return
	}
	var err error
	if ctl.Enable {
		err = s.Transport.StartScan(func(peer device.Peer) {
			s.publish(TopicAdv, AdvertisementFrom(peer))
		})
	} else {
		err = s.Transport.StopScan()
	}
	if err != nil {
		glog.Warningf("radio server: scan %v: %v", ctl.Enable, err)
	}
}

func (s *RadioServer) handleConnect(ctx context.Context, topic string) {
	address, _, ok := ParsePeerTopic(topic)
	if !ok {
		return
	}
	s.dropLink(address)
	connCtx, cancel := context.WithTimeout(ctx, s.ConnectTimeout)
	defer cancel()
	link, err := s.Transport.Connect(connCtx, address)
	if err != nil {
		glog.Warningf("radio server: connect %s: %v", address, err)
		s.publish(PeerTopic(address, OpLink), &pb.LinkStatus{Address: address, Error: err.Error()})
		return
	}
	s.lock.Lock()
	s.links[address] = link
	s.lock.Unlock()
	glog.Infof("radio server: connected %s", address)
	s.publish(PeerTopic(address, OpLink), &pb.LinkStatus{Address: address, Connected: true})
}

func (s *RadioServer) handleDisconnect(topic string, _ []byte) {
	if address, _, ok := ParsePeerTopic(topic); ok {
		s.dropLink(address)
	}
}

func (s *RadioServer) link(address string) device.Link {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.links[address]
}

func (s *RadioServer) handleCharOp(topic string, payload []byte) {
	address, op, service, char, ok := ParseCharTopic(topic)
	if !ok {
		return
	}
	res := &pb.Result{Op: op}
	var err error
	if link := s.link(address); link == nil {
		err = device.ErrNotConnected
	} else {
		switch op {
		case OpSubscribe:
			err = link.Subscribe(service, char, s.notifier(address, service, char))
		case OpWrite:
			err = link.Write(service, char, payload)
		case OpRead:
			res.Value, err = link.Read(service, char)
		}
	}
	if err != nil {
		res.Error = err.Error()
	}
	s.publish(CharTopic(address, OpResult, service, char), res)
}

func (s *RadioServer) notifier(address string, service, char uuid.UUID) func([]byte) {
	topic := CharTopic(address, OpNotify, service, char)
	return func(data []byte) {
		if err := s.Broker.Publish(topic, data); err != nil {
			glog.Warningf("radio server: notify %s: %v", address, err)
		}
	}
}

func (s *RadioServer) poll() {
	var lost []string
	s.lock.Lock()
	for address, link := range s.links {
		if !link.Connected() {
			lost = append(lost, address)
		}
	}
	s.lock.Unlock()
	for _, address := range lost {
		glog.Infof("radio server: link lost %s", address)
		s.dropLink(address)
		s.publish(PeerTopic(address, OpLink), &pb.LinkStatus{Address: address})
	}
}

func (s *RadioServer) dropLink(address string) {
	s.lock.Lock()
	link := s.links[address]
	delete(s.links, address)
	s.lock.Unlock()
	if link != nil {
		if err := link.Close(); err != nil {
			glog.Warningf("radio server: close %s: %v", address, err)
		}
	}
}

func (s *RadioServer) closeLinks() error {
	s.lock.Lock()
	links := s.links
	s.links = make(map[string]device.Link)
	s.lock.Unlock()
	errs := &fx.AggregatedError{}
	for _, link := range links {
		errs.Add(link.Close())
	}
	return errs.Aggregate()
}
