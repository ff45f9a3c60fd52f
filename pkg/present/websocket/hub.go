// Package websocket serves display signals to browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/msgs/pb"
	"github.com/robotalks/shotbridge/pkg/timer"
)

// SendQueueSize is the number of frames buffered per client.
const SendQueueSize = 64

// Frame is the JSON sent for every display signal.
type Frame struct {
	Type    string      `json:"type"`
	Display *pb.Display `json:"display,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump is the only writer of the connection.
func (c *client) writePump() {
	for data := range c.send {
		if err := websocket.Message.Send(c.conn, string(data)); err != nil {
			glog.V(2).Infof("websocket %s: %v", c.conn.Request().RemoteAddr, err)
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	c.conn.Close()
}

// Hub implements present.Presenter by broadcasting JSON frames to
// all connected clients. A client joining late first receives the
// latest frame.
type Hub struct {
	lock    sync.RWMutex
	clients map[*client]struct{}
	last    []byte
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Handler returns the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, SendQueueSize)}
	h.lock.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.lock.Unlock()
	go c.writePump()

	// Incoming messages are ignored, reading only detects the close.
	var discard []byte
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) remove(c *client) {
	h.lock.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.lock.Unlock()
}

// Broadcast sends a display message to every client. Clients with a
// full queue are dropped.
func (h *Hub) Broadcast(msg *msgs.Display) {
	data, err := json.Marshal(&Frame{Type: "display", Display: &msg.Display})
	if err != nil {
		glog.Errorf("websocket marshal: %v", err)
		return
	}
	var slow []*client
	h.lock.Lock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.lock.Unlock()
	for _, c := range slow {
		glog.Warningf("websocket %s: too slow, dropped", c.conn.Request().RemoteAddr)
		h.remove(c)
	}
}

// Close disconnects all clients.
func (h *Hub) Close() error {
	h.lock.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.lock.Unlock()
	for c := range clients {
		close(c.send)
	}
	return nil
}

// ShowStartup implements present.Presenter.
func (h *Hub) ShowStartup() { h.Broadcast(msgs.DisplayStartupMsg()) }

// ShowConnectionState implements present.Presenter.
func (h *Hub) ShowConnectionState(state timer.ConnectionState, peerName string) {
	h.Broadcast(msgs.DisplayConnectionMsg(state, peerName))
}

// ShowCountdown implements present.Presenter.
func (h *Hub) ShowCountdown(session timer.Session) {
	h.Broadcast(msgs.DisplaySessionMsg(msgs.DisplayCountdown, session))
}

// ShowWaitingForShots implements present.Presenter.
func (h *Hub) ShowWaitingForShots(session timer.Session) {
	h.Broadcast(msgs.DisplaySessionMsg(msgs.DisplayWaiting, session))
}

// ShowShotData implements present.Presenter.
func (h *Hub) ShowShotData(shot timer.ShotEvent) {
	h.Broadcast(msgs.DisplayShotMsg(shot))
}

// ShowSessionEnd implements present.Presenter.
func (h *Hub) ShowSessionEnd(session timer.Session, lastShotNumber uint16) {
	h.Broadcast(msgs.DisplaySessionEndMsg(session, lastShotNumber))
}

// Server serves the hub over HTTP until the context is done.
type Server struct {
	Addr string
	Hub  *Hub
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/display", s.Hub.Handler())
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("display websocket on %s/display", s.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Hub.Close()
	srv.Shutdown(shutdownCtx)
	return ctx.Err()
}
