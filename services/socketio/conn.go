package socketio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// conn is one Engine.IO session, served over long-polling until upgraded, or over a websocket.
// Outbound frames are buffered in queue and drained in order by whichever transport carries the session.
type conn struct {
	id  string // socket id
	sid string // engine session id
	srv *Server

	mu        sync.Mutex
	queue     [][]byte
	fullSince time.Time // when queue last reached SendQueueSize; zero while below
	lastSeen  time.Time
	polling   bool // a long-polling GET is pending
	switching bool // a websocket is checking the path for upgrade
	upgrading bool // check answered, waiting for the upgrade packet
	upgraded  bool // frames flow over the websocket

	wake      chan struct{} // frames queued or transport state changed
	closed    chan struct{} // the session is ending
	done      chan struct{} // Disconnect reported and session forgotten
	closeOnce sync.Once

	inbound   sync.Mutex // serializes inbound frames
	gone      bool       // guarded by inbound
	connected bool       // namespace connected; guarded by inbound

	rooms map[string]struct{} // guarded by Server.mu
}

func newConn(s *Server) *conn {
	return &conn{
		id:       uuid.New().String(),
		sid:      uuid.New().String(),
		srv:      s,
		lastSeen: time.Now(),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// enqueue buffers a frame for the peer. It only fails once the session is closing:
// a peer whose queue stayed full for longer than WriteTimeout is closed here.
func (c *conn) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return false
	default:
	}

	if len(c.queue) >= c.srv.conf.SendQueueSize {
		now := time.Now()
		if c.fullSince.IsZero() {
			c.fullSince = now
		} else if now.Sub(c.fullSince) > c.srv.conf.WriteTimeout {
			c.srv.logger.Debug(fmt.Sprintf("socketio: send queue of %s full for %s, closing", c.id, now.Sub(c.fullSince)))
			c.close()
			return false
		}
	}
	c.queue = append(c.queue, frame)
	c.signal()
	return true
}

// take empties the queue.
func (c *conn) take() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.takeLocked()
}

func (c *conn) takeLocked() [][]byte {
	frames := c.queue
	c.queue = nil
	c.fullSince = time.Time{}
	return frames
}

func (c *conn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *conn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// close ends the session; run then reports the disconnect and the transports shut down.
func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// stale tells why the session should be dropped, if it should.
func (c *conn) stale(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	conf := c.srv.conf
	if now.Sub(c.lastSeen) > conf.PingInterval+conf.PingTimeout {
		return "heartbeat timeout"
	}
	if !c.fullSince.IsZero() && now.Sub(c.fullSince) > conf.WriteTimeout {
		return "send queue full"
	}
	return ""
}

// run pings the peer until the session closes, then tears it down.
// It is the only caller of Server.detach, so the handler hears of each session once.
func (c *conn) run() {
	ticker := time.NewTicker(c.srv.conf.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			c.inbound.Lock()
			c.gone = true
			c.inbound.Unlock()

			c.srv.detach(c)
			close(c.done)
			return
		case now := <-ticker.C:
			if reason := c.stale(now); reason != "" {
				c.srv.logger.Debug(fmt.Sprintf("socketio: dropping %s: %s", c.id, reason))
				c.close()
				continue
			}
			c.enqueue([]byte{enginePing})
		}
	}
}

// receive handles one inbound frame and tells whether the session goes on.
func (c *conn) receive(frame []byte) bool {
	c.inbound.Lock()
	defer c.inbound.Unlock()
	if c.gone {
		return false
	}
	return c.handle(frame)
}

func (c *conn) handle(frame []byte) bool {
	s := c.srv
	p, err := decodePacket(frame)
	if err != nil {
		s.logger.Debug(fmt.Sprintf("socketio: bad packet from %s", c.id), err)
		return true
	}

	switch p.engineType {
	case engineClose:
		return false
	case enginePing:
		c.enqueue(append([]byte{enginePong}, p.data...))
		return true
	case engineMessage:
	default:
		return true
	}

	if p.namespace != defaultNamespace {
		if p.socketType == socketConnect {
			c.enqueue(encodeConnectError(p.namespace, "Invalid namespace"))
		}
		return true
	}

	switch p.socketType {
	case socketConnect:
		if !c.connected {
			c.connected = true
			c.enqueue(encodeConnect(c.id))
		}
	case socketDisconnect:
		return false
	case socketEvent:
		if !c.connected {
			return true
		}
		event, payload, err := decodeEvent(p.data)
		if err != nil {
			s.logger.Debug(fmt.Sprintf("socketio: bad event from %s", c.id), err)
			return true
		}
		if h := s.eventHandler(); h != nil {
			h.Dispatch(c.id, event, payload)
		}
	case socketBinaryEvent, socketBinaryAck:
		s.logger.Debug(fmt.Sprintf("socketio: binary packet from %s, closing", c.id))
		return false
	}
	return true
}
