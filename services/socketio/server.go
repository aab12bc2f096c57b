package socketio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

var (
	ErrConnectionNotFound = errors.New("socket connection not found")
	ErrServerClosed       = errors.New("socket server closed")
)

// Engine.IO handshake error codes
const (
	codeTransportUnknown   = 0
	codeUnknownSID         = 1
	codeBadHandshakeMethod = 2
	codeBadRequest         = 3
	codeForbidden          = 4
	codeUnsupportedVersion = 5
)

const (
	transportWebsocket = "websocket"
	transportPolling   = "polling"
)

// EventHandler consumes the inbound traffic of every socket.
type EventHandler interface {
	// Dispatch is called in arrival order, never concurrently for one socket.
	Dispatch(connID, event string, payload []byte)
	// Disconnect is called once per socket, after its last Dispatch.
	Disconnect(connID string)
}

// Server is a Socket.IO server for the default namespace, over websocket or long-polling
// with upgrade to websocket. It is also the collab.Transport: delivery groups are keyed by room ID.
type Server struct {
	conf          core.RealtimeConfig
	pollWait      time.Duration
	upgrader      websocket.Upgrader
	originAllowed func(r *http.Request) bool
	logger        core.Logger

	mu      sync.RWMutex
	handler EventHandler
	conns   map[string]*conn // by socket id
	sids    map[string]*conn // by engine session id
	rooms   map[string]map[string]*conn
	closed  bool
	wg      sync.WaitGroup
}

var _ collab.Transport = (*Server)(nil)

func NewServer(conf *core.Config, logger core.Logger) *Server {
	rtConf := conf.Realtime
	if rtConf.SendQueueSize < 1 {
		rtConf.SendQueueSize = 1
	}
	if rtConf.PingInterval <= 0 {
		rtConf.PingInterval = 25 * time.Second
	}
	if rtConf.WriteTimeout <= 0 {
		rtConf.WriteTimeout = 10 * time.Second
	}

	// a long poll must answer before the HTTP server's write timeout
	pollWait := rtConf.PingInterval
	if wt := conf.Server.WriteTimeout; wt > 0 && wt/2 < pollWait {
		pollWait = wt / 2
	}

	s := &Server{
		conf:          rtConf,
		pollWait:      pollWait,
		originAllowed: checkOrigin(conf.Server.AllowedOrigins),
		logger:        logger,
		conns:         make(map[string]*conn),
		sids:          make(map[string]*conn),
		rooms:         make(map[string]map[string]*conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}
	return s
}

// SetHandler sets the consumer of inbound events. It must be set before serving.
func (s *Server) SetHandler(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Server) eventHandler() EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// ConnectionCount returns the number of open sessions.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" {
		handshakeError(w, http.StatusBadRequest, codeUnsupportedVersion, "Unsupported protocol version")
		return
	}
	transport := q.Get("transport")
	if transport != transportWebsocket && transport != transportPolling {
		handshakeError(w, http.StatusBadRequest, codeTransportUnknown, "Transport unknown")
		return
	}

	sid := q.Get("sid")
	if sid == "" {
		if transport == transportWebsocket {
			s.serveWebsocket(w, r)
			return
		}
		if r.Method != http.MethodGet {
			handshakeError(w, http.StatusBadRequest, codeBadHandshakeMethod, "Bad handshake method")
			return
		}
		if !s.originAllowed(r) {
			handshakeError(w, http.StatusForbidden, codeForbidden, "Forbidden")
			return
		}
		s.servePolling(w)
		return
	}

	c := s.session(sid)
	if c == nil {
		handshakeError(w, http.StatusBadRequest, codeUnknownSID, "Session ID unknown")
		return
	}
	switch {
	case transport == transportWebsocket:
		s.serveUpgrade(w, r, c)
	case r.Method == http.MethodGet:
		c.poll(w, r)
	case r.Method == http.MethodPost:
		c.post(w, r)
	default:
		handshakeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
	}
}

// serveWebsocket opens a session directly over a websocket.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("socketio: upgrading connection", err)
		return
	}

	c := newConn(s)
	c.upgraded = true
	if err = s.attach(c); err != nil {
		_ = ws.Close()
		return
	}
	c.enqueue(encodeOpen(s.openPayload(c, []string{})))

	go c.run()
	go c.writePump(ws)
	go c.readPump(ws)
}

// servePolling opens a long-polling session: the response body is the open packet.
func (s *Server) servePolling(w http.ResponseWriter) {
	c := newConn(s)
	if err := s.attach(c); err != nil {
		handshakeError(w, http.StatusServiceUnavailable, codeBadRequest, "Server closed")
		return
	}
	go c.run()
	writePayload(w, [][]byte{encodeOpen(s.openPayload(c, []string{transportWebsocket}))})
}

// serveUpgrade accepts the websocket a long-polling session upgrades to.
func (s *Server) serveUpgrade(w http.ResponseWriter, r *http.Request, c *conn) {
	c.mu.Lock()
	busy := c.upgraded || c.switching
	if !busy {
		c.switching = true
	}
	c.mu.Unlock()
	if busy {
		handshakeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("socketio: upgrading session "+c.sid, err)
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
		return
	}
	go c.upgrade(ws)
}

func (s *Server) openPayload(c *conn, upgrades []string) openPayload {
	return openPayload{
		SID:          c.sid,
		Upgrades:     upgrades,
		PingInterval: s.conf.PingInterval.Milliseconds(),
		PingTimeout:  s.conf.PingTimeout.Milliseconds(),
		MaxPayload:   s.conf.MaxPayload,
	}
}

func (s *Server) session(sid string) *conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sids[sid]
}

func (s *Server) attach(c *conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	s.conns[c.id] = c
	s.sids[c.sid] = c
	s.wg.Add(1)
	return nil
}

// detach reports the disconnect, then forgets the session.
func (s *Server) detach(c *conn) {
	defer s.wg.Done()
	if h := s.eventHandler(); h != nil {
		h.Disconnect(c.id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for roomID := range c.rooms {
		s.leave(c, roomID)
	}
	delete(s.conns, c.id)
	delete(s.sids, c.sid)
}

// Close drops every session and waits for their disconnects to be handled.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, c := range s.conns {
		c.close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) Emit(connID, event string, payload interface{}) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[connID]
	if !ok {
		return errors.Wrap(ErrConnectionNotFound, connID)
	}
	if !c.enqueue(frame) {
		return errors.Errorf("socketio: %s is closing", connID)
	}
	return nil
}

func (s *Server) BroadcastToRoom(roomID, exceptConnID, event string, payload interface{}) (int, error) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for id, c := range s.rooms[roomID] {
		if id == exceptConnID {
			continue
		}
		if c.enqueue(frame) {
			n++
		} else {
			s.logger.Debug(fmt.Sprintf("socketio: %s is closing, %s not sent", id, event))
		}
	}
	return n, nil
}

func (s *Server) JoinRoom(connID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connID]
	if !ok {
		return errors.Wrap(ErrConnectionNotFound, connID)
	}
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]*conn)
		s.rooms[roomID] = members
	}
	members[connID] = c
	c.rooms[roomID] = struct{}{}
	return nil
}

// LeaveRoom is a no-op for sockets already gone.
func (s *Server) LeaveRoom(connID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[connID]; ok {
		s.leave(c, roomID)
	}
	return nil
}

// leave removes c from a delivery group. Caller holds the write lock.
func (s *Server) leave(c *conn, roomID string) {
	delete(c.rooms, roomID)
	if members, ok := s.rooms[roomID]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(s.rooms, roomID)
		}
	}
}

func handshakeError(w http.ResponseWriter, status, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{code, msg})
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
