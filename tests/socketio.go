package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// EventTimeout bounds how long a SocketClient waits for an expected event.
var EventTimeout = 2 * time.Second

type (
	// Event is an inbound Socket.IO event. Payload is nil for events without arguments.
	Event struct {
		Name    string
		Payload json.RawMessage
	}

	OpenPacket struct {
		SID          string   `json:"sid"`
		Upgrades     []string `json:"upgrades"`
		PingInterval int64    `json:"pingInterval"`
		PingTimeout  int64    `json:"pingTimeout"`
		MaxPayload   int64    `json:"maxPayload"`
	}

	// SocketClient is a minimal websocket-only Socket.IO client for tests.
	SocketClient struct {
		ID   string // socket id given by the namespace connect
		Open OpenPacket

		ws      *websocket.Conn
		writeMu sync.Mutex
		events  chan Event
		frames  chan string // non-event frames, eg. connect errors
		done    chan struct{}
	}
)

// SocketURL turns the base URL of an HTTP test server into its Socket.IO endpoint.
func SocketURL(baseURL, path string) string {
	u := strings.Replace(baseURL, "http", "ws", 1)
	return u + path + "?EIO=4&transport=websocket"
}

// DialSocket opens a session on url and connects the default namespace.
func DialSocket(t *testing.T, url string) *SocketClient {
	t.Helper()
	c := DialEngine(t, url)
	c.Send(t, "40")
	frame := c.NextFrame(t)
	if !strings.HasPrefix(frame, "40") {
		t.Fatalf("DialSocket(): want a connect packet, got %q", frame)
	}
	c.ID = gjson.Get(frame[2:], "sid").String()
	if c.ID == "" {
		t.Fatalf("DialSocket(): no sid in %q", frame)
	}
	return c
}

// DialEngine opens an Engine.IO session without connecting any namespace.
func DialEngine(t *testing.T, url string) *SocketClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("DialEngine(): %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(EventTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("DialEngine(): reading open packet: %v", err)
	}
	if len(data) == 0 || data[0] != '0' {
		t.Fatalf("DialEngine(): want an open packet, got %q", data)
	}
	_ = ws.SetReadDeadline(time.Time{})

	c := newSocketClient(t, ws)
	if err = json.Unmarshal(data[1:], &c.Open); err != nil {
		t.Fatalf("DialEngine(): %v", err)
	}
	return c
}

func newSocketClient(t *testing.T, ws *websocket.Conn) *SocketClient {
	c := &SocketClient{
		ws:     ws,
		events: make(chan Event, 256),
		frames: make(chan string, 256),
		done:   make(chan struct{}),
	}
	go c.read()
	t.Cleanup(c.Close)
	return c
}

func (c *SocketClient) read() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(data)
		switch {
		case frame == "2":
			_ = c.write("3")
		case strings.HasPrefix(frame, "42"):
			args := gjson.Parse(frame[2:]).Array()
			if len(args) == 0 {
				continue
			}
			ev := Event{Name: args[0].String()}
			if len(args) > 1 {
				ev.Payload = json.RawMessage(args[1].Raw)
			}
			c.events <- ev
		default:
			c.frames <- frame
		}
	}
}

func (c *SocketClient) write(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Send writes a raw frame.
func (c *SocketClient) Send(t *testing.T, frame string) {
	t.Helper()
	if err := c.write(frame); err != nil {
		t.Fatalf("Send(): %v", err)
	}
}

// Emit sends an event. payload is sent as is when it is a string, JSON-encoded otherwise.
func (c *SocketClient) Emit(t *testing.T, event string, payload interface{}) {
	t.Helper()
	var raw json.RawMessage
	switch p := payload.(type) {
	case string:
		raw = json.RawMessage(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("Emit(): %v", err)
		}
		raw = data
	}
	data, err := json.Marshal([]interface{}{event, raw})
	if err != nil {
		t.Fatalf("Emit(): %v", err)
	}
	c.Send(t, "42"+string(data))
}

// Expect waits for the next event and checks its name.
func (c *SocketClient) Expect(t *testing.T, event string) Event {
	t.Helper()
	select {
	case ev := <-c.events:
		if ev.Name != event {
			t.Fatalf("Expect(): want %q, got %q %s", event, ev.Name, ev.Payload)
		}
		return ev
	case <-time.After(EventTimeout):
		t.Fatalf("Expect(): no %q event within %s", event, EventTimeout)
	}
	return Event{}
}

// ExpectNone checks that no event arrives within d.
func (c *SocketClient) ExpectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-c.events:
		t.Fatalf("ExpectNone(): got %q %s", ev.Name, ev.Payload)
	case <-time.After(d):
	}
}

// NextFrame waits for the next frame that is not an event nor a ping.
func (c *SocketClient) NextFrame(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-c.frames:
		return frame
	case <-time.After(EventTimeout):
		t.Fatalf("NextFrame(): no frame within %s", EventTimeout)
	}
	return ""
}

// WaitClosed waits until the server closes the session.
func (c *SocketClient) WaitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(EventTimeout):
		t.Fatalf("WaitClosed(): session still open after %s", EventTimeout)
	}
}

func (c *SocketClient) Close() {
	_ = c.ws.Close()
	<-c.done
}

// PollingURL turns the base URL of an HTTP test server into its long-polling endpoint.
func PollingURL(baseURL, path string) string {
	return baseURL + path + "?EIO=4&transport=polling"
}

// PollingClient is a minimal long-polling Socket.IO client for tests.
type PollingClient struct {
	ID   string
	Open OpenPacket

	url     string // session URL
	pending []string
}

// DialPolling opens a long-polling session on url.
func DialPolling(t *testing.T, url string) *PollingClient {
	t.Helper()
	code, body := doRequest(t, http.MethodGet, url, "")
	if code != http.StatusOK || !strings.HasPrefix(body, "0") {
		t.Fatalf("DialPolling(): want an open packet, got %d %q", code, body)
	}
	c := &PollingClient{}
	if err := json.Unmarshal([]byte(body[1:]), &c.Open); err != nil {
		t.Fatalf("DialPolling(): %v", err)
	}
	c.url = url + "&sid=" + c.Open.SID
	return c
}

// SessionURL is the long-polling URL of the session, sid included.
func (c *PollingClient) SessionURL() string {
	return c.url
}

// Do sends a raw request on the session URL and returns the status code and body.
func (c *PollingClient) Do(t *testing.T, method, body string) (int, string) {
	t.Helper()
	return doRequest(t, method, c.url, body)
}

// Post sends frames in one payload.
func (c *PollingClient) Post(t *testing.T, frames ...string) {
	t.Helper()
	code, body := c.Do(t, http.MethodPost, strings.Join(frames, "\x1e"))
	if code != http.StatusOK || body != "ok" {
		t.Fatalf("Post(): got %d %q", code, body)
	}
}

// Poll issues one long-polling GET and returns its frames.
func (c *PollingClient) Poll(t *testing.T) []string {
	t.Helper()
	code, body := c.Do(t, http.MethodGet, "")
	if code != http.StatusOK {
		t.Fatalf("Poll(): got %d %q", code, body)
	}
	return strings.Split(body, "\x1e")
}

// Expect polls until a frame starting with prefix arrives, answering pings on the way.
func (c *PollingClient) Expect(t *testing.T, prefix string) string {
	t.Helper()
	deadline := time.Now().Add(EventTimeout)
	for time.Now().Before(deadline) {
		if len(c.pending) == 0 {
			c.pending = c.Poll(t)
		}
		frame := c.pending[0]
		c.pending = c.pending[1:]
		switch {
		case frame == "2":
			c.Post(t, "3")
		case strings.HasPrefix(frame, prefix):
			return frame
		}
	}
	t.Fatalf("Expect(): no %q frame within %s", prefix, EventTimeout)
	return ""
}

// Connect connects the default namespace.
func (c *PollingClient) Connect(t *testing.T) {
	t.Helper()
	c.Post(t, "40")
	frame := c.Expect(t, "40")
	c.ID = gjson.Get(frame[2:], "sid").String()
	if c.ID == "" {
		t.Fatalf("Connect(): no sid in %q", frame)
	}
}

// Upgrade moves the session to a websocket with the upgrade handshake and returns the websocket client.
func (c *PollingClient) Upgrade(t *testing.T) *SocketClient {
	t.Helper()
	url := strings.Replace(strings.Replace(c.url, "http", "ws", 1), "transport=polling", "transport=websocket", 1)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Upgrade(): %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(EventTimeout))
	if err = ws.WriteMessage(websocket.TextMessage, []byte("2probe")); err != nil {
		t.Fatalf("Upgrade(): %v", err)
	}
	if _, data, err := ws.ReadMessage(); err != nil || string(data) != "3probe" {
		t.Fatalf("Upgrade(): want 3probe, got %q %v", data, err)
	}
	if err = ws.WriteMessage(websocket.TextMessage, []byte("5")); err != nil {
		t.Fatalf("Upgrade(): %v", err)
	}
	_ = ws.SetReadDeadline(time.Time{})

	sc := newSocketClient(t, ws)
	sc.ID = c.ID
	sc.Open = c.Open
	return sc
}

func doRequest(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp.StatusCode, string(data)
}
