package collab_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
	logsvc "github.com/sameeradaveen/lms-new-main/services/logger"
	"github.com/sameeradaveen/lms-new-main/storage/presence/inmem"
)

type message struct {
	to      string
	event   string
	payload string
}

// transportMock records deliveries and keeps the delivery groups in memory.
type transportMock struct {
	mu      sync.Mutex
	rooms   map[string][]string
	sent    []message
	joinErr error
	panicOn string // event whose delivery panics
}

var _ collab.Transport = (*transportMock)(nil)

func newTransportMock() *transportMock {
	return &transportMock{rooms: make(map[string][]string)}
}

func (tr *transportMock) record(to, event string, payload interface{}) {
	if event == tr.panicOn {
		panic("delivering " + event)
	}
	data := "null"
	if payload != nil {
		b, _ := json.Marshal(payload)
		data = string(b)
	}
	tr.sent = append(tr.sent, message{to: to, event: event, payload: data})
}

func (tr *transportMock) Emit(connID, event string, payload interface{}) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.record(connID, event, payload)
	return nil
}

func (tr *transportMock) BroadcastToRoom(roomID, exceptConnID, event string, payload interface{}) (int, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var n int
	for _, id := range tr.rooms[roomID] {
		if id != exceptConnID {
			tr.record(id, event, payload)
			n++
		}
	}
	return n, nil
}

func (tr *transportMock) JoinRoom(connID, roomID string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.joinErr != nil {
		return tr.joinErr
	}
	tr.rooms[roomID] = append(tr.rooms[roomID], connID)
	return nil
}

func (tr *transportMock) LeaveRoom(connID, roomID string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	members := tr.rooms[roomID]
	for i, id := range members {
		if id == connID {
			tr.rooms[roomID] = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	return nil
}

// received returns the messages delivered to connID, in order.
func (tr *transportMock) received(connID string) []message {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var msgs []message
	for _, m := range tr.sent {
		if m.to == connID {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func (tr *transportMock) reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sent = nil
}

// observerMock counts the observed outcomes.
type observerMock struct {
	mu       sync.Mutex
	joined   int
	left     int
	rejected int
	relayed  map[string]int
	dropped  map[string]string // event -> last reason
}

var _ collab.Observer = (*observerMock)(nil)

func newObserverMock() *observerMock {
	return &observerMock{relayed: make(map[string]int), dropped: make(map[string]string)}
}

func (o *observerMock) ConnectionJoined(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined++
}

func (o *observerMock) ConnectionLeft(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left++
}

func (o *observerMock) JoinRejected(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func (o *observerMock) EventRelayed(event string, recipients int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.relayed[event] += recipients
}

func (o *observerMock) EventDropped(event, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped[event] = reason
}

type fixture struct {
	svc       *collab.Service
	registry  collab.Registry
	transport *transportMock
	observer  *observerMock
}

func setup(t *testing.T) fixture {
	db, err := inmem.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	collab.InitValidators(validate, translator)

	f := fixture{
		registry:  inmem.NewRegistry(db),
		transport: newTransportMock(),
		observer:  newObserverMock(),
	}
	f.svc = collab.NewService(f.registry, f.transport, validate, translator, logsvc.NewDiscardLogger(), f.observer)
	return f
}

func (f fixture) join(t *testing.T, connID, roomID, username string) collab.Connection {
	if err := f.svc.HandleJoinRequest(connID, collab.JoinRequest{RoomID: roomID, Username: username}); err != nil {
		t.Fatalf("join() failed: %v", err)
	}
	conn, err := f.registry.FindByConnectionID(connID)
	if err != nil {
		t.Fatalf("join() failed: %v", err)
	}
	return conn
}

func (f fixture) roster(t *testing.T, roomID string) []string {
	users, err := f.registry.ListByRoom(roomID)
	if err != nil {
		t.Fatalf("roster() failed: %v", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ConnectionID)
	}
	return ids
}

func mustMarshal(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("mustMarshal() failed: %v", err)
	}
	return string(data)
}
