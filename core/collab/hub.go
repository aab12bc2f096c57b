package collab

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sameeradaveen/lms-new-main/core"
)

type actionKind int

const (
	actionEvent actionKind = iota
	actionDisconnect
	actionQuery
)

type action struct {
	kind    actionKind
	connID  string
	event   string
	payload []byte
	query   func(svc *Service)
	done    chan struct{} // closed once processed, when set
}

// Hub is the single event-processing loop: it owns the Service (and so the registry)
// and runs every event, disconnect and read against it one at a time, in arrival order.
type Hub struct {
	svc     *Service
	logger  core.Logger
	actions chan action
	stopped chan struct{}
}

func NewHub(svc *Service, logger core.Logger, queueSize int) *Hub {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Hub{
		svc:     svc,
		logger:  logger,
		actions: make(chan action, queueSize),
		stopped: make(chan struct{}),
	}
}

// Run processes actions until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case act := <-h.actions:
			h.process(act)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch queues an inbound event from connID. Events from one connection must be
// dispatched from a single goroutine to keep their order.
func (h *Hub) Dispatch(connID, event string, payload []byte) {
	if !h.submit(action{kind: actionEvent, connID: connID, event: event, payload: payload}) {
		h.logger.Debug(fmt.Sprintf("collab.hub: stopped, %s from %s dropped", event, connID))
	}
}

// Disconnect queues the disconnect of connID and waits until it has been processed,
// so that the transport can be torn down after the registry entry is gone.
func (h *Hub) Disconnect(connID string) {
	done := make(chan struct{})
	if !h.submit(action{kind: actionDisconnect, connID: connID, done: done}) {
		return
	}
	select {
	case <-done:
	case <-h.stopped:
	}
}

// Roster returns a snapshot of the room's records, read from within the loop.
func (h *Hub) Roster(roomID string) ([]Connection, error) {
	var users []Connection
	var err error
	if qErr := h.query(func(svc *Service) { users, err = svc.Roster(roomID) }); qErr != nil {
		return nil, qErr
	}
	return users, err
}

// Rooms returns a snapshot of the non-empty rooms, read from within the loop.
func (h *Hub) Rooms() ([]RoomSummary, error) {
	var rooms []RoomSummary
	var err error
	if qErr := h.query(func(svc *Service) { rooms, err = svc.Rooms() }); qErr != nil {
		return nil, qErr
	}
	return rooms, err
}

func (h *Hub) query(fn func(svc *Service)) error {
	done := make(chan struct{})
	if !h.submit(action{kind: actionQuery, query: fn, done: done}) {
		return ErrHubStopped
	}
	select {
	case <-done:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	}
}

// submit queues act unless the loop has stopped.
func (h *Hub) submit(act action) bool {
	select {
	case <-h.stopped:
		return false
	default:
	}
	select {
	case h.actions <- act:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) process(act action) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(fmt.Sprintf("collab.hub: panic processing %q from %s: %v", act.event, act.connID, r))
		}
		if act.done != nil {
			close(act.done)
		}
	}()

	var err error
	switch act.kind {
	case actionQuery:
		act.query(h.svc)
	case actionDisconnect:
		err = errors.Wrap(h.svc.HandleDisconnect(act.connID), "disconnecting")
	default:
		err = h.svc.HandleEvent(act.connID, act.event, act.payload)
	}
	if err == nil {
		return
	}

	// dropped events are never reported to clients; keep them for diagnostics only
	msg := fmt.Sprintf("collab.hub: %s from %s: %v", act.event, act.connID, err)
	if errors.Cause(err) == ErrUsernameExists {
		h.logger.Info(msg)
	} else {
		h.logger.Debug(msg, err)
	}
}
