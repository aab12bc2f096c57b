package collab

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/sameeradaveen/lms-new-main/core"
)

// Service handles the connection lifecycle and relays mutation events.
// It is not safe for concurrent use: all calls must come from a single event loop (see Hub).
type Service struct {
	registry   Registry
	transport  Transport
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
	observer   Observer
}

func NewService(
	registry Registry,
	transport Transport,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	observer Observer,
) *Service {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Service{
		registry:   registry,
		transport:  transport,
		validate:   validate,
		translator: translator,
		logger:     logger,
		observer:   observer,
	}
}

// HandleJoinRequest registers connID in the requested room.
// A username already held by an online member of the room is answered with a username-exists
// notice and ErrUsernameExists; the connection stays open and may retry with another name.
func (svc *Service) HandleJoinRequest(connID string, req JoinRequest) error {
	req.Clean()
	if err := req.Validate(svc.validate); err != nil {
		return errors.Wrap(core.TranslateValidationErrors(err, svc.translator), "validating join request")
	}

	if _, err := svc.registry.FindByConnectionID(connID); err == nil {
		return ErrAlreadyJoined
	} else if errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "finding connection")
	}

	members, err := svc.registry.ListByRoom(req.RoomID)
	if err != nil {
		return errors.Wrap(err, "listing room")
	}
	for _, m := range members {
		if m.Username == req.Username && m.IsOnline() {
			svc.emit(connID, EventUsernameExists, nil)
			svc.observer.JoinRejected(req.RoomID)
			return ErrUsernameExists
		}
	}

	conn := NewConnection(connID, req)
	if err = svc.registry.AddConnection(conn); err != nil {
		return errors.Wrap(err, "adding connection")
	}
	if err = svc.transport.JoinRoom(connID, conn.RoomID); err != nil {
		// the socket went away meanwhile: no registry entry without a transport mapping
		if rmErr := svc.registry.RemoveConnection(connID); rmErr != nil {
			svc.logger.Error("collab: rolling back join", rmErr, conn)
		}
		return errors.Wrap(err, "joining delivery group")
	}

	users, err := svc.registry.ListByRoom(conn.RoomID)
	if err != nil {
		return errors.Wrap(err, "listing room")
	}
	svc.broadcast(conn, EventUserJoined, UserPayload{User: conn})
	svc.emit(connID, EventJoinAccepted, JoinAcceptedPayload{User: conn, Users: users})
	svc.observer.ConnectionJoined(conn.RoomID)
	svc.logger.Debug(fmt.Sprintf("collab: %s joined room %s", conn.Username, conn.RoomID), conn)
	return nil
}

// HandleDisconnect removes connID from the registry and notifies the rest of its room.
// Unknown connections (never joined, or already cleaned up) are ignored.
func (svc *Service) HandleDisconnect(connID string) error {
	conn, err := svc.registry.FindByConnectionID(connID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding connection")
	}

	svc.broadcast(conn, EventUserDisconnected, UserPayload{User: conn})
	if err = svc.registry.RemoveConnection(connID); err != nil {
		return errors.Wrap(err, "removing connection")
	}
	if err = svc.transport.LeaveRoom(connID, conn.RoomID); err != nil {
		svc.logger.Debug("collab: leaving delivery group", err, conn)
	}
	svc.observer.ConnectionLeft(conn.RoomID)
	svc.logger.Debug(fmt.Sprintf("collab: %s left room %s", conn.Username, conn.RoomID), conn)
	return nil
}

// Roster returns the records of the room in join order.
func (svc *Service) Roster(roomID string) ([]Connection, error) {
	users, err := svc.registry.ListByRoom(core.CleanString(roomID))
	return users, errors.Wrap(err, "listing room")
}

func (svc *Service) Rooms() ([]RoomSummary, error) {
	rooms, err := svc.registry.ListRooms()
	return rooms, errors.Wrap(err, "listing rooms")
}

// emit sends to a single connection. Delivery failures only concern that connection.
func (svc *Service) emit(connID, event string, payload interface{}) {
	if err := svc.transport.Emit(connID, event, payload); err != nil {
		svc.logger.Debug(fmt.Sprintf("collab: emitting %s to %s", event, connID), err)
		return
	}
	svc.observer.EventRelayed(event, 1)
}

// broadcast sends to every other connection of sender's room.
func (svc *Service) broadcast(sender Connection, event string, payload interface{}) {
	n, err := svc.transport.BroadcastToRoom(sender.RoomID, sender.ConnectionID, event, payload)
	if err != nil {
		svc.logger.Debug(fmt.Sprintf("collab: broadcasting %s to room %s", event, sender.RoomID), err, sender)
	}
	svc.observer.EventRelayed(event, n)
}
