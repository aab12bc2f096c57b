package collab

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/volatiletech/null/v8"

	"github.com/sameeradaveen/lms-new-main/core"
)

// drop reasons reported to the Observer
const (
	reasonUnknownSender = "unknown_sender"
	reasonUnknownTarget = "unknown_target"
	reasonUnknownEvent  = "unknown_event"
	reasonMalformed     = "malformed"
	reasonAlreadyJoined = "already_joined"
	reasonInvalid       = "invalid"
	reasonError         = "error"
)

// HandleEvent routes one inbound event from connID to its audience.
// Payloads are forwarded as received; only routing fields are read.
// A returned error means the event was dropped: it is never reported to any client.
func (svc *Service) HandleEvent(connID, event string, payload []byte) error {
	err := svc.handleEvent(connID, event, payload)
	if err != nil && errors.Cause(err) != ErrUsernameExists {
		svc.observer.EventDropped(event, dropReason(err))
	}
	return err
}

func (svc *Service) handleEvent(connID, event string, payload []byte) error {
	switch event {
	case EventJoinRequest:
		var req JoinRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return errors.Wrap(ErrMalformedPayload, err.Error())
		}
		return svc.HandleJoinRequest(connID, req)

	case EventDirectoryCreated, EventDirectoryUpdated, EventDirectoryRenamed, EventDirectoryDeleted,
		EventFileCreated, EventFileUpdated, EventFileRenamed, EventFileDeleted,
		EventDrawingUpdate:
		return svc.relayToRoom(connID, event, payload)

	case EventSendMessage:
		return svc.relayToRoom(connID, EventReceiveMessage, payload)

	case EventSyncFileStructure:
		return svc.relayToTarget(connID, event, payload, true)

	case EventSyncDrawing:
		return svc.relayToTarget(connID, event, payload, false)

	case EventTypingStart:
		return svc.typingStart(connID, payload)

	case EventTypingPause:
		return svc.typingPause(connID)

	case EventUserOnline:
		return svc.setStatus(connID, event, StatusOnline, payload)

	case EventUserOffline:
		return svc.setStatus(connID, event, StatusOffline, payload)

	case EventRequestDrawing:
		return svc.requestDrawing(connID)

	default:
		return errors.Wrap(ErrUnknownEvent, event)
	}
}

// sender resolves the registered record of the connection an event came from.
func (svc *Service) sender(connID string) (Connection, error) {
	conn, err := svc.registry.FindByConnectionID(connID)
	if err != nil {
		return Connection{}, errors.Wrap(err, "finding sender "+connID)
	}
	return conn, nil
}

// target resolves the connection addressed by the payload's socketId; it must share sender's room.
func (svc *Service) target(sender Connection, targetID string) (Connection, error) {
	if targetID == "" {
		return Connection{}, errors.Wrap(ErrMalformedPayload, "missing "+targetField)
	}
	conn, err := svc.registry.FindByConnectionID(targetID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Connection{}, errors.Wrap(ErrTargetNotFound, targetID)
		}
		return Connection{}, errors.Wrap(err, "finding target "+targetID)
	}
	if conn.RoomID != sender.RoomID {
		return Connection{}, errors.Wrap(ErrTargetNotFound, targetID)
	}
	return conn, nil
}

func (svc *Service) relayToRoom(connID, event string, payload []byte) error {
	sender, err := svc.sender(connID)
	if err != nil {
		return err
	}
	svc.broadcast(sender, event, rawPayload(payload))
	return nil
}

// relayToTarget forwards a point-to-point payload without its routing field.
// allowSelf tells whether the sender may address itself.
func (svc *Service) relayToTarget(connID, event string, payload []byte, allowSelf bool) error {
	sender, err := svc.sender(connID)
	if err != nil {
		return err
	}
	if !isObject(payload) {
		return errors.Wrap(ErrMalformedPayload, event)
	}
	target, err := svc.target(sender, gjson.GetBytes(payload, targetField).String())
	if err != nil {
		return err
	}
	if !allowSelf && target.ConnectionID == sender.ConnectionID {
		return errors.Wrap(ErrTargetNotFound, "sender addressed itself")
	}

	var fields map[string]json.RawMessage
	if err = json.Unmarshal(payload, &fields); err != nil {
		return errors.Wrap(ErrMalformedPayload, err.Error())
	}
	delete(fields, targetField)
	svc.emit(target.ConnectionID, event, fields)
	return nil
}

func (svc *Service) typingStart(connID string, payload []byte) error {
	typing := true
	patch := ConnectionPatch{Typing: &typing}
	if res := gjson.GetBytes(payload, "cursorPosition"); res.Exists() && res.Type != gjson.Null {
		pos, ok := cursorPosition(res)
		if !ok {
			return errors.Wrapf(ErrMalformedPayload, "cursorPosition %s", res.Raw)
		}
		patch.CursorPosition = &pos
	}
	if res := gjson.GetBytes(payload, "currentFile"); res.Exists() {
		var file null.String
		if res.Type != gjson.Null {
			file = null.StringFrom(res.String())
		}
		patch.CurrentFile = &file
	}
	return svc.updateAndBroadcast(connID, EventTypingStart, patch)
}

// cursorPosition accepts whole numbers within the int range of every platform.
func cursorPosition(res gjson.Result) (int, bool) {
	if res.Type != gjson.Number || res.Num != math.Trunc(res.Num) {
		return 0, false
	}
	if res.Num < math.MinInt32 || res.Num > math.MaxInt32 {
		return 0, false
	}
	return int(res.Num), true
}

func (svc *Service) typingPause(connID string) error {
	typing := false
	return svc.updateAndBroadcast(connID, EventTypingPause, ConnectionPatch{Typing: &typing})
}

// updateAndBroadcast stores the patch before peers hear about it,
// so a roster taken right after the broadcast already reflects it.
func (svc *Service) updateAndBroadcast(connID, event string, patch ConnectionPatch) error {
	if _, err := svc.sender(connID); err != nil {
		return err
	}
	if err := svc.registry.UpdateConnection(connID, patch); err != nil {
		return errors.Wrap(err, "updating connection")
	}
	usr, err := svc.sender(connID)
	if err != nil {
		return err
	}
	svc.broadcast(usr, event, UserPayload{User: usr})
	return nil
}

// setStatus toggles the presence status of the payload's socketId (the sender when empty).
func (svc *Service) setStatus(connID, event string, status Status, payload []byte) error {
	sender, err := svc.sender(connID)
	if err != nil {
		return err
	}
	targetID := gjson.GetBytes(payload, targetField).String()
	if targetID == "" {
		targetID = sender.ConnectionID
	}
	target, err := svc.target(sender, targetID)
	if err != nil {
		return err
	}
	if err = svc.registry.UpdateConnection(target.ConnectionID, ConnectionPatch{Status: &status}); err != nil {
		return errors.Wrap(err, "updating connection")
	}
	svc.broadcast(sender, event, SocketIDPayload{SocketID: target.ConnectionID})
	return nil
}

// requestDrawing asks the room for the current whiteboard; peers answer with sync-drawing.
func (svc *Service) requestDrawing(connID string) error {
	sender, err := svc.sender(connID)
	if err != nil {
		return err
	}
	svc.broadcast(sender, EventRequestDrawing, SocketIDPayload{SocketID: sender.ConnectionID})
	return nil
}

// rawPayload keeps absent payloads absent instead of turning them into JSON null.
func rawPayload(payload []byte) interface{} {
	if len(payload) == 0 {
		return nil
	}
	return json.RawMessage(payload)
}

func isObject(payload []byte) bool {
	return gjson.ValidBytes(payload) && gjson.ParseBytes(payload).IsObject()
}

func dropReason(err error) string {
	switch cause := errors.Cause(err); cause {
	case ErrNotFound:
		return reasonUnknownSender
	case ErrTargetNotFound:
		return reasonUnknownTarget
	case ErrUnknownEvent:
		return reasonUnknownEvent
	case ErrMalformedPayload:
		return reasonMalformed
	case ErrAlreadyJoined:
		return reasonAlreadyJoined
	default:
		if _, ok := cause.(*core.ValidationError); ok {
			return reasonInvalid
		}
		return reasonError
	}
}
