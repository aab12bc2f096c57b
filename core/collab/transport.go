package collab

// Transport delivers events to connections and keeps the per-room delivery groups.
type Transport interface {
	Emit(connID, event string, payload interface{}) error
	// BroadcastToRoom sends to every member of the room's delivery group except exceptConnID
	// and returns how many connections the event was queued for.
	BroadcastToRoom(roomID, exceptConnID, event string, payload interface{}) (int, error)
	JoinRoom(connID, roomID string) error
	LeaveRoom(connID, roomID string) error
}
