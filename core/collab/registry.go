package collab

import "github.com/pkg/errors"

var (
	// errors
	ErrNotFound         = errors.New("connection not found")
	ErrUsernameExists   = errors.New("a user with this username is already in the room")
	ErrAlreadyJoined    = errors.New("connection already joined a room")
	ErrTargetNotFound   = errors.New("target connection not found in the sender's room")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrHubStopped       = errors.New("hub stopped")
)

// Registry is the presence registry: the single source of truth for who is in which room.
// Rooms are not stored entities, they are derived from the connection records.
type Registry interface {
	// AddConnection inserts a new record. Uniqueness checks are the caller's job.
	AddConnection(conn Connection) error
	// RemoveConnection deletes a record. Removing an absent record is not an error.
	RemoveConnection(connID string) error
	// FindByConnectionID returns ErrNotFound when there is no such record.
	FindByConnectionID(connID string) (Connection, error)
	// ListByRoom returns copies of the room's records in insertion order.
	ListByRoom(roomID string) ([]Connection, error)
	// UpdateConnection merges the patch into an existing record; it is a no-op when the record is gone.
	UpdateConnection(connID string, patch ConnectionPatch) error
	// ListRooms returns one summary per non-empty room, ordered by room ID.
	ListRooms() ([]RoomSummary, error)
}
