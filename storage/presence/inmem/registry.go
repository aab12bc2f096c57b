package inmem

import (
	"sort"

	"github.com/sameeradaveen/lms-new-main/core/collab"
)

type registry struct {
	db *presenceTable
}

var _ collab.Registry = (*registry)(nil)

func NewRegistry(db *DB) collab.Registry {
	return &registry{db: db.presence}
}

func (reg *registry) AddConnection(conn collab.Connection) error {
	reg.db.Lock()
	defer reg.db.Unlock()

	if old, ok := reg.db.table[conn.ConnectionID]; ok {
		// replace in place: a connection lives in one room only
		reg.unindex(old.ConnectionID, old.RoomID)
	}
	reg.db.table[conn.ConnectionID] = &conn
	reg.db.rooms[conn.RoomID] = append(reg.db.rooms[conn.RoomID], conn.ConnectionID)
	return nil
}

func (reg *registry) RemoveConnection(connID string) error {
	reg.db.Lock()
	defer reg.db.Unlock()

	conn, ok := reg.db.table[connID]
	if !ok {
		return nil
	}
	delete(reg.db.table, connID)
	reg.unindex(connID, conn.RoomID)
	return nil
}

func (reg *registry) FindByConnectionID(connID string) (collab.Connection, error) {
	reg.db.RLock()
	defer reg.db.RUnlock()

	if conn, ok := reg.db.table[connID]; ok {
		return *conn, nil
	}
	return collab.Connection{}, collab.ErrNotFound
}

func (reg *registry) ListByRoom(roomID string) ([]collab.Connection, error) {
	reg.db.RLock()
	defer reg.db.RUnlock()

	ids := reg.db.rooms[roomID]
	users := make([]collab.Connection, 0, len(ids))
	for _, id := range ids {
		users = append(users, *reg.db.table[id])
	}
	return users, nil
}

func (reg *registry) UpdateConnection(connID string, patch collab.ConnectionPatch) error {
	reg.db.Lock()
	defer reg.db.Unlock()

	// only save set fields
	if conn, ok := reg.db.table[connID]; ok {
		patch.Apply(conn)
	}
	return nil
}

func (reg *registry) ListRooms() ([]collab.RoomSummary, error) {
	reg.db.RLock()
	defer reg.db.RUnlock()

	rooms := make([]collab.RoomSummary, 0, len(reg.db.rooms))
	for id, members := range reg.db.rooms {
		rooms = append(rooms, collab.RoomSummary{RoomID: id, Users: len(members)})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomID < rooms[j].RoomID })
	return rooms, nil
}

// unindex drops connID from its room, and the room itself once empty. Caller holds the write lock.
func (reg *registry) unindex(connID, roomID string) {
	members := reg.db.rooms[roomID]
	for i, id := range members {
		if id == connID {
			members = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(reg.db.rooms, roomID)
		return
	}
	reg.db.rooms[roomID] = members
}
