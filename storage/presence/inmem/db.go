package inmem

import (
	"sync"

	"github.com/sameeradaveen/lms-new-main/core/collab"
)

type (
	DB struct {
		presence *presenceTable
	}

	presenceTable struct {
		sync.RWMutex
		table map[string]*collab.Connection
		rooms map[string][]string // room ID -> connection IDs, in join order
	}
)

func Open() (*DB, error) {
	db := &DB{
		presence: &presenceTable{
			table: make(map[string]*collab.Connection),
			rooms: make(map[string][]string),
		},
	}
	return db, nil
}
