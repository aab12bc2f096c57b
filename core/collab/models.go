package collab

import (
	"github.com/volatiletech/null/v8"

	"github.com/sameeradaveen/lms-new-main/core"
)

// Status is the soft presence state of a connection.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type (
	// Connection is one live transport session plus its presence metadata.
	// JSON field names are part of the wire contract.
	Connection struct {
		ConnectionID   string      `json:"socketId"`
		Username       string      `json:"username"`
		RoomID         string      `json:"roomId"`
		Status         Status      `json:"status"`
		CursorPosition int         `json:"cursorPosition"`
		Typing         bool        `json:"typing"`
		CurrentFile    null.String `json:"currentFile"`
	}

	// ConnectionPatch holds the fields to merge into an existing Connection; nil fields are left untouched.
	ConnectionPatch struct {
		Status         *Status
		CursorPosition *int
		Typing         *bool
		CurrentFile    *null.String
	}

	RoomSummary struct {
		RoomID string `json:"roomId"`
		Users  int    `json:"users"`
	}

	JoinRequest struct {
		RoomID   string `json:"roomId" validate:"required,notblank,nocontrol,max=128"`
		Username string `json:"username" validate:"required,notblank,nocontrol,max=64"`
	}
)

// NewConnection returns the record of a freshly joined connection.
func NewConnection(connID string, req JoinRequest) Connection {
	return Connection{
		ConnectionID:   connID,
		Username:       req.Username,
		RoomID:         req.RoomID,
		Status:         StatusOnline,
		CursorPosition: 0,
		Typing:         false,
		CurrentFile:    null.String{},
	}
}

func (c Connection) IsOnline() bool { return c.Status == StatusOnline }

// Apply merges the set fields of the patch into conn.
func (p ConnectionPatch) Apply(conn *Connection) {
	if p.Status != nil {
		conn.Status = *p.Status
	}
	if p.CursorPosition != nil {
		conn.CursorPosition = *p.CursorPosition
	}
	if p.Typing != nil {
		conn.Typing = *p.Typing
	}
	if p.CurrentFile != nil {
		conn.CurrentFile = *p.CurrentFile
	}
}

func (jr *JoinRequest) Clean() {
	jr.RoomID = core.CleanString(jr.RoomID)
	jr.Username = core.CleanString(jr.Username)
}

// Wire payloads

type (
	UserPayload struct {
		User Connection `json:"user"`
	}

	JoinAcceptedPayload struct {
		User  Connection   `json:"user"`
		Users []Connection `json:"users"`
	}

	SocketIDPayload struct {
		SocketID string `json:"socketId"`
	}
)
