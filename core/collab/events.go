package collab

// Inbound & outbound event names. These are the stable wire contract shared with the web client.
const (
	// lifecycle
	EventJoinRequest      = "join-request"
	EventJoinAccepted     = "join-accepted"
	EventUsernameExists   = "username-exists"
	EventUserJoined       = "user-joined"
	EventUserDisconnected = "user-disconnected"

	// presence
	EventUserOnline  = "user-online"
	EventUserOffline = "user-offline"

	// file tree
	EventSyncFileStructure = "sync-file-structure"
	EventDirectoryCreated  = "directory-created"
	EventDirectoryUpdated  = "directory-updated"
	EventDirectoryRenamed  = "directory-renamed"
	EventDirectoryDeleted  = "directory-deleted"
	EventFileCreated       = "file-created"
	EventFileUpdated       = "file-updated"
	EventFileRenamed       = "file-renamed"
	EventFileDeleted       = "file-deleted"

	// chat
	EventSendMessage    = "send-message"
	EventReceiveMessage = "receive-message"

	// cursor
	EventTypingStart = "typing-start"
	EventTypingPause = "typing-pause"

	// whiteboard
	EventRequestDrawing = "request-drawing"
	EventSyncDrawing    = "sync-drawing"
	EventDrawingUpdate  = "drawing-update"
)

// routing field holding the addressed connection in point-to-point payloads
const targetField = "socketId"
