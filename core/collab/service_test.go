package collab_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

func TestService_HandleJoinRequest(t *testing.T) {
	f := setup(t)
	alice := f.join(t, "s1", "r1", "alice")
	assert.Equal(t, collab.Connection{
		ConnectionID: "s1",
		Username:     "alice",
		RoomID:       "r1",
		Status:       collab.StatusOnline,
	}, alice)
	assert.Equal(t, []message{{
		to:      "s1",
		event:   collab.EventJoinAccepted,
		payload: mustMarshal(t, collab.JoinAcceptedPayload{User: alice, Users: []collab.Connection{alice}}),
	}}, f.transport.received("s1"))
	f.transport.reset()

	bob := f.join(t, "s2", "r1", "  bob ")
	assert.Equal(t, "bob", bob.Username)
	assert.Equal(t, []message{{
		to:      "s1",
		event:   collab.EventUserJoined,
		payload: mustMarshal(t, collab.UserPayload{User: bob}),
	}}, f.transport.received("s1"))
	assert.Equal(t, []message{{
		to:      "s2",
		event:   collab.EventJoinAccepted,
		payload: mustMarshal(t, collab.JoinAcceptedPayload{User: bob, Users: []collab.Connection{alice, bob}}),
	}}, f.transport.received("s2"))
	assert.Equal(t, 2, f.observer.joined)
}

func TestService_HandleJoinRequest_UsernameExists(t *testing.T) {
	f := setup(t)
	f.join(t, "s1", "r1", "alice")
	f.join(t, "s2", "r1", "bob")
	f.join(t, "s3", "r2", "carol")
	f.transport.reset()

	err := f.svc.HandleJoinRequest("s4", collab.JoinRequest{RoomID: "r1", Username: "alice"})
	assert.Equal(t, collab.ErrUsernameExists, errors.Cause(err))
	assert.Equal(t, []string{"s1", "s2"}, f.roster(t, "r1"))
	_, err = f.registry.FindByConnectionID("s4")
	assert.Equal(t, collab.ErrNotFound, err)
	assert.Equal(t, []message{{to: "s4", event: collab.EventUsernameExists, payload: "null"}}, f.transport.received("s4"))
	assert.Empty(t, f.transport.received("s1"))
	assert.Empty(t, f.transport.received("s2"))
	assert.Equal(t, 1, f.observer.rejected)

	// same name in another room is fine
	f.join(t, "s5", "r2", "alice")

	// the rejected connection may retry under another name
	f.join(t, "s4", "r1", "dave")
	assert.Equal(t, []string{"s1", "s2", "s4"}, f.roster(t, "r1"))
}

func TestService_HandleJoinRequest_OfflineHolderDoesNotCollide(t *testing.T) {
	f := setup(t)
	f.join(t, "s1", "r1", "alice")
	offline := collab.StatusOffline
	require.NoError(t, f.registry.UpdateConnection("s1", collab.ConnectionPatch{Status: &offline}))

	f.join(t, "s2", "r1", "alice")
	assert.Equal(t, []string{"s1", "s2"}, f.roster(t, "r1"))
}

func TestService_HandleJoinRequest_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		req       collab.JoinRequest
		wantField string
		wantText  string
	}{
		{name: "missing room", req: collab.JoinRequest{Username: "alice"}, wantField: "roomId", wantText: "this field is required"},
		{name: "blank username", req: collab.JoinRequest{RoomID: "r1", Username: " \t "}, wantField: "username", wantText: "this field is required"},
		{name: "control characters", req: collab.JoinRequest{RoomID: "r1", Username: "al\x00ice"}, wantField: "username", wantText: "control characters are not allowed"},
		{name: "username too long", req: collab.JoinRequest{RoomID: "r1", Username: strings.Repeat("a", 65)}, wantField: "username"},
		{name: "room too long", req: collab.JoinRequest{RoomID: strings.Repeat("r", 129), Username: "alice"}, wantField: "roomId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			err := f.svc.HandleJoinRequest("s1", tt.req)
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			if !ok {
				t.Fatalf("HandleJoinRequest() error = %v, want a *core.ValidationError", err)
			}
			require.NotEmpty(t, vErr.Fields)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, vErr.Fields[0].Error)
			}
			_, err = f.registry.FindByConnectionID("s1")
			assert.Equal(t, collab.ErrNotFound, err)
			assert.Empty(t, f.transport.received("s1"))
		})
	}
}

func TestService_HandleJoinRequest_AlreadyJoined(t *testing.T) {
	f := setup(t)
	f.join(t, "s1", "r1", "alice")

	err := f.svc.HandleJoinRequest("s1", collab.JoinRequest{RoomID: "r2", Username: "alice"})
	assert.Equal(t, collab.ErrAlreadyJoined, errors.Cause(err))
	assert.Equal(t, []string{"s1"}, f.roster(t, "r1"))
	assert.Empty(t, f.roster(t, "r2"))
}

func TestService_HandleJoinRequest_TransportGone(t *testing.T) {
	f := setup(t)
	f.transport.joinErr = errors.New("connection closed")

	err := f.svc.HandleJoinRequest("s1", collab.JoinRequest{RoomID: "r1", Username: "alice"})
	assert.Error(t, err)
	_, err = f.registry.FindByConnectionID("s1")
	assert.Equal(t, collab.ErrNotFound, err)
	assert.Empty(t, f.transport.received("s1"))
}

func TestService_HandleDisconnect(t *testing.T) {
	f := setup(t)
	f.join(t, "s1", "r1", "alice")
	bob := f.join(t, "s2", "r1", "bob")
	f.join(t, "s3", "r1", "carol")
	f.join(t, "s4", "r2", "dave")
	f.transport.reset()

	require.NoError(t, f.svc.HandleDisconnect("s2"))
	want := mustMarshal(t, collab.UserPayload{User: bob})
	for _, id := range []string{"s1", "s3"} {
		assert.Equal(t, []message{{to: id, event: collab.EventUserDisconnected, payload: want}}, f.transport.received(id))
	}
	assert.Empty(t, f.transport.received("s2"))
	assert.Empty(t, f.transport.received("s4"))
	assert.Equal(t, []string{"s1", "s3"}, f.roster(t, "r1"))
	assert.Equal(t, []string{"s1", "s3"}, f.transport.rooms["r1"])
	assert.Equal(t, 1, f.observer.left)

	// already cleaned up & never joined are no-ops
	f.transport.reset()
	assert.NoError(t, f.svc.HandleDisconnect("s2"))
	assert.NoError(t, f.svc.HandleDisconnect("ghost"))
	assert.Empty(t, f.transport.sent)
	assert.Equal(t, 1, f.observer.left)
}

func TestService_Rooms(t *testing.T) {
	f := setup(t)
	f.join(t, "s1", "r2", "alice")
	f.join(t, "s2", "r1", "bob")
	f.join(t, "s3", "r2", "carol")

	rooms, err := f.svc.Rooms()
	require.NoError(t, err)
	assert.Equal(t, []collab.RoomSummary{{RoomID: "r1", Users: 1}, {RoomID: "r2", Users: 2}}, rooms)

	users, err := f.svc.Roster(" r2 ")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestScenario_CreateDirectoryThenLeave(t *testing.T) {
	f := setup(t)
	a := f.join(t, "A", "abc", "alice")
	f.join(t, "B", "abc", "bob")
	f.transport.reset()

	dir := `{"parentDirId":"root","newDirectory":{"id":"D","name":"src","type":"directory","children":[]}}`
	require.NoError(t, f.svc.HandleEvent("A", collab.EventDirectoryCreated, []byte(dir)))
	assert.Equal(t, []message{{to: "B", event: collab.EventDirectoryCreated, payload: dir}}, f.transport.received("B"))
	assert.Empty(t, f.transport.received("A"))

	bob, err := f.registry.FindByConnectionID("B")
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleDisconnect("B"))
	assert.Equal(t, []message{{
		to:      "A",
		event:   collab.EventUserDisconnected,
		payload: mustMarshal(t, collab.UserPayload{User: bob}),
	}}, f.transport.received("A"))

	users, err := f.registry.ListByRoom("abc")
	require.NoError(t, err)
	assert.Equal(t, []collab.Connection{a}, users)
}

func TestScenario_SameUsernameRace(t *testing.T) {
	f := setup(t)
	errA := f.svc.HandleJoinRequest("A", collab.JoinRequest{RoomID: "abc", Username: "alice"})
	errB := f.svc.HandleJoinRequest("B", collab.JoinRequest{RoomID: "abc", Username: "alice"})

	assert.NoError(t, errA)
	assert.Equal(t, collab.ErrUsernameExists, errors.Cause(errB))
	assert.Equal(t, []string{"A"}, f.roster(t, "abc"))
	assert.Equal(t, []message{{to: "B", event: collab.EventUsernameExists, payload: "null"}}, f.transport.received("B"))
}
