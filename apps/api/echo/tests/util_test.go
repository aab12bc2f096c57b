package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/sameeradaveen/lms-new-main/apps/api/echo"
	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
	logsvc "github.com/sameeradaveen/lms-new-main/services/logger"
	metricsvc "github.com/sameeradaveen/lms-new-main/services/metrics"
	"github.com/sameeradaveen/lms-new-main/services/socketio"
	"github.com/sameeradaveen/lms-new-main/storage/presence/inmem"
	"github.com/sameeradaveen/lms-new-main/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	hub        *collab.Hub
	socketURL  string
	pollingURL string
}

// setup wires a whole app, like the composition roots do, and serves it on a local listener.
func setup(t *testing.T) testApp {
	logger := logsvc.NewDiscardLogger()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	collab.InitValidators(validate, translator)

	db, err := inmem.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	socket := socketio.NewServer(conf, logger)
	observer := metricsvc.NewPrometheusObserver()
	svc := collab.NewService(inmem.NewRegistry(db), socket, validate, translator, logger, observer)
	hub := collab.NewHub(svc, logger, conf.Realtime.ActionQueueSize)
	socket.SetHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Rooms:      hub,
		Socket:     socket,
		Metrics:    observer.Handler(),
		Validate:   validate,
		Translator: translator,
	})
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		ts.Close()
		_ = socket.Close()
		cancel()
	})
	return testApp{
		Server:     server,
		hub:        hub,
		socketURL:  testutil.SocketURL(ts.URL, "/socket.io/"),
		pollingURL: testutil.PollingURL(ts.URL, "/socket.io/"),
	}
}

// join connects a client and joins it to roomID.
func (app testApp) join(t *testing.T, roomID, username string) (*testutil.SocketClient, collab.JoinAcceptedPayload) {
	t.Helper()
	c := testutil.DialSocket(t, app.socketURL)
	c.Emit(t, collab.EventJoinRequest, collab.JoinRequest{RoomID: roomID, Username: username})
	ev := c.Expect(t, collab.EventJoinAccepted)
	var accepted collab.JoinAcceptedPayload
	if err := json.Unmarshal(ev.Payload, &accepted); err != nil {
		t.Fatalf("join() failed: %v", err)
	}
	return c, accepted
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, claims *Claims) string {
	token, err := GenerateToken(claims, conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
