package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/sameeradaveen/lms-new-main/apps/api/echo"
	"github.com/sameeradaveen/lms-new-main/core"
)

const testToken = "t0k3n"

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	var out bytes.Buffer
	return &commandLine{
		conf: &core.Config{
			AppName:   "LMS Collab",
			SecretKey: "secret",
			Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		},
		client: &http.Client{Timeout: time.Second},
		out:    &out,
	}, &out
}

// apiStub answers like the admin API would for a valid testToken.
func apiStub(t *testing.T) *httptest.Server {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid or expired jwt"}`))
			return
		}
		switch r.URL.Path {
		case "/v1/rooms":
			_, _ = w.Write([]byte(`[{"roomId":"abc","users":2},{"roomId":"def","users":1}]`))
		case "/v1/rooms/abc/users":
			_, _ = w.Write([]byte(`[
				{"socketId":"s1","username":"alice","roomId":"abc","status":"online","cursorPosition":3,"typing":true,"currentFile":"main.go"},
				{"socketId":"s2","username":"bob","roomId":"abc","status":"offline","cursorPosition":0,"typing":false,"currentFile":null}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

type cliTest struct {
	name       string
	args       []string // without program name
	token      string   // typed at the prompt
	wantErr    error
	wantErrStr string
	wantOut    []string // lines expected in the output
}

func Test_commandLine_run(t *testing.T) {
	ts := apiStub(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "token: no username", args: []string{"token"}, wantErr: errHelp},
		{name: "token: blank username", args: []string{"token", "-username", "  "}, wantErr: errHelp},
		{name: "rooms: no token", args: []string{"rooms", "-addr", ts.URL}, wantErr: errHelp},
		{
			name: "rooms: bad token", args: []string{"rooms", "-addr", ts.URL}, token: "nope",
			wantErrStr: "/v1/rooms: 401 invalid or expired jwt",
		},
		{
			name: "rooms", args: []string{"rooms", "-addr", ts.URL + "/"}, token: testToken,
			wantOut: []string{"ROOM  USERS", "abc   2", "def   1"},
		},
		{name: "roster: no room", args: []string{"roster", "-addr", ts.URL}, token: testToken, wantErr: errHelp},
		{
			name: "roster: unknown room", args: []string{"roster", "-addr", ts.URL, "-room", "zzz"}, token: testToken,
			wantErrStr: "/v1/rooms/zzz/users: 404 not found",
		},
		{
			name: "roster", args: []string{"roster", "-addr", ts.URL, "-room", "abc"}, token: " " + testToken + "\n",
			wantOut: []string{
				"SOCKET  USERNAME  STATUS   TYPING  FILE",
				"s1      alice     online   true    main.go",
				"s2      bob       offline  false   -",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, out := setup(t)
			readPasswordFunc = func(int) ([]byte, error) { return []byte(tt.token), nil }

			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErrStr != "" {
				if err == nil || err.Error() != tt.wantErrStr {
					t.Fatalf("run() error = %v, wantErr %q", err, tt.wantErrStr)
				}
				return
			}
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
			got := strings.Split(strings.TrimSpace(out.String()), "\n")
			for i := range got {
				got[i] = strings.TrimRight(got[i], " ")
			}
			if tt.wantOut != nil {
				assert.Equal(t, tt.wantOut, got)
			}
		})
	}
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)
	require.NoError(t, cli.run([]string{"admin", "token", "-username", " ops ", "-roles", "support, ,audit"}))

	var claims echoapi.Claims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, []string{"support", "audit"}, claims.Roles)
	assert.Equal(t, "LMS Collab", claims.Issuer)
}
