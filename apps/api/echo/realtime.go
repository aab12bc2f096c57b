package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const socketPath = "/socket.io"

type realtimeApi struct {
	socket SocketServer
	rooms  RoomQuerier
}

func registerRealtimeAPI(e *echo.Echo, socket SocketServer, rooms RoomQuerier, metrics http.Handler) {
	api := realtimeApi{socket: socket, rooms: rooms}

	// long-polling sessions GET and POST, websockets GET
	methods := []string{http.MethodGet, http.MethodPost}
	e.Match(methods, socketPath, echo.WrapHandler(socket))
	e.Match(methods, socketPath+"/", echo.WrapHandler(socket))
	e.GET("/healthz", api.health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

func isSocketPath(path string) bool {
	return path == socketPath || strings.HasPrefix(path, socketPath+"/")
}

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// health also proves the event loop alive: the room count is read through it.
func (api *realtimeApi) health(ctx echo.Context) error {
	rooms, err := api.rooms.Rooms()
	if err != nil {
		return errors.Wrap(err, "listing rooms")
	}
	return ctx.JSON(http.StatusOK, health{
		Status:      "ok",
		Connections: api.socket.ConnectionCount(),
		Rooms:       len(rooms),
	})
}
