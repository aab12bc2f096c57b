package echoapi

import (
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

type (
	roomApi struct {
		rooms    RoomQuerier
		validate *validator.Validate
	}

	roomsQuery struct {
		Ordering []string `json:"ordering" validate:"dive,oneof=roomId users"`
	}
)

func registerRoomAPI(g *echo.Group, jwt echo.MiddlewareFunc, rooms RoomQuerier, validate *validator.Validate) {
	api := roomApi{
		rooms:    rooms,
		validate: validate,
	}

	rg := g.Group("/rooms", jwt, adminMiddleware())
	rg.GET("", api.query)
	rg.GET("/:roomId/users", api.roster)
}

// Handlers

func (api *roomApi) query(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)
	if err := api.validate.Struct(roomsQuery{Ordering: ord.Fields()}); err != nil {
		return err
	}

	rooms, err := api.rooms.Rooms()
	if err != nil {
		return errors.Wrap(err, "listing rooms")
	}
	sortRooms(rooms, ord)
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *roomApi) roster(ctx echo.Context) error {
	roomID := core.CleanString(ctx.Param("roomId"))
	users, err := api.rooms.Roster(roomID)
	if err != nil {
		return errors.Wrap(err, "listing room users")
	}
	if len(users) == 0 {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, users)
}

// sortRooms applies the requested ordering on top of the registry's room ID order.
func sortRooms(rooms []collab.RoomSummary, ord Ordering) {
	sort.SliceStable(rooms, func(i, j int) bool {
		for _, o := range ord.Orderings {
			var less, greater bool
			switch o.Field {
			case "users":
				less, greater = rooms[i].Users < rooms[j].Users, rooms[i].Users > rooms[j].Users
			default:
				less, greater = rooms[i].RoomID < rooms[j].RoomID, rooms[i].RoomID > rooms[j].RoomID
			}
			if less || greater {
				return less == o.Ascending
			}
		}
		return false
	})
}
