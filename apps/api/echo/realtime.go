package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/user"
)

type realtimeApi struct {
	hub   RealtimeHub
	users user.Service
}

func registerRealtimeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	if deps.Hub == nil {
		return
	}
	api := realtimeApi{hub: deps.Hub, users: deps.UserSvc}
	g.GET("/ws", api.connect, jwt)
}

// connect upgrades the request and blocks for as long as the websocket stays open.
func (api *realtimeApi) connect(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.hub.Serve(ctx.Response(), ctx.Request(), usr.ID); err != nil {
		// the upgrader already answered the client
		ctx.Logger().Warn(err)
	}
	return nil
}
