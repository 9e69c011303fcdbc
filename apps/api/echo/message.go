package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/message"
	"github.com/trezcool/mwalimu/core/user"
)

type messageApi struct {
	svc      message.Service
	users    user.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{svc: deps.MessageSvc, users: deps.UserSvc, validate: deps.Validate}

	mg := g.Group("/messages", jwt)
	mg.GET("", api.inbox)
	mg.POST("", api.send)
	mg.GET("/:userId", api.conversation)
	mg.PUT("/:userId/read", api.markRead)
}

func (api *messageApi) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sender, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	msg, err := api.svc.Send(ctx.Request().Context(), sender, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) inbox(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entries, err := api.svc.Inbox(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting inbox")
	}
	if entries == nil {
		entries = []message.InboxEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *messageApi) conversation(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	msgs, err := api.svc.Conversation(ctx.Request().Context(), usr, ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "marking messages read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
