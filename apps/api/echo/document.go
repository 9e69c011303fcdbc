package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/document"
	"github.com/trezcool/mwalimu/core/user"
)

type documentApi struct {
	svc   document.Service
	users user.Service
}

func registerDocumentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := documentApi{svc: deps.DocumentSvc, users: deps.UserSvc}

	dg := g.Group("/documents", jwt)
	dg.GET("", api.list)
	dg.POST("", api.upload)
	dg.GET("/:id", api.retrieve)
	dg.GET("/:id/download", api.download)
	dg.DELETE("/:id", api.destroy)
}

func (api *documentApi) upload(ctx echo.Context) error {
	owner, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, closeFile, err := bindFile(ctx)
	if err != nil {
		return err
	}
	defer closeFile()

	d, err := api.svc.Upload(ctx.Request().Context(), owner, ctx.FormValue("classId"), f)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *documentApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter document.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []document.Document{})
	}

	docs, err := api.svc.List(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (api *documentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	d, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding document by ID")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *documentApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	d, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding document by ID")
	}
	return ctx.Attachment(api.svc.AbsPath(d), d.Name)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}
