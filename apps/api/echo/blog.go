package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/blog"
	"github.com/trezcool/mwalimu/core/user"
)

type blogApi struct {
	svc      blog.Service
	users    user.Service
	validate *validator.Validate
}

func registerBlogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := blogApi{svc: deps.BlogSvc, users: deps.UserSvc, validate: deps.Validate}

	bg := g.Group("/blogs", jwt)
	bg.GET("", api.query)
	bg.POST("", api.create)
	bg.DELETE("/comments/:commentId", api.destroyComment)
	bg.GET("/:id", api.retrieve)
	bg.PUT("/:id", api.update)
	bg.DELETE("/:id", api.destroy)
	bg.PUT("/:id/image", api.setImage)
	bg.GET("/:id/comments", api.comments)
	bg.POST("/:id/comments", api.comment)
	bg.POST("/:id/like", api.like)
	bg.DELETE("/:id/like", api.unlike)
}

func (api *blogApi) create(ctx echo.Context) error {
	var data blog.NewBlog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBlog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	author, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.svc.Create(ctx.Request().Context(), author, data)
	if err != nil {
		return errors.Wrap(err, "creating blog")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *blogApi) query(ctx echo.Context) error {
	filter := new(blog.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []blog.Blog{})
	}
	filter.Clean()

	blogs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying blogs")
	}
	if blogs == nil {
		blogs = []blog.Blog{}
	}
	return ctx.JSON(http.StatusOK, blogs)
}

func (api *blogApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding blog by ID")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *blogApi) update(ctx echo.Context) error {
	var data blog.UpdateBlog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBlog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating blog")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *blogApi) setImage(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, closeFile, err := bindFile(ctx)
	if err != nil {
		return err
	}
	defer closeFile()

	b, err := api.svc.SetImage(ctx.Request().Context(), actor, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "setting blog image")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *blogApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting blog")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Comments

func (api *blogApi) comment(ctx echo.Context) error {
	var data blog.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	author, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Comment(ctx.Request().Context(), author, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "commenting blog")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *blogApi) comments(ctx echo.Context) error {
	comments, err := api.svc.Comments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []blog.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *blogApi) destroyComment(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteComment(ctx.Request().Context(), actor, ctx.Param("commentId")); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Likes

func (api *blogApi) like(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Like(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "liking blog")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *blogApi) unlike(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Unlike(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unliking blog")
	}
	return ctx.JSON(http.StatusOK, res)
}
