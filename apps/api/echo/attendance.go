package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/attendance"
	"github.com/trezcool/mwalimu/core/user"
)

type attendanceApi struct {
	svc      attendance.Service
	users    user.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{svc: deps.AttendanceSvc, users: deps.UserSvc, validate: deps.Validate}

	ag := g.Group("/attendance", jwt)
	ag.POST("/mark", api.mark, roleMiddleware(user.RoleAdmin, user.RoleTutor))
	ag.GET("/student/:studentId", api.studentHistory, selfOrAdminMiddleware("studentId"))
	ag.GET("/:scheduleId/status", api.status, roleMiddleware(user.RoleAdmin, user.RoleTutor))
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	marker, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Mark(ctx.Request().Context(), data, marker)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *attendanceApi) status(ctx echo.Context) error {
	report, err := api.svc.Status(ctx.Request().Context(), ctx.Param("scheduleId"))
	if err != nil {
		return errors.Wrap(err, "getting attendance status")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attendanceApi) studentHistory(ctx echo.Context) error {
	classID := core.CleanString(ctx.QueryParam("classId"))
	history, err := api.svc.StudentHistory(ctx.Request().Context(), ctx.Param("studentId"), classID)
	if err != nil {
		return errors.Wrap(err, "getting student attendance")
	}
	if history == nil {
		history = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, history)
}
