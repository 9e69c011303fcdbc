package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/schedule"
	"github.com/trezcool/mwalimu/core/user"
)

type scheduleApi struct {
	svc      schedule.Service
	ledger   assignment.Service
	validate *validator.Validate
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := scheduleApi{
		svc:      deps.ScheduleSvc,
		ledger:   deps.AssignmentSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/schedule", jwt)
	sg.POST("/create-schedule", api.create, adminMiddleware())
	sg.GET("", api.query)
	sg.GET("/slots", api.slots)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
	sg.POST("/:id/meeting-link", api.createMeetingLink, roleMiddleware(user.RoleAdmin, user.RoleTutor))
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	schedules, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating schedules")
	}
	return ctx.JSON(http.StatusOK, emptySchedules(schedules))
}

// query lists schedules; non-admins only see the classes they belong to.
func (api *scheduleApi) query(ctx echo.Context) error {
	filter := new(schedule.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []schedule.Schedule{})
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin {
		filter.ClassIDs, err = api.ledger.ClassIDsOf(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "finding user classes")
		}
	}

	schedules, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	return ctx.JSON(http.StatusOK, emptySchedules(schedules))
}

func (api *scheduleApi) slots(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, schedule.Slots)
}

func (api *scheduleApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding schedule by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scheduleApi) update(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding schedule by ID")
	}

	var data schedule.UpdateSchedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchedule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating schedule")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) createMeetingLink(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding schedule by ID")
	}

	// tutors may only open meetings for their own classes
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin {
		ok, err := api.ledger.IsMember(ctx.Request().Context(), assignment.Tutors, claims.Subject, s.ClassID)
		if err != nil {
			return errors.Wrap(err, "checking tutor assignment")
		}
		if !ok {
			return errHttpForbidden
		}
	}

	s, err = api.svc.CreateMeetingLink(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "creating meeting link")
	}
	return ctx.JSON(http.StatusOK, s)
}

func emptySchedules(schedules []schedule.Schedule) []schedule.Schedule {
	if schedules == nil {
		return []schedule.Schedule{}
	}
	return schedules
}
