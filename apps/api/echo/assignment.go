package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/class"
	"github.com/trezcool/mwalimu/core/user"
)

type assignmentApi struct {
	svc      assignment.Service
	users    user.Service
	validate *validator.Validate
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := assignmentApi{svc: deps.AssignmentSvc, users: deps.UserSvc, validate: deps.Validate}

	sg := g.Group("/assign-student", jwt)
	sg.POST("", api.assignStudents, adminMiddleware())
	sg.DELETE("/remove", api.removeStudent, adminMiddleware())
	sg.GET("/student/:memberId", api.classesForStudent, selfOrAdminMiddleware("memberId"))
	sg.PUT("/:classId", api.updateStudents, adminMiddleware())
	sg.GET("/:classId", api.roster, roleMiddleware(user.RoleAdmin, user.RoleTutor))

	tg := g.Group("/assign-tutor", jwt)
	tg.POST("", api.assignTutors, adminMiddleware())
	tg.DELETE("/remove", api.removeTutor, adminMiddleware())
	tg.GET("/tutor/:memberId", api.classesForTutor, selfOrAdminMiddleware("memberId"))
	tg.PUT("/:classId", api.updateTutors, adminMiddleware())
	tg.GET("/:classId", api.tutors, roleMiddleware(user.RoleAdmin, user.RoleTutor))
}

// Students

func (api *assignmentApi) assignStudents(ctx echo.Context) error {
	var data assignment.AssignStudents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudents")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.AssignStudents(ctx.Request().Context(), data, admin)
	if err != nil {
		return errors.Wrap(err, "assigning students")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *assignmentApi) removeStudent(ctx echo.Context) error {
	var data assignment.RemoveStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RemoveStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RemoveStudent(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Student removed from class."})
}

func (api *assignmentApi) updateStudents(ctx echo.Context) error {
	var data assignment.UpdateMembers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMembers")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.UpdateStudents(ctx.Request().Context(), ctx.Param("classId"), data, admin)
	if err != nil {
		return errors.Wrap(err, "updating students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) roster(ctx echo.Context) error {
	students, err := api.svc.Roster(ctx.Request().Context(), ctx.Param("classId"))
	if err != nil {
		return errors.Wrap(err, "getting roster")
	}
	return ctx.JSON(http.StatusOK, emptyUsers(students))
}

func (api *assignmentApi) classesForStudent(ctx echo.Context) error {
	classes, err := api.svc.ClassesForStudent(ctx.Request().Context(), ctx.Param("memberId"))
	if err != nil {
		return errors.Wrap(err, "getting classes for student")
	}
	return ctx.JSON(http.StatusOK, emptyClasses(classes))
}

// Tutors

func (api *assignmentApi) assignTutors(ctx echo.Context) error {
	var data assignment.AssignTutors
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTutors")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.AssignTutors(ctx.Request().Context(), data, admin)
	if err != nil {
		return errors.Wrap(err, "assigning tutors")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *assignmentApi) removeTutor(ctx echo.Context) error {
	var data assignment.RemoveTutor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RemoveTutor")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RemoveTutor(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "removing tutor")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Tutor removed from class."})
}

func (api *assignmentApi) updateTutors(ctx echo.Context) error {
	var data assignment.UpdateMembers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMembers")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.UpdateTutors(ctx.Request().Context(), ctx.Param("classId"), data, admin)
	if err != nil {
		return errors.Wrap(err, "updating tutors")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) tutors(ctx echo.Context) error {
	tutors, err := api.svc.Tutors(ctx.Request().Context(), ctx.Param("classId"))
	if err != nil {
		return errors.Wrap(err, "getting tutors")
	}
	return ctx.JSON(http.StatusOK, emptyUsers(tutors))
}

func (api *assignmentApi) classesForTutor(ctx echo.Context) error {
	classes, err := api.svc.ClassesForTutor(ctx.Request().Context(), ctx.Param("memberId"))
	if err != nil {
		return errors.Wrap(err, "getting classes for tutor")
	}
	return ctx.JSON(http.StatusOK, emptyClasses(classes))
}

// selfOrAdminMiddleware only lets through admins and the user named by the `param` path parameter.
func selfOrAdminMiddleware(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.Subject == ctx.Param(param) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func emptyUsers(users []user.User) []user.User {
	if users == nil {
		return []user.User{}
	}
	return users
}

func emptyClasses(classes []class.Class) []class.Class {
	if classes == nil {
		return []class.Class{}
	}
	return classes
}
