package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/class"
	"github.com/trezcool/mwalimu/core/schedule"
	"github.com/trezcool/mwalimu/core/user"
	"github.com/trezcool/mwalimu/testutil"
)

func Test_classApi_query(t *testing.T) {
	env := setup(t)

	student := testutil.CreateRoleUser(t, env.UserRepo, "hero", user.RoleStudent)
	algebra := testutil.CreateClass(t, env.ClassRepo, "Algebra I", "Mathematics")
	physics := testutil.CreateClass(t, env.ClassRepo, "Physics", "Mechanics")
	token := env.token(t, student)

	runTests(t, env, []httpTest{
		{name: "Auth required", path: "/api/classes", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/api/classes", token: token, wantData: marchallList(t, algebra, physics)},
		{name: "search=MATH", path: "/api/classes?search=MATH", token: token, wantData: marchallList(t, algebra)},
		{name: "subject", path: "/api/classes?subject=Mechanics", token: token, wantData: marchallList(t, physics)},
		{name: "search (unknown)", path: "/api/classes?search=lol", token: token, wantData: marchallList(t)},
		{name: "Retrieve", path: "/api/classes/" + physics.ID, token: token, wantData: marchallObj(t, physics)},
		{
			name: "Retrieve (unknown)", path: "/api/classes/unknown", token: token, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
	})
}

func Test_classApi_createUpdate(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	adminToken := env.token(t, admin)

	runTests(t, env, []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/api/classes", token: env.token(t, tutor),
			body:     marchallObj(t, class.NewClass{Name: "Chemistry", Subject: "Science"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Validation", method: http.MethodPost, path: "/api/classes", token: adminToken,
			body:     marchallObj(t, class.NewClass{Name: "  ", Major: "Science"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "subject": "this field is required"}),
		},
	})

	var created class.Class
	t.Run("Created", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/classes", adminToken, marchallObj(t, class.NewClass{Name: " Chemistry ", Subject: "Science"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Chemistry", created.Name)
	})

	t.Run("Updated", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/api/classes/"+created.ID, adminToken,
			marchallObj(t, class.UpdateClass{Name: "Organic Chemistry", Major: "Science", Subject: "Chemistry"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated class.Class
		unmarshal(t, rec, &updated)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Organic Chemistry", updated.Name)
		assert.Equal(t, "Chemistry", updated.Subject)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	})
}

func Test_classApi_destroy(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	student := testutil.CreateRoleUser(t, env.UserRepo, "hero", user.RoleStudent)
	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	doomed := testutil.CreateClass(t, env.ClassRepo, "Doomed", "History")
	kept := testutil.CreateClass(t, env.ClassRepo, "Kept", "History")
	for _, c := range []class.Class{doomed, kept} {
		testutil.Assign(t, env.AssignmentRepo, assignment.Students, c.ID, student.ID)
		testutil.Assign(t, env.AssignmentRepo, assignment.Tutors, c.ID, tutor.ID)
		testutil.CreateSchedule(t, env.ScheduleRepo, c.ID, "2024-06-01", 1)
	}

	runTests(t, env, []httpTest{
		{
			name: "Admin required", method: http.MethodDelete, path: "/api/classes/" + doomed.ID, token: env.token(t, tutor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Deleted", method: http.MethodDelete, path: "/api/classes/" + doomed.ID, token: env.token(t, admin), wantCode: http.StatusNoContent},
		{
			name: "Gone", path: "/api/classes/" + doomed.ID, token: env.token(t, admin), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
	})

	// dependents of the deleted class only are gone
	classes, err := env.Ledger.ClassesForStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, class.IDs(classes))

	classes, err = env.Ledger.ClassesForTutor(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, class.IDs(classes))

	schedules, err := env.Schedules.Query(ctx, &schedule.QueryFilter{Date: "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, schedule.ClassIDs(schedules))
}
