package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mwalimu/apps/api/echo"
	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/user"
	"github.com/trezcool/mwalimu/testutil"
)

func Test_assignmentApi_assignStudents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	s1 := testutil.CreateUser(t, env.UserRepo, "Amani", "amani", "amani@test.cd", "", []string{user.RoleStudent}, true)
	s2 := testutil.CreateUser(t, env.UserRepo, "Baraka", "baraka", "baraka@test.cd", "", []string{user.RoleStudent}, true)
	c1 := testutil.CreateClass(t, env.ClassRepo, "C1", "Mathematics")
	adminToken := env.token(t, admin)

	assign := func(classID string, studentIDs ...string) []byte {
		return marchallObj(t, assignment.AssignStudents{StudentIDs: studentIDs, ClassID: classID})
	}
	path := "/api/assign-student"

	runTests(t, env, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", method: http.MethodPost, path: path, token: env.token(t, tutor), body: assign(c1.ID, s1.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Validation", method: http.MethodPost, path: path, token: adminToken, body: assign(" ", s1.ID),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"classId": "this field is required"}),
		},
		{
			name: "Unknown class", method: http.MethodPost, path: path, token: adminToken, body: assign("nope", s1.ID),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
		{
			name: "Unknown student", method: http.MethodPost, path: path, token: adminToken, body: assign(c1.ID, s1.ID, "nope"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFoundErr{Error: "student not found", IDs: []string{"nope"}}),
		},
		{
			name: "Not a student", method: http.MethodPost, path: path, token: adminToken, body: assign(c1.ID, tutor.ID),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFoundErr{Error: "student not found", IDs: []string{tutor.ID}}),
		},
	})

	// nothing was written by the failed attempts
	ids, err := env.Ledger.MemberIDs(ctx, assignment.Students, c1.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	t.Run("Assigned", func(t *testing.T) {
		rec := env.do(http.MethodPost, path, adminToken, assign(c1.ID, s1.ID, s2.ID))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res struct {
			Count    int `json:"count"`
			Assigned []struct {
				StudentID  string `json:"studentId"`
				ClassID    string `json:"classId"`
				AssignedBy string `json:"assignedBy"`
			} `json:"assigned"`
		}
		unmarshal(t, rec, &res)
		assert.Equal(t, 2, res.Count)
		require.Len(t, res.Assigned, 2)
		for _, a := range res.Assigned {
			assert.Contains(t, []string{s1.ID, s2.ID}, a.StudentID)
			assert.Equal(t, c1.ID, a.ClassID)
			assert.Equal(t, admin.ID, a.AssignedBy)
		}
	})

	t.Run("Already assigned", func(t *testing.T) {
		rec := env.do(http.MethodPost, path, adminToken, assign(c1.ID, s1.ID))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, conflictErr{Error: "students already assigned to this class", Conflicts: []string{"Amani"}}),
		}, rec)
	})

	t.Run("Exactly one row per pair", func(t *testing.T) {
		rows, err := env.AssignmentRepo.QueryAssignments(ctx, assignment.Students, assignment.QueryFilter{ClassIDs: []string{c1.ID}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{s1.ID, s2.ID}, assignment.MemberIDs(rows))
	})

	t.Run("Roster change events", func(t *testing.T) {
		events := testutil.EventsOfKind(env.DB, core.EventClassRosterChanged)
		require.NotEmpty(t, events)
		recipients := make([]string, 0)
		for _, evt := range events {
			recipients = append(recipients, evt.Recipients...)
		}
		assert.Subset(t, recipients, []string{s1.ID, s2.ID})
		assert.NotEmpty(t, testutil.EventsOfKind(env.DB, core.EventEmail))
	})
}

func Test_assignmentApi_removeAndUpdateStudents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	s1 := testutil.CreateRoleUser(t, env.UserRepo, "amani", user.RoleStudent)
	s2 := testutil.CreateRoleUser(t, env.UserRepo, "baraka", user.RoleStudent)
	s3 := testutil.CreateRoleUser(t, env.UserRepo, "chausiku", user.RoleStudent)
	c1 := testutil.CreateClass(t, env.ClassRepo, "C1", "Mathematics")
	testutil.Assign(t, env.AssignmentRepo, assignment.Students, c1.ID, s1.ID, s2.ID)
	adminToken := env.token(t, admin)

	remove := func(studentID, classID string) []byte {
		return marchallObj(t, assignment.RemoveStudent{StudentID: studentID, ClassID: classID})
	}

	runTests(t, env, []httpTest{
		{
			name: "Remove", method: http.MethodDelete, path: "/api/assign-student/remove", token: adminToken,
			body: remove(s1.ID, c1.ID), wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Student removed from class."}),
		},
		{
			name: "Remove (not assigned)", method: http.MethodDelete, path: "/api/assign-student/remove", token: adminToken,
			body:     remove(s1.ID, c1.ID),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFoundErr{Error: "student assignment not found", IDs: []string{s1.ID}}),
		},
		{
			name: "Remove (unknown class)", method: http.MethodDelete, path: "/api/assign-student/remove", token: adminToken,
			body: remove(s2.ID, "nope"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
		{
			name: "Update", method: http.MethodPut, path: "/api/assign-student/" + c1.ID, token: adminToken,
			body: marchallObj(t, assignment.UpdateMembers{Add: []string{s1.ID, s3.ID}, Remove: []string{s2.ID}}),
			wantData: marchallObj(t, assignment.UpdateResult{Added: 2, Removed: 1}),
		},
		{
			name: "Update (unknown student)", method: http.MethodPut, path: "/api/assign-student/" + c1.ID, token: adminToken,
			body:     marchallObj(t, assignment.UpdateMembers{Add: []string{"nope"}}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFoundErr{Error: "student not found", IDs: []string{"nope"}}),
		},
		{
			name: "Roster", path: "/api/assign-student/" + c1.ID, token: adminToken,
			wantData: marchallList(t, s1, s3),
		},
	})

	ids, err := env.Ledger.MemberIDs(ctx, assignment.Students, c1.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s1.ID, s3.ID}, ids)
}

func Test_assignmentApi_memberClasses(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	student := testutil.CreateRoleUser(t, env.UserRepo, "amani", user.RoleStudent)
	other := testutil.CreateRoleUser(t, env.UserRepo, "baraka", user.RoleStudent)
	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	algebra := testutil.CreateClass(t, env.ClassRepo, "Algebra", "Mathematics")
	physics := testutil.CreateClass(t, env.ClassRepo, "Physics", "Science")
	testutil.CreateClass(t, env.ClassRepo, "History", "Humanities")
	testutil.Assign(t, env.AssignmentRepo, assignment.Students, algebra.ID, student.ID)
	testutil.Assign(t, env.AssignmentRepo, assignment.Students, physics.ID, student.ID)
	testutil.Assign(t, env.AssignmentRepo, assignment.Tutors, physics.ID, tutor.ID)

	runTests(t, env, []httpTest{
		{
			name: "Student sees own classes", path: "/api/assign-student/student/" + student.ID, token: env.token(t, student),
			wantData: marchallList(t, algebra, physics),
		},
		{
			name: "Admin sees student classes", path: "/api/assign-student/student/" + student.ID, token: env.token(t, admin),
			wantData: marchallList(t, algebra, physics),
		},
		{
			name: "Student cannot see others", path: "/api/assign-student/student/" + student.ID, token: env.token(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "No classes", path: "/api/assign-student/student/" + other.ID, token: env.token(t, other),
			wantData: marchallList(t),
		},
		{
			name: "Student cannot read roster", path: "/api/assign-student/" + physics.ID, token: env.token(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Tutor reads roster", path: "/api/assign-student/" + physics.ID, token: env.token(t, tutor), wantData: marchallList(t, student)},
		{name: "Tutor classes", path: "/api/assign-tutor/tutor/" + tutor.ID, token: env.token(t, tutor), wantData: marchallList(t, physics)},
		{name: "Class tutors", path: "/api/assign-tutor/" + physics.ID, token: env.token(t, admin), wantData: marchallList(t, tutor)},
	})
}

func Test_assignmentApi_tutors(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	tutor := testutil.CreateUser(t, env.UserRepo, "Mwalimu Juma", "juma", "juma@test.cd", "", []string{user.RoleTutor}, true)
	student := testutil.CreateRoleUser(t, env.UserRepo, "amani", user.RoleStudent)
	c1 := testutil.CreateClass(t, env.ClassRepo, "C1", "Mathematics")
	adminToken := env.token(t, admin)

	assign := func(tutorIDs ...string) []byte {
		return marchallObj(t, assignment.AssignTutors{TutorIDs: tutorIDs, ClassID: c1.ID})
	}

	runTests(t, env, []httpTest{
		{
			name: "Not a tutor", method: http.MethodPost, path: "/api/assign-tutor", token: adminToken, body: assign(student.ID),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFoundErr{Error: "tutor not found", IDs: []string{student.ID}}),
		},
		{name: "Assigned", method: http.MethodPost, path: "/api/assign-tutor", token: adminToken, body: assign(tutor.ID), wantCode: http.StatusCreated},
		{
			name: "Already assigned", method: http.MethodPost, path: "/api/assign-tutor", token: adminToken, body: assign(tutor.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, conflictErr{Error: "tutors already assigned to this class", Conflicts: []string{"Mwalimu Juma"}}),
		},
		{name: "Class tutors", path: "/api/assign-tutor/" + c1.ID, token: adminToken, wantData: marchallList(t, tutor)},
		{
			name: "Removed", method: http.MethodDelete, path: "/api/assign-tutor/remove", token: adminToken,
			body:     marchallObj(t, assignment.RemoveTutor{TutorID: tutor.ID, ClassID: c1.ID}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Tutor removed from class."}),
		},
		{name: "No tutors left", path: "/api/assign-tutor/" + c1.ID, token: adminToken, wantData: marchallList(t)},
	})

	// tutors get notified, but never emailed
	assert.NotEmpty(t, testutil.EventsOfKind(env.DB, core.EventClassTutorsChanged))
	assert.Empty(t, testutil.EventsOfKind(env.DB, core.EventEmail))
}
