package assignment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/assignment"
	"github.com/trezcool/mwalimu/core/user"
	"github.com/trezcool/mwalimu/testutil"
)

func TestService_AssignStudents(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	admin := testutil.CreateRoleUser(t, app.UserRepo, "admin", user.RoleAdmin)
	amani := testutil.CreateRoleUser(t, app.UserRepo, "amani", user.RoleStudent)
	baraka := testutil.CreateRoleUser(t, app.UserRepo, "baraka", user.RoleStudent)
	tutor := testutil.CreateRoleUser(t, app.UserRepo, "tutor", user.RoleTutor)
	cls := testutil.CreateClass(t, app.ClassRepo, "C1", "Mathematics")

	t.Run("unknown class", func(t *testing.T) {
		_, err := app.Ledger.AssignStudents(ctx, assignment.AssignStudents{StudentIDs: []string{amani.ID}, ClassID: "nope"}, admin)
		assert.True(t, core.IsNotFound(err), err)
	})

	t.Run("not a student", func(t *testing.T) {
		_, err := app.Ledger.AssignStudents(ctx, assignment.AssignStudents{StudentIDs: []string{amani.ID, tutor.ID}, ClassID: cls.ID}, admin)
		var nf *core.NotFoundError
		require.True(t, errors.As(err, &nf), err)
		assert.Equal(t, "student", nf.Resource)
		assert.Equal(t, []string{tutor.ID}, nf.IDs)
	})

	t.Run("assigned", func(t *testing.T) {
		res, err := app.Ledger.AssignStudents(ctx, assignment.AssignStudents{StudentIDs: []string{amani.ID}, ClassID: cls.ID}, admin)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
		require.Len(t, res.Assigned, 1)
		assert.Equal(t, admin.ID, res.Assigned[0].AssignedBy)
		assert.Equal(t, assignment.Students, res.Assigned[0].Ledger)
	})

	t.Run("existing members skipped", func(t *testing.T) {
		res, err := app.Ledger.AssignStudents(ctx, assignment.AssignStudents{StudentIDs: []string{amani.ID, baraka.ID}, ClassID: cls.ID}, admin)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
		assert.Equal(t, []string{baraka.ID}, assignment.MemberIDs(res.Assigned))
	})

	t.Run("all already assigned", func(t *testing.T) {
		_, err := app.Ledger.AssignStudents(ctx, assignment.AssignStudents{StudentIDs: []string{amani.ID, baraka.ID}, ClassID: cls.ID}, admin)
		var conflict *core.ConflictError
		require.True(t, errors.As(err, &conflict), err)
		assert.Equal(t, "students already assigned to this class", conflict.Msg)
		assert.ElementsMatch(t, []string{"amani", "baraka"}, conflict.Items)
	})

	t.Run("members notified", func(t *testing.T) {
		events := testutil.EventsOfKind(app.DB, core.EventClassRosterChanged)
		require.Len(t, events, 2)
		assert.Equal(t, []string{amani.ID}, events[0].Recipients)
		assert.Equal(t, []string{baraka.ID}, events[1].Recipients)

		emails := testutil.EventsOfKind(app.DB, core.EventEmail)
		require.Len(t, emails, 2)
		assert.Equal(t, []string{amani.Email}, emails[0].Recipients)
	})

	t.Run("roster", func(t *testing.T) {
		roster, err := app.Ledger.Roster(ctx, cls.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{amani.ID, baraka.ID}, user.IDs(roster))
	})
}

func TestService_UpdateTutors(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	admin := testutil.CreateRoleUser(t, app.UserRepo, "admin", user.RoleAdmin)
	juma := testutil.CreateRoleUser(t, app.UserRepo, "juma", user.RoleTutor)
	neema := testutil.CreateRoleUser(t, app.UserRepo, "neema", user.RoleTutor)
	cls := testutil.CreateClass(t, app.ClassRepo, "C1", "Physics")
	testutil.Assign(t, app.AssignmentRepo, assignment.Tutors, cls.ID, juma.ID)

	res, err := app.Ledger.UpdateTutors(ctx, cls.ID, assignment.UpdateMembers{Add: []string{neema.ID}, Remove: []string{juma.ID}}, admin)
	require.NoError(t, err)
	assert.Equal(t, assignment.UpdateResult{Added: 1, Removed: 1}, res)

	tutors, err := app.Ledger.Tutors(ctx, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{neema.ID}, user.IDs(tutors))

	events := testutil.EventsOfKind(app.DB, core.EventClassTutorsChanged)
	require.Len(t, events, 2)
	assert.Equal(t, []string{neema.ID}, events[0].Recipients)
	assert.Equal(t, []string{juma.ID}, events[1].Recipients)
	assert.Empty(t, testutil.EventsOfKind(app.DB, core.EventEmail), "tutors are not emailed")

	// removing someone who is not assigned is a no-op
	res, err = app.Ledger.UpdateTutors(ctx, cls.ID, assignment.UpdateMembers{Remove: []string{juma.ID}}, admin)
	require.NoError(t, err)
	assert.Equal(t, assignment.UpdateResult{}, res)
}

func TestService_RemoveStudent(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	student := testutil.CreateRoleUser(t, app.UserRepo, "hero", user.RoleStudent)
	cls := testutil.CreateClass(t, app.ClassRepo, "C1", "Chemistry")
	testutil.Assign(t, app.AssignmentRepo, assignment.Students, cls.ID, student.ID)

	require.NoError(t, app.Ledger.RemoveStudent(ctx, assignment.RemoveStudent{StudentID: student.ID, ClassID: cls.ID}))

	err := app.Ledger.RemoveStudent(ctx, assignment.RemoveStudent{StudentID: student.ID, ClassID: cls.ID})
	assert.True(t, core.IsNotFound(err), err)

	ok, err := app.Ledger.IsMember(ctx, assignment.Students, student.ID, cls.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, testutil.EventsOfKind(app.DB, core.EventClassRosterChanged), 1)
}

func TestService_Lookups(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	student := testutil.CreateRoleUser(t, app.UserRepo, "hero", user.RoleStudent)
	tutor := testutil.CreateRoleUser(t, app.UserRepo, "tutor", user.RoleTutor)
	c1 := testutil.CreateClass(t, app.ClassRepo, "C1", "Biology")
	c2 := testutil.CreateClass(t, app.ClassRepo, "C2", "History")
	c3 := testutil.CreateClass(t, app.ClassRepo, "C3", "Geography")
	testutil.Assign(t, app.AssignmentRepo, assignment.Students, c2.ID, student.ID)
	testutil.Assign(t, app.AssignmentRepo, assignment.Students, c1.ID, student.ID)
	testutil.Assign(t, app.AssignmentRepo, assignment.Tutors, c3.ID, tutor.ID)

	classes, err := app.Ledger.ClassesForStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "C1", classes[0].Name)
	assert.Equal(t, "C2", classes[1].Name)

	classes, err = app.Ledger.ClassesForTutor(ctx, tutor.ID)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, c3.ID, classes[0].ID)

	_, err = app.Ledger.ClassesForStudent(ctx, "nope")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	ids, err := app.Ledger.ClassIDsOf(ctx, student.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c1.ID, c2.ID}, ids)

	empty, err := app.Ledger.WithoutStudents(ctx, []string{c1.ID, c3.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{c3.ID}, empty)

	members, err := app.Ledger.MemberIDs(ctx, assignment.Students)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestUpdateMembers_Validate(t *testing.T) {
	var vErr *core.ValidationError

	um := assignment.UpdateMembers{Add: []string{" "}}
	require.True(t, errors.As(um.Validate(), &vErr))
	assert.Len(t, vErr.Fields, 2)

	um = assignment.UpdateMembers{Add: []string{"a", "b"}, Remove: []string{"b"}}
	require.True(t, errors.As(um.Validate(), &vErr))
	assert.Equal(t, []core.FieldError{{Field: "remove", Error: "cannot both add and remove the same member"}}, vErr.Fields)

	um = assignment.UpdateMembers{Add: []string{" a ", "a"}}
	require.NoError(t, um.Validate())
	assert.Equal(t, []string{"a"}, um.Add)
}
