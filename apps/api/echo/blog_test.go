package echoapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/blog"
	"github.com/trezcool/mwalimu/core/user"
	"github.com/trezcool/mwalimu/testutil"
)

func createBlog(t *testing.T, env *testEnv, author user.User, title, content string) blog.Blog {
	t.Helper()
	b, err := env.Blogs.Create(context.Background(), author, blog.NewBlog{Title: title, Content: content})
	if err != nil {
		t.Fatalf("createBlog() failed: %v", err)
	}
	return b
}

func Test_blogApi_crud(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateRoleUser(t, env.UserRepo, "admin", user.RoleAdmin)
	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	student := testutil.CreateRoleUser(t, env.UserRepo, "hero", user.RoleStudent)
	fractions := createBlog(t, env, tutor, "Fractions made easy", "Halves and quarters.")
	revision := createBlog(t, env, student, "My revision plan", "Flashcards every morning.")
	tutorToken := env.token(t, tutor)
	studentToken := env.token(t, student)

	runTests(t, env, []httpTest{
		{name: "Auth required", path: "/api/blogs", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/api/blogs", token: studentToken, wantData: marchallList(t, fractions, revision)},
		{name: "authorId", path: "/api/blogs?authorId=" + tutor.ID, token: studentToken, wantData: marchallList(t, fractions)},
		{name: "search", path: "/api/blogs?search=FLASHCARDS", token: studentToken, wantData: marchallList(t, revision)},
		{name: "Retrieve", path: "/api/blogs/" + fractions.ID, token: studentToken, wantData: marchallObj(t, fractions)},
		{
			name: "Retrieve (unknown)", path: "/api/blogs/nope", token: studentToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "blog not found"}),
		},
		{
			name: "Create (validation)", method: http.MethodPost, path: "/api/blogs", token: studentToken,
			body:     marchallObj(t, blog.NewBlog{Title: strings.Repeat("a", 201)}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title":   "title must be a maximum of 200 characters in length",
				"content": "this field is required",
			}),
		},
		{
			name: "Update (not the author)", method: http.MethodPut, path: "/api/blogs/" + fractions.ID, token: studentToken,
			body:     marchallObj(t, blog.UpdateBlog{Title: "Mine now", Content: "..."}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the author or an admin can do this"}),
		},
		{
			name: "Delete (not the author)", method: http.MethodDelete, path: "/api/blogs/" + fractions.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the author or an admin can do this"}),
		},
	})

	t.Run("Created", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/blogs", tutorToken, marchallObj(t, blog.NewBlog{Title: " Decimals ", Content: "Tenths."}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var b blog.Blog
		unmarshal(t, rec, &b)
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, tutor.ID, b.AuthorID)
		assert.Equal(t, "Decimals", b.Title)
	})

	t.Run("Updated by the author", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/api/blogs/"+fractions.ID, tutorToken,
			marchallObj(t, blog.UpdateBlog{Title: "Fractions, made easy", Content: "Halves, thirds and quarters."}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var b blog.Blog
		unmarshal(t, rec, &b)
		assert.Equal(t, "Fractions, made easy", b.Title)
		assert.Equal(t, fractions.CreatedAt, b.CreatedAt)
	})

	runTests(t, env, []httpTest{
		{name: "Deleted by an admin", method: http.MethodDelete, path: "/api/blogs/" + revision.ID, token: env.token(t, admin), wantCode: http.StatusNoContent},
		{
			name: "Gone", path: "/api/blogs/" + revision.ID, token: studentToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "blog not found"}),
		},
	})
}

func Test_blogApi_setImage(t *testing.T) {
	env := setup(t)

	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	student := testutil.CreateRoleUser(t, env.UserRepo, "hero", user.RoleStudent)
	b := createBlog(t, env, tutor, "Geometry", "Angles.")
	path := "/api/blogs/" + b.ID + "/image"

	upload := func(token, filename string, content []byte) *httptest.ResponseRecorder {
		req, rec := newUploadRequest(t, http.MethodPut, path, token, filename, content, nil)
		env.server.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Not the author", func(t *testing.T) {
		rec := upload(env.token(t, student), "cover.png", pngBytes(t, 10, 10))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "only the author or an admin can do this"}),
		}, rec)
	})

	t.Run("File required", func(t *testing.T) {
		rec := upload(env.token(t, tutor), "", nil)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		}, rec)
	})

	t.Run("Uploaded", func(t *testing.T) {
		rec := upload(env.token(t, tutor), "cover.png", pngBytes(t, 40, 20))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated blog.Blog
		unmarshal(t, rec, &updated)
		assert.True(t, strings.HasPrefix(updated.Image, "/media/blogs/"), updated.Image)

		rec = env.do(http.MethodGet, updated.Image, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_blogApi_commentsAndLikes(t *testing.T) {
	env := setup(t)

	tutor := testutil.CreateRoleUser(t, env.UserRepo, "tutor", user.RoleTutor)
	student := testutil.CreateRoleUser(t, env.UserRepo, "hero", user.RoleStudent)
	other := testutil.CreateRoleUser(t, env.UserRepo, "other", user.RoleStudent)
	b := createBlog(t, env, tutor, "Geometry", "Angles.")
	tutorToken := env.token(t, tutor)
	studentToken := env.token(t, student)

	var comment blog.Comment
	t.Run("Commented", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/blogs/"+b.ID+"/comments", studentToken, marchallObj(t, blog.NewComment{Content: " Great post! "}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &comment)
		assert.Equal(t, "Great post!", comment.Content)
		assert.Equal(t, student.ID, comment.AuthorID)
		assert.Equal(t, b.ID, comment.BlogID)
	})

	t.Run("Own comment is not notified", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/blogs/"+b.ID+"/comments", tutorToken, marchallObj(t, blog.NewComment{Content: "Thanks"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		events := testutil.EventsOfKind(env.DB, core.EventBlogCommented)
		require.Len(t, events, 1)
		assert.Equal(t, []string{tutor.ID}, events[0].Recipients)
	})

	runTests(t, env, []httpTest{
		{
			name: "Comment (validation)", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/comments", token: studentToken,
			body:     marchallObj(t, blog.NewComment{Content: "   "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
		{
			name: "Comment (unknown blog)", method: http.MethodPost, path: "/api/blogs/nope/comments", token: studentToken,
			body:     marchallObj(t, blog.NewComment{Content: "Hello"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "blog not found"}),
		},
		{
			name: "Delete someone else's comment", method: http.MethodDelete, path: "/api/blogs/comments/" + comment.ID, token: env.token(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the author or an admin can do this"}),
		},
		{
			name: "Like", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/like", token: studentToken,
			wantData: marchallObj(t, blog.LikeResult{Liked: true, LikeCount: 1}),
		},
		{
			name: "Like (again)", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/like", token: studentToken,
			wantData: marchallObj(t, blog.LikeResult{Liked: true, LikeCount: 1}),
		},
		{
			name: "Like (other)", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/like", token: env.token(t, other),
			wantData: marchallObj(t, blog.LikeResult{Liked: true, LikeCount: 2}),
		},
		{
			name: "Unlike", method: http.MethodDelete, path: "/api/blogs/" + b.ID + "/like", token: studentToken,
			wantData: marchallObj(t, blog.LikeResult{Liked: false, LikeCount: 1}),
		},
		{
			name: "Unlike (again)", method: http.MethodDelete, path: "/api/blogs/" + b.ID + "/like", token: studentToken,
			wantData: marchallObj(t, blog.LikeResult{Liked: false, LikeCount: 1}),
		},
	})

	t.Run("Counts", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/blogs/"+b.ID, studentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got blog.Blog
		unmarshal(t, rec, &got)
		assert.Equal(t, 1, got.LikeCount)
		assert.Equal(t, 2, got.CommentCount)

		// one like event per new like by someone else than the author
		assert.Len(t, testutil.EventsOfKind(env.DB, core.EventBlogLiked), 2)
	})

	runTests(t, env, []httpTest{
		{name: "Comment deleted", method: http.MethodDelete, path: "/api/blogs/comments/" + comment.ID, token: studentToken, wantCode: http.StatusNoContent},
		{
			name: "Comment gone", method: http.MethodDelete, path: "/api/blogs/comments/" + comment.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "comment not found"}),
		},
	})

	t.Run("Comments", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/blogs/"+b.ID+"/comments", studentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var comments []blog.Comment
		unmarshal(t, rec, &comments)
		require.Len(t, comments, 1)
		assert.Equal(t, "Thanks", comments[0].Content)
	})
}
