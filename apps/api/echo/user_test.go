package echoapi_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mwalimu/apps/api/echo"
	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
	"github.com/trezcool/mwalimu/testutil"
)

const strongPwd = "Xq9!vB#7zKw2"

func pngBytes(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}

func Test_server_home(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Mwalimu API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", strongPwd, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog", "ndog@test.cd", strongPwd, []string{user.RoleStudent}, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	tests := []httpTest{
		{
			name: "Missing credentials", body: login("", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown user", body: login("nobody", strongPwd), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", body: login("hero", "nope"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Inactive user", body: login("ndog", strongPwd), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/login"
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Username or email, case insensitive", func(t *testing.T) {
		for _, uname := range []string{"hero", "HERO", "hero@test.cd"} {
			rec := env.do(http.MethodPost, "/api/users/login", "", login(uname, strongPwd))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			// the token grants access
			rec = env.do(http.MethodGet, "/api/users/me", resp.Token)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	ghost := user.User{ID: "ghost", Roles: []string{user.RoleAdmin}}

	runTests(t, env, []httpTest{
		{name: "Auth required", path: "/api/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Invalid token", path: "/api/users/me", token: "lol", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Deleted user", path: "/api/users/me", token: env.token(t, ghost), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "Inactive user", path: "/api/users/me", token: env.token(t, naughty), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "Me", path: "/api/users/me", token: env.token(t, student), wantData: marchallObj(t, student)},
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)

	naughty := testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    env.Conf.AppName,
			Subject:   student.ID,
			Audience:  "Tutoring",
			ExpiresAt: now.Add(env.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * env.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    true,
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(env.Conf, unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	runTests(t, env, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/api/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", method: http.MethodPost, path: "/api/users/token-refresh", token: env.token(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", method: http.MethodPost, path: "/api/users/token-refresh", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("Token refreshed", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/users/token-refresh", env.token(t, student))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(env.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, student.ID, claims.Subject)
		assert.True(t, claims.IsStudent)
		assert.False(t, claims.IsAdmin)
	})
}

func Test_userApi_create(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	tutor := testutil.CreateUser(t, env.UserRepo, "Tutor", "tutor", "tutor@test.cd", "", []string{user.RoleTutor}, true)
	testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := env.token(t, admin)

	newUser := func(name, uname, email, pwd string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		})
	}
	path := "/api/users/register"

	runTests(t, env, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", method: http.MethodPost, path: path, token: env.token(t, tutor),
			body:     newUser("New", "new", "new@test.cd", strongPwd),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Username or email required", method: http.MethodPost, path: path, token: adminToken,
			body:     newUser("New", "", "", strongPwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "one of username or email is required",
				"email":    "one of username or email is required",
			}),
		},
		{
			name: "Weak password", method: http.MethodPost, path: path, token: adminToken,
			body:     newUser("New", "new", "new@test.cd", "password"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
			}),
		},
		{
			name: "Invalid roles", method: http.MethodPost, path: path, token: adminToken,
			body:     newUser("New", "new", "new@test.cd", strongPwd, "janitor"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
		{
			name: "Duplicate username", method: http.MethodPost, path: path, token: adminToken,
			body:     newUser("New", "HERO", "new@test.cd", strongPwd),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "Duplicate email", method: http.MethodPost, path: path, token: adminToken,
			body:     newUser("New", "new", "Hero@Test.cd", strongPwd),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
	})

	t.Run("Created", func(t *testing.T) {
		rec := env.do(http.MethodPost, path, adminToken, newUser(" New Student ", "Pupil_1", "", strongPwd, user.RoleStudent))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "New Student", usr.Name)
		assert.Equal(t, "pupil_1", usr.Username)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.True(t, usr.IsActive)

		// the new user can log in
		rec = env.do(http.MethodPost, "/api/users/login", "", marchallObj(t, echoapi.LoginRequest{Username: "pupil_1", Password: strongPwd}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Email only", func(t *testing.T) {
		rec := env.do(http.MethodPost, path, adminToken, newUser("Mail Only", "", "only@test.cd", strongPwd, user.RoleTutor))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		// a second user without username does not collide on the empty username
		rec = env.do(http.MethodPost, path, adminToken, newUser("Mail Too", "", "too@test.cd", strongPwd, user.RoleTutor))
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	now := time.Now()
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, now.Add(1*time.Hour))
	tutor := testutil.CreateUser(t, env.UserRepo, "Tutor", "tutor", "tutor@test.cd", "", []string{user.RoleTutor}, true, now.Add(2*time.Hour))
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false, now.Add(4*time.Hour))
	adminToken := env.token(t, admin)

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/api/users?" + v.Encode()
	}

	runTests(t, env, []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: env.token(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/api/users", token: adminToken, wantData: marchallList(t, naughty, student, tutor, admin)},
		{name: "search (unknown)", path: path("search", "lol"), token: adminToken, wantData: marchallList(t)},
		{name: "search=TUT", path: path("search", "TUT"), token: adminToken, wantData: marchallList(t, tutor)},
		{name: "role=student", path: path("role", user.RoleStudent), token: adminToken, wantData: marchallList(t, naughty, student)},
		{
			name: "role=tutor,admin", path: path("role", user.RoleTutor, "role", user.RoleAdmin), token: adminToken,
			wantData: marchallList(t, tutor, admin),
		},
		{name: "isActive=false", path: path("isActive", "false"), token: adminToken, wantData: marchallList(t, naughty)},
		{name: "order by name", path: path("ordering", "name"), token: adminToken, wantData: marchallList(t, admin, student, naughty, tutor)},
		{name: "Roles", path: "/api/users/roles", token: adminToken, wantData: marchallObj(t, user.Roles)},
	})

	// ordering is checked on the raw body: jsonBytesEqual ignores the order of list items
	t.Run("order by created_at", func(t *testing.T) {
		rec := env.do(http.MethodGet, path("ordering", "created_at"), adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var users []user.User
		unmarshal(t, rec, &users)
		assert.Equal(t, []string{admin.ID, tutor.ID, student.ID, naughty.ID}, user.IDs(users))
	})
}

func Test_userApi_retrieveUpdate(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", []string{user.RoleStudent}, true)
	studentToken := env.token(t, student)
	studentPath := "/api/users/" + student.ID

	runTests(t, env, []httpTest{
		{name: "Self", path: studentPath, token: studentToken, wantData: marchallObj(t, student)},
		{name: "Admin", path: studentPath, token: env.token(t, admin), wantData: marchallObj(t, student)},
		{
			name: "Someone else", path: "/api/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Unknown", path: "/api/users/unknown", token: env.token(t, admin), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Student cannot change roles", method: http.MethodPut, path: studentPath, token: studentToken,
			body:     marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdmin}}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	t.Run("Student renames self", func(t *testing.T) {
		rec := env.do(http.MethodPut, studentPath, studentToken, marchallObj(t, user.UpdateUser{Name: "Super Hero"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "Super Hero", usr.Name)
		assert.Equal(t, "hero", usr.Username)
	})

	t.Run("Admin deactivates", func(t *testing.T) {
		inactive := false
		rec := env.do(http.MethodPut, studentPath, env.token(t, admin), marchallObj(t, user.UpdateUser{IsActive: &inactive}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(http.MethodGet, "/api/users/me", studentToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_userApi_setAvatar(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	token := env.token(t, student)
	path := "/api/users/" + student.ID + "/avatar"

	t.Run("File required", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPut, path, token, "", nil, nil)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"file": "this field is required"}`, rec.Body.String())
	})

	t.Run("Not an image", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPut, path, token, "notes.txt", []byte("just some text"), nil)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"file": "only jpeg and png images are allowed"}`, rec.Body.String())
	})

	t.Run("Too wide images are downscaled", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPut, path, token, "me.png", pngBytes(t, 2048, 16), nil)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		require.True(t, strings.HasPrefix(usr.Avatar, env.Conf.Media.URLPrefix+"/avatars/"), usr.Avatar)

		// served as static media
		rec = env.do(http.MethodGet, usr.Avatar, "")
		require.Equal(t, http.StatusOK, rec.Code)
		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, env.Conf.Media.MaxImageWidth, img.Bounds().Dx())
	})
}

func Test_userApi_destroy(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", []string{user.RoleStudent}, true)
	third := testutil.CreateUser(t, env.UserRepo, "Third", "third", "third@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := env.token(t, admin)

	runTests(t, env, []httpTest{
		{
			name: "Student cannot delete self", method: http.MethodDelete, path: "/api/users/" + student.ID,
			token: env.token(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admin cannot delete self", method: http.MethodDelete, path: "/api/users/" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admin cannot delete self among others", method: http.MethodDelete,
			path:  "/api/users?id=" + other.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Deleted", method: http.MethodDelete, path: "/api/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "Deleted many", method: http.MethodDelete, path: "/api/users?id=" + other.ID + "&id=" + third.ID,
			token: adminToken, wantCode: http.StatusNoContent,
		},
		{name: "Only admin is left", path: "/api/users", token: adminToken, wantData: marchallList(t, admin)},
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)

	testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", strongPwd, []string{user.RoleStudent}, true)

	success := echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	}
	runTests(t, env, []httpTest{
		{
			name: "Email required", method: http.MethodPost, path: "/api/users/password-reset",
			body:     marchallObj(t, echoapi.PasswordResetRequest{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "Unknown email looks the same", method: http.MethodPost, path: "/api/users/password-reset",
			body: marchallObj(t, echoapi.PasswordResetRequest{Email: "nobody@test.cd"}), wantData: marchallObj(t, success),
		},
		{
			name: "Known email", method: http.MethodPost, path: "/api/users/password-reset",
			body: marchallObj(t, echoapi.PasswordResetRequest{Email: "HERO@test.cd"}), wantData: marchallObj(t, success),
		},
		{
			name: "Invalid link", method: http.MethodPost, path: "/api/users/password-reset-confirm",
			body: marchallObj(t, user.ResetUserPassword{
				Token: "abc-def", UID: "bad", Password: strongPwd, PasswordConfirm: strongPwd,
			}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "invalid or expired password reset link"}),
		},
	})

	// only the known email queued a message
	events := testutil.EventsOfKind(env.DB, core.EventEmail)
	require.Len(t, events, 1)
	assert.Contains(t, string(events[0].Payload), "hero@test.cd")
}
