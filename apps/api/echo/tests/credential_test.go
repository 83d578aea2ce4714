package tests

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/quizdesk/apps/api/echo"
	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/tests"
)

func loginBody(t *testing.T, uname, password string) []byte {
	return marshallObj(t, map[string]string{"username": uname, "password": password})
}

func Test_credentialApi_login(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Graph theory", quiz.KindAcademic, true)
	testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "alice@test.cd", pwd, true)
	testutil.CreateCredential(t, a.credRepo, q.ID, "naughty", "", pwd, false)
	locked := testutil.CreateCredential(t, a.credRepo, q.ID, "lockd", "", pwd, true)
	testutil.Lock(t, a.credRepo, locked, time.Now().Add(10*time.Minute))

	invalid := marshallObj(t, httpErr{Error: "invalid credentials"})

	tests := []httpTest{
		{
			name:     "empty data",
			body:     []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown username",
			body:     loginBody(t, "bob", pwd),
			wantCode: http.StatusBadRequest,
			wantData: invalid,
		},
		{
			name:     "wrong password",
			body:     loginBody(t, "alice", "wrong"),
			wantCode: http.StatusBadRequest,
			wantData: invalid,
		},
		{
			name:     "deactivated",
			body:     loginBody(t, "naughty", pwd),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "locked",
			body:     loginBody(t, "lockd", pwd),
			wantCode: http.StatusLocked,
			wantData: marshallObj(t, httpErr{Error: "account locked, try again later"}),
		},
		{
			name:     "success (case-insensitive username)",
			body:     loginBody(t, "  Alice ", pwd),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/credentials/login", tt.body)
			a.serve(req, rec)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				decodeToken(t, rec)
			}
		})
	}
}

func Test_credentialApi_login_lockout(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)
	cred := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "alice@test.cd", pwd, true)

	for i := 1; i <= credential.MaxFailedAttempts; i++ {
		req, rec := newRequest(http.MethodPost, "/v1/credentials/login", loginBody(t, "alice", "wrong"))
		a.serve(req, rec)
		require.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i)
	}

	cred = a.reload(t, cred.ID)
	assert.True(t, cred.Locked)
	assert.Equal(t, credential.MaxFailedAttempts, cred.FailedAttempts)
	require.NotNil(t, cred.LockExpiry)
	assert.WithinDuration(t, time.Now().Add(credential.LockDuration), *cred.LockExpiry, time.Minute)

	// the right password is rejected while locked, and nothing is recorded
	req, rec := newRequest(http.MethodPost, "/v1/credentials/login", loginBody(t, "alice", pwd))
	a.serve(req, rec)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, credential.MaxFailedAttempts, a.reload(t, cred.ID).FailedAttempts)

	// lock side effects
	sent := a.mailSvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)
	evts := a.publisher.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, core.EventCredentialLocked, evts[0].RoutingKey)

	// once the lock expired, the right password logs in and resets the counters
	testutil.Lock(t, a.credRepo, cred, time.Now().Add(-time.Second))
	req, rec = newRequest(http.MethodPost, "/v1/credentials/login", loginBody(t, "alice", pwd))
	a.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)

	cred = a.reload(t, cred.ID)
	assert.False(t, cred.Locked)
	assert.Zero(t, cred.FailedAttempts)
	assert.Nil(t, cred.LockExpiry)
	assert.NotNil(t, cred.LastLogin)
}

// brokenStateRepo fails every login state save.
type brokenStateRepo struct {
	credential.Repository
	err error
}

func (repo brokenStateRepo) SaveLoginState(context.Context, credential.Credential) error {
	return repo.err
}

func Test_credentialApi_login_persistenceFailure(t *testing.T) {
	internalErr := marshallObj(t, httpErr{Error: "Internal Server Error"})

	tests := []struct {
		name         string
		saveErr      error
		wantShutdown bool
	}{
		{name: "store error", saveErr: errors.New("disk full")},
		{
			name:         "connection lost",
			saveErr:      core.NewShutdownError(driver.ErrBadConn, "saving login state: database connection lost"),
			wantShutdown: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := setupWithCredentialRepo(t, func(repo credential.Repository) credential.Repository {
				return brokenStateRepo{Repository: repo, err: tt.saveErr}
			})
			q := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)
			cred := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "alice@test.cd", pwd, true)
			cred.FailedAttempts = credential.MaxFailedAttempts - 1
			require.NoError(t, a.credRepo.SaveLoginState(context.Background(), cred))

			// the failure that would lock and the success answer the same
			for _, password := range []string{"wrong", pwd} {
				req, rec := newRequest(http.MethodPost, "/v1/credentials/login", loginBody(t, "alice", password))
				a.serve(req, rec)
				checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError, wantData: internalErr}, rec)
			}

			got := a.reload(t, cred.ID)
			assert.Equal(t, credential.MaxFailedAttempts-1, got.FailedAttempts)
			assert.False(t, got.Locked)
			assert.Nil(t, got.LastLogin)
			assert.Empty(t, a.mailSvc.Sent())
			assert.Empty(t, a.publisher.Events())

			select {
			case <-a.server.ShutdownSignal():
				assert.True(t, tt.wantShutdown, "unexpected shutdown signal")
			default:
				assert.False(t, tt.wantShutdown, "shutdown not signaled")
			}
		})
	}
}

func Test_credentialApi_login_rateLimit(t *testing.T) {
	a := setup(t, func(conf *core.Config) {
		conf.Server.LoginRateLimit = 0.001
		conf.Server.LoginRateBurst = 2
	})

	login := func(ip string) int {
		req, rec := newRequest(http.MethodPost, "/v1/credentials/login", loginBody(t, "nobody", pwd))
		req.Header.Set("X-Real-IP", ip)
		a.serve(req, rec)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, login("10.0.0.1"))
	assert.Equal(t, http.StatusBadRequest, login("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("10.0.0.1"))
	assert.Equal(t, http.StatusBadRequest, login("10.0.0.2"), "limits are per client IP")
}

func Test_credentialApi_refreshToken(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)
	alice := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "", pwd, true)
	naughty := testutil.CreateCredential(t, a.credRepo, q.ID, "naughty", "", pwd, false)

	tests := []httpTest{
		{
			name:     "missing token",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "deactivated",
			token:    getToken(t, a.conf, naughty),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "participant", token: getToken(t, a.conf, alice), wantCode: http.StatusOK},
		{name: "admin", token: getAdminToken(t, a.conf), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/credentials/token-refresh", tt.token)
			a.serve(req, rec)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				decodeToken(t, rec)
			}
		})
	}
}

func Test_credentialApi_me(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)
	alice := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "", pwd, true)

	tests := []httpTest{
		{name: "missing token", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name:     "admin token",
			token:    getAdminToken(t, a.conf),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "participant", token: getToken(t, a.conf, alice), wantCode: http.StatusOK, wantData: marshallObj(t, alice)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/credentials/me", tt.token)
			a.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_credentialApi_changePassword(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)
	alice := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "", pwd, true)
	token := getToken(t, a.conf, alice)
	newPwd := "n3wSecret!"

	body := func(current, password, confirm string) []byte {
		return marshallObj(t, map[string]string{
			"current_password": current,
			"password":         password,
			"password_confirm": confirm,
		})
	}

	t.Run("wrong current password counts as a failed attempt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/credentials/me/password", token, body("wrong", newPwd, newPwd))
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "invalid credentials"})}, rec)
		assert.Equal(t, 1, a.reload(t, alice.ID).FailedAttempts)
	})

	t.Run("weak password", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/credentials/me/password", token, body(pwd, "12345678", "12345678"))
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		}, rec)
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/credentials/me/password", token, body(pwd, newPwd, newPwd))
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, SuccessResponse{Success: "Password has been changed."})}, rec)

		cred := a.reload(t, alice.ID)
		assert.NoError(t, cred.CheckPassword(newPwd))
		assert.Zero(t, cred.FailedAttempts)
	})
}

func Test_credentialApi_create(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Graph theory", quiz.KindAcademic, true)
	closed := testutil.CreateQuiz(t, a.quizRepo, "Old quiz", quiz.KindEvent, false)
	alice := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "", pwd, true)
	adminToken := getAdminToken(t, a.conf)
	longPwd := strings.Repeat("k9Lm#qrZ", 10)

	body := func(quizID, uname string) []byte {
		return marshallObj(t, map[string]interface{}{
			"quiz_id":          quizID,
			"username":         uname,
			"display_name":     "Team Rocket",
			"kind":             "team",
			"members":          []string{"Jessie", "James"},
			"password":         pwd,
			"password_confirm": pwd,
		})
	}

	tests := []httpTest{
		{name: "missing token", body: body(q.ID, "rocket"), wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name:     "participant token",
			body:     body(q.ID, "rocket"),
			token:    getToken(t, a.conf, alice),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "duplicate username",
			body:     body(q.ID, "ALICE"),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"username": credential.ErrUsernameExists.Error()}),
		},
		{
			name:     "unknown quiz",
			body:     body("nope", "rocket"),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"quiz_id": quiz.ErrNotFound.Error()}),
		},
		{
			name:     "inactive quiz",
			body:     body(closed.ID, "rocket"),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"quiz_id": credential.ErrQuizClosed.Error()}),
		},
		{
			name: "password too long",
			body: marshallObj(t, map[string]interface{}{
				"quiz_id":          q.ID,
				"username":         "rocket",
				"password":         longPwd,
				"password_confirm": longPwd,
			}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"password": "password cannot be longer than 72 bytes"}),
		},
		{name: "success", body: body(q.ID, "Rocket"), token: adminToken, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/credentials", tt.token, tt.body)
			a.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	created, err := a.credRepo.GetCredential(context.Background(), credential.GetFilter{Username: "rocket"})
	require.NoError(t, err)
	assert.Equal(t, credential.KindTeam, created.Kind)
	assert.Equal(t, []string{"Jessie", "James"}, created.Members)
	assert.True(t, created.IsActive)
	assert.NoError(t, created.CheckPassword(pwd))
}

func Test_credentialApi_query(t *testing.T) {
	a := setup(t)
	q1 := testutil.CreateQuiz(t, a.quizRepo, "Graph theory", quiz.KindAcademic, true)
	q2 := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)

	now := time.Now()
	alice := testutil.CreateCredential(t, a.credRepo, q1.ID, "alice", "", pwd, true, now.Add(-3*time.Hour))
	bob := testutil.CreateCredential(t, a.credRepo, q1.ID, "bob_01", "", pwd, true, now.Add(-2*time.Hour))
	carol := testutil.CreateCredential(t, a.credRepo, q2.ID, "carol", "", pwd, false, now.Add(-time.Hour))
	bob = testutil.Lock(t, a.credRepo, bob, now.Add(time.Hour))

	adminToken := getAdminToken(t, a.conf)
	path := func(v url.Values) string { return "/v1/credentials?" + v.Encode() }

	tests := []httpTest{
		{name: "all, newest first", path: path(nil), wantData: marshallList(t, carol, bob, alice)},
		{name: "ordering", path: path(url.Values{"ordering": {"username"}}), wantData: marshallList(t, alice, bob, carol)},
		{name: "quiz", path: path(url.Values{"quiz_id": {q1.ID}, "ordering": {"username"}}), wantData: marshallList(t, alice, bob)},
		{name: "locked", path: path(url.Values{"locked": {"true"}}), wantData: marshallList(t, bob)},
		{name: "inactive", path: path(url.Values{"is_active": {"false"}}), wantData: marshallList(t, carol)},
		{name: "search", path: path(url.Values{"search": {"AL"}}), wantData: marshallList(t, alice)},
		{name: "no match", path: path(url.Values{"search": {"zed"}}), wantData: marshallList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.wantCode = http.StatusOK
			req, rec := newAuthRequest(http.MethodGet, tt.path, adminToken)
			a.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_credentialApi_detail(t *testing.T) {
	a := setup(t)
	q := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true)
	alice := testutil.CreateCredential(t, a.credRepo, q.ID, "alice", "alice@test.cd", pwd, true)
	adminToken := getAdminToken(t, a.conf)

	t.Run("not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/credentials/nope", adminToken)
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/credentials/"+alice.ID, adminToken)
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, alice)}, rec)
	})

	t.Run("participant cannot read others", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/credentials/"+alice.ID, getToken(t, a.conf, alice))
		a.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		data := marshallObj(t, map[string]string{"display_name": "Alice Liddell"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/credentials/"+alice.ID, adminToken, data)
		a.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var got credential.Credential
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Alice Liddell", got.DisplayName)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "alice@test.cd", got.Email)
	})

	t.Run("unlock", func(t *testing.T) {
		a.publisher.Reset()
		testutil.Lock(t, a.credRepo, a.reload(t, alice.ID), time.Now().Add(time.Hour))

		req, rec := newAuthRequest(http.MethodPost, "/v1/credentials/"+alice.ID+"/unlock", adminToken)
		a.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		cred := a.reload(t, alice.ID)
		assert.False(t, cred.Locked)
		assert.Zero(t, cred.FailedAttempts)
		evts := a.publisher.Events()
		require.Len(t, evts, 1)
		assert.Equal(t, core.EventCredentialUnlocked, evts[0].RoutingKey)
	})

	t.Run("reset password", func(t *testing.T) {
		testutil.Lock(t, a.credRepo, a.reload(t, alice.ID), time.Now().Add(time.Hour))
		newPwd := "r3setByAdmin"
		data := marshallObj(t, map[string]string{"password": newPwd, "password_confirm": newPwd})

		req, rec := newAuthRequest(http.MethodPost, "/v1/credentials/"+alice.ID+"/reset-password", adminToken, data)
		a.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		cred := a.reload(t, alice.ID)
		assert.False(t, cred.IsCurrentlyLocked(time.Now()))
		assert.NoError(t, cred.CheckPassword(newPwd))

		req, rec = newRequest(http.MethodPost, "/v1/credentials/login", loginBody(t, "alice", newPwd))
		a.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("deactivate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/credentials/"+alice.ID, adminToken)
		a.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, a.reload(t, alice.ID).IsActive)
	})
}
