package sqlxrepos_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/core/settings"
	"github.com/trezcool/quizdesk/storage/database/sqlx"
	"github.com/trezcool/quizdesk/tests"
)

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	quizRepo := sqlxrepos.NewQuizRepository(db)
	repo := sqlxrepos.NewCredentialRepository(db)

	q := testutil.CreateQuiz(t, quizRepo, "Operating systems", quiz.KindAcademic, true)
	t0 := time.Now().UTC().Truncate(time.Microsecond)
	alice := testutil.CreateCredential(t, repo, q.ID, "alice", "alice@test.cd", "s3cretPass", true, t0)
	bob := testutil.CreateCredential(t, repo, q.ID, "bob", "", "", false, t0.Add(time.Minute))

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetCredential(ctx, credential.GetFilter{Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, q.ID, got.QuizID)
		assert.True(t, got.CreatedAt.Equal(t0))
		assert.NoError(t, got.CheckPassword("s3cretPass"))
		assert.Nil(t, got.LockExpiry)
		assert.Nil(t, got.LastLogin)

		_, err = repo.GetCredential(ctx, credential.GetFilter{ID: "unknown"})
		assert.Equal(t, credential.ErrNotFound, err)
		_, err = repo.GetCredential(ctx, credential.GetFilter{})
		assert.Equal(t, credential.ErrNotFound, err)
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, credential.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "alice"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "alice", alice))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "carol"))

		dup := alice
		dup.ID = "another-id"
		_, err := repo.CreateCredential(ctx, dup)
		assert.Equal(t, credential.ErrUsernameExists, err)
	})

	t.Run("login state", func(t *testing.T) {
		expiry := t0.Add(credential.LockDuration)
		cred := alice
		cred.FailedAttempts = 5
		cred.Locked = true
		cred.LockExpiry = &expiry
		require.NoError(t, repo.SaveLoginState(ctx, cred))

		got, err := repo.GetCredential(ctx, credential.GetFilter{ID: alice.ID})
		require.NoError(t, err)
		assert.Equal(t, 5, got.FailedAttempts)
		assert.True(t, got.Locked)
		require.NotNil(t, got.LockExpiry)
		assert.True(t, got.LockExpiry.Equal(expiry))
		assert.True(t, got.IsCurrentlyLocked(t0))
		assert.False(t, got.IsCurrentlyLocked(expiry))

		login := t0.Add(time.Hour)
		got.FailedAttempts, got.Locked, got.LockExpiry, got.LastLogin = 0, false, nil, &login
		require.NoError(t, repo.SaveLoginState(ctx, got))
		got, err = repo.GetCredential(ctx, credential.GetFilter{ID: alice.ID})
		require.NoError(t, err)
		assert.Zero(t, got.FailedAttempts)
		assert.False(t, got.Locked)
		assert.Nil(t, got.LockExpiry)
		require.NotNil(t, got.LastLogin)
		assert.True(t, got.LastLogin.Equal(login))

		assert.Equal(t, credential.ErrNotFound, repo.SaveLoginState(ctx, credential.Credential{ID: "unknown"}))
	})

	t.Run("update", func(t *testing.T) {
		cred := bob
		cred.DisplayName = "Bobby"
		cred.Members = []string{"Bob", "Rob"}
		cred.IsActive = true
		cred.PasswordHash = nil // keep the current one
		got, err := repo.UpdateCredential(ctx, cred)
		require.NoError(t, err)
		assert.Equal(t, "Bobby", got.DisplayName)
		assert.Equal(t, []string{"Bob", "Rob"}, got.Members)
		assert.True(t, got.IsActive)
		assert.Equal(t, bob.PasswordHash, got.PasswordHash)

		cred.Username = "alice"
		_, err = repo.UpdateCredential(ctx, cred)
		assert.Equal(t, credential.ErrUsernameExists, err)
	})

	t.Run("filter", func(t *testing.T) {
		ids := func(creds []credential.Credential) []string {
			res := make([]string, 0, len(creds))
			for _, c := range creds {
				res = append(res, c.ID)
			}
			return res
		}
		bTrue := true

		creds, err := repo.FilterCredentials(ctx, credential.QueryFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID, alice.ID}, ids(creds))

		creds, err = repo.FilterCredentials(ctx, credential.QueryFilter{Search: "BOBB"})
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID}, ids(creds))

		creds, err = repo.FilterCredentials(ctx, credential.QueryFilter{QuizID: q.ID, IsActive: &bTrue},
			core.DBOrdering{Field: "username", Ascending: true}, core.DBOrdering{Field: "password_hash; DROP TABLE credentials"})
		require.NoError(t, err)
		assert.Equal(t, []string{alice.ID, bob.ID}, ids(creds))

		creds, err = repo.FilterCredentials(ctx, credential.QueryFilter{Locked: &bTrue})
		require.NoError(t, err)
		assert.Empty(t, creds)
	})
}

func TestQuizRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewQuizRepository(testutil.PrepareDB(t))

	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	q := testutil.CreateQuiz(t, repo, "Data structures", quiz.KindAcademic, true)
	ev := testutil.CreateQuiz(t, repo, "Quiz night", quiz.KindEvent, true, time.Now().Add(time.Minute))

	got, err := repo.GetQuiz(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "2-1:A", got.Class())
	assert.Nil(t, got.StartsAt)

	got.Sections = []string{"A", "B"}
	got.StartsAt = &start
	got.IsActive = false
	got, err = repo.UpdateQuiz(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "2-1:A,B", got.Class())
	require.NotNil(t, got.StartsAt)
	assert.True(t, got.StartsAt.Equal(start))
	assert.False(t, got.IsActive)

	_, err = repo.GetQuiz(ctx, "unknown")
	assert.Equal(t, quiz.ErrNotFound, err)
	_, err = repo.UpdateQuiz(ctx, quiz.Quiz{ID: "unknown"})
	assert.Equal(t, quiz.ErrNotFound, err)

	quizzes, err := repo.FilterQuizzes(ctx, quiz.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, quizzes, 2)
	assert.Equal(t, ev.ID, quizzes[0].ID)

	quizzes, err = repo.FilterQuizzes(ctx, quiz.QueryFilter{Kind: quiz.KindAcademic, Search: "algo"})
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, q.ID, quizzes[0].ID)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewSettingsRepository(testutil.PrepareDB(t))

	_, err := repo.GetSettings(ctx, "engineering")
	assert.Equal(t, settings.ErrNotFound, err)

	svc := settings.NewService(repo)
	require.NoError(t, svc.SetOverridePassword(ctx, "engineering", "first override pwd"))
	require.NoError(t, svc.SetOverridePassword(ctx, "engineering", "second override pwd"))

	assert.Equal(t, settings.ErrInvalidOverride, svc.VerifyOverride(ctx, "engineering", "first override pwd"))
	assert.NoError(t, svc.VerifyOverride(ctx, "engineering", "second override pwd"))
}

// lostConn behaves like an executor whose database connection is gone for good.
type lostConn struct {
	core.DBExecutor
}

func (lostConn) DriverName() string { return "postgres" }
func (lostConn) Rebind(query string) string { return sqlx.Rebind(sqlx.DOLLAR, query) }

func (lostConn) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, driver.ErrBadConn
}

func (lostConn) QueryxContext(context.Context, string, ...interface{}) (*sqlx.Rows, error) {
	return nil, sql.ErrConnDone
}

func TestRepositories_connectionLost(t *testing.T) {
	ctx := context.Background()
	credRepo := sqlxrepos.NewCredentialRepository(lostConn{})
	settingsRepo := sqlxrepos.NewSettingsRepository(lostConn{})

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name:    "save login state",
			run:     func() error { return credRepo.SaveLoginState(ctx, credential.Credential{ID: "some-id"}) },
			wantErr: driver.ErrBadConn,
		},
		{
			name: "filter credentials",
			run: func() error {
				_, err := credRepo.FilterCredentials(ctx, credential.QueryFilter{})
				return err
			},
			wantErr: sql.ErrConnDone,
		},
		{
			name:    "save settings",
			run:     func() error { return settingsRepo.SaveSettings(ctx, settings.CollegeSettings{College: "engineering"}) },
			wantErr: driver.ErrBadConn,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.True(t, core.IsShutdown(err), "IsShutdown(%v) = false", err)
			assert.True(t, errors.Is(err, tt.wantErr), "errors.Is(%v, %v) = false", err, tt.wantErr)
		})
	}

	assert.False(t, core.IsShutdown(errors.New("disk full")))
}
