package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/storage/database"
)

// PrepareDB opens a migrated in-memory SQLite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db, conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateQuiz(t *testing.T, repo quiz.Repository, title string, kind quiz.Kind, isActive bool, createdAt ...time.Time) quiz.Quiz {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	q := quiz.Quiz{
		ID:        uuid.New().String(),
		Title:     title,
		Kind:      kind,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if kind == quiz.KindAcademic {
		q.Subject = "Algorithms"
		q.Year, q.Semester, q.Sections = 2, 1, []string{"A"}
	}
	q, err := repo.CreateQuiz(context.Background(), q)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}

func CreateCredential(
	t *testing.T,
	repo credential.Repository,
	quizID, uname, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) credential.Credential {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	cred := credential.Credential{
		ID:          uuid.New().String(),
		QuizID:      quizID,
		Username:    uname,
		DisplayName: uname,
		Email:       email,
		Kind:        credential.KindIndividual,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := cred.SetPassword(pwd); err != nil {
			t.Fatalf("CreateCredential() failed: %v", err)
		}
	}
	cred, err := repo.CreateCredential(context.Background(), cred)
	if err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}
	return cred
}

// Lock puts `cred` in the locked state, expiring at `expiry`.
func Lock(t *testing.T, repo credential.Repository, cred credential.Credential, expiry time.Time) credential.Credential {
	t.Helper()
	exp := expiry.UTC()
	cred.FailedAttempts = credential.MaxFailedAttempts
	cred.Locked = true
	cred.LockExpiry = &exp
	if err := repo.SaveLoginState(context.Background(), cred); err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	return cred
}
