package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
)

const credentialColumns = `id, quiz_id, username, display_name, email, kind, members, is_active, password_hash,
failed_attempts, locked, lock_expiry, last_login, created_at, updated_at`

var credentialOrderColumns = map[string]string{
	"username":        "username",
	"display_name":    "display_name",
	"failed_attempts": "failed_attempts",
	"last_login":      "last_login",
	"created_at":      "created_at",
}

type credentialRow struct {
	ID             string     `db:"id"`
	QuizID         string     `db:"quiz_id"`
	Username       string     `db:"username"`
	DisplayName    string     `db:"display_name"`
	Email          string     `db:"email"`
	Kind           string     `db:"kind"`
	Members        stringList `db:"members"`
	IsActive       bool       `db:"is_active"`
	PasswordHash   string     `db:"password_hash"`
	FailedAttempts int        `db:"failed_attempts"`
	Locked         bool       `db:"locked"`
	LockExpiry     null.Time  `db:"lock_expiry"`
	LastLogin      null.Time  `db:"last_login"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func newCredentialRow(cred credential.Credential) credentialRow {
	return credentialRow{
		ID:             cred.ID,
		QuizID:         cred.QuizID,
		Username:       cred.Username,
		DisplayName:    cred.DisplayName,
		Email:          cred.Email,
		Kind:           string(cred.Kind),
		Members:        cred.Members,
		IsActive:       cred.IsActive,
		PasswordHash:   string(cred.PasswordHash),
		FailedAttempts: cred.FailedAttempts,
		Locked:         cred.Locked,
		LockExpiry:     utcNullTime(cred.LockExpiry),
		LastLogin:      utcNullTime(cred.LastLogin),
		CreatedAt:      cred.CreatedAt.UTC(),
		UpdatedAt:      cred.UpdatedAt.UTC(),
	}
}

func (row credentialRow) toCredential() credential.Credential {
	return credential.Credential{
		ID:             row.ID,
		QuizID:         row.QuizID,
		Username:       row.Username,
		DisplayName:    row.DisplayName,
		Email:          row.Email,
		Kind:           credential.Kind(row.Kind),
		Members:        row.Members,
		IsActive:       row.IsActive,
		PasswordHash:   []byte(row.PasswordHash),
		FailedAttempts: row.FailedAttempts,
		Locked:         row.Locked,
		LockExpiry:     timePtr(row.LockExpiry),
		LastLogin:      timePtr(row.LastLogin),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type credentialRepository struct {
	exec core.DBExecutor
}

var _ credential.Repository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(exec core.DBExecutor) credential.Repository {
	return &credentialRepository{exec: exec}
}

// trapNoRowsErr maps sql "no rows" err to credential.ErrNotFound
func (repo credentialRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return credential.ErrNotFound
	}
	return wrapErr(err, msg)
}

func (repo credentialRepository) CheckUsernameUniqueness(ctx context.Context, username string, excluded ...credential.Credential) error {
	var w where
	w.add("username = ?", username)
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, c := range excluded {
			ids = append(ids, c.ID)
		}
		cond, args, err := sqlx.In("id NOT IN (?)", ids)
		if err != nil {
			return wrapErr(err, "checking credential uniqueness")
		}
		w.add(cond, args...)
	}

	var count int
	q := repo.exec.Rebind("SELECT COUNT(*) FROM credentials" + w.String())
	if err := sqlx.GetContext(ctx, repo.exec, &count, q, w.args...); err != nil {
		return wrapErr(err, "checking credential uniqueness")
	}
	if count > 0 {
		return credential.ErrUsernameExists
	}
	return nil
}

func (repo credentialRepository) CreateCredential(ctx context.Context, cred credential.Credential) (credential.Credential, error) {
	row := newCredentialRow(cred)
	q := `INSERT INTO credentials (` + credentialColumns + `) VALUES (
:id, :quiz_id, :username, :display_name, :email, :kind, :members, :is_active, :password_hash,
:failed_attempts, :locked, :lock_expiry, :last_login, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		if isUniqueViolation(err) {
			return credential.Credential{}, credential.ErrUsernameExists
		}
		return credential.Credential{}, wrapErr(err, "inserting credential")
	}
	return row.toCredential(), nil
}

func (repo credentialRepository) GetCredential(ctx context.Context, filter credential.GetFilter) (credential.Credential, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	default:
		return credential.Credential{}, credential.ErrNotFound
	}

	var row credentialRow
	q := repo.exec.Rebind("SELECT " + credentialColumns + " FROM credentials" + w.String())
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, w.args...); err != nil {
		return credential.Credential{}, repo.trapNoRowsErr(err, "finding credential")
	}
	return row.toCredential(), nil
}

func (repo credentialRepository) FilterCredentials(
	ctx context.Context,
	filter credential.QueryFilter,
	ordering ...core.DBOrdering,
) ([]credential.Credential, error) {
	var w where
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?)", val, val)
	}
	if filter.QuizID != "" {
		w.add("quiz_id = ?", filter.QuizID)
	}
	if filter.Kind != "" {
		w.add("kind = ?", string(filter.Kind))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if filter.Locked != nil {
		w.add("locked = ?", *filter.Locked)
	}

	q := "SELECT " + credentialColumns + " FROM credentials" + w.String() +
		orderBy(ordering, credentialOrderColumns, "created_at DESC, username ASC")

	var rows []credentialRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(q), w.args...); err != nil {
		return nil, wrapErr(err, "querying credentials")
	}
	creds := make([]credential.Credential, 0, len(rows))
	for _, row := range rows {
		creds = append(creds, row.toCredential())
	}
	return creds, nil
}

func (repo credentialRepository) UpdateCredential(ctx context.Context, cred credential.Credential) (credential.Credential, error) {
	row := newCredentialRow(cred)
	q := `UPDATE credentials SET username = :username, display_name = :display_name, email = :email,
members = :members, is_active = :is_active, updated_at = :updated_at`
	if cred.PasswordHash != nil {
		q += ", password_hash = :password_hash"
	}
	q += " WHERE id = :id"

	res, err := sqlx.NamedExecContext(ctx, repo.exec, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return credential.Credential{}, credential.ErrUsernameExists
		}
		return credential.Credential{}, wrapErr(err, "updating credential")
	}
	if err = checkAffected(res, credential.ErrNotFound); err != nil {
		return credential.Credential{}, err
	}
	return repo.GetCredential(ctx, credential.GetFilter{ID: cred.ID})
}

func (repo credentialRepository) SaveLoginState(ctx context.Context, cred credential.Credential) error {
	row := newCredentialRow(cred)
	q := `UPDATE credentials SET failed_attempts = :failed_attempts, locked = :locked,
lock_expiry = :lock_expiry, last_login = :last_login WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, repo.exec, q, row)
	if err != nil {
		return wrapErr(err, "saving login state")
	}
	return checkAffected(res, credential.ErrNotFound)
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func utcNullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
