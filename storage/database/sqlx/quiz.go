package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/quiz"
)

const quizColumns = `id, title, kind, subject, year, semester, sections, starts_at, ends_at, is_active, created_at, updated_at`

type quizRow struct {
	ID        string     `db:"id"`
	Title     string     `db:"title"`
	Kind      string     `db:"kind"`
	Subject   string     `db:"subject"`
	Year      int        `db:"year"`
	Semester  int        `db:"semester"`
	Sections  stringList `db:"sections"`
	StartsAt  null.Time  `db:"starts_at"`
	EndsAt    null.Time  `db:"ends_at"`
	IsActive  bool       `db:"is_active"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

func newQuizRow(q quiz.Quiz) quizRow {
	return quizRow{
		ID:        q.ID,
		Title:     q.Title,
		Kind:      string(q.Kind),
		Subject:   q.Subject,
		Year:      q.Year,
		Semester:  q.Semester,
		Sections:  q.Sections,
		StartsAt:  utcNullTime(q.StartsAt),
		EndsAt:    utcNullTime(q.EndsAt),
		IsActive:  q.IsActive,
		CreatedAt: q.CreatedAt.UTC(),
		UpdatedAt: q.UpdatedAt.UTC(),
	}
}

func (row quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:        row.ID,
		Title:     row.Title,
		Kind:      quiz.Kind(row.Kind),
		Subject:   row.Subject,
		Year:      row.Year,
		Semester:  row.Semester,
		Sections:  row.Sections,
		StartsAt:  timePtr(row.StartsAt),
		EndsAt:    timePtr(row.EndsAt),
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type quizRepository struct {
	exec core.DBExecutor
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) quiz.Repository {
	return &quizRepository{exec: exec}
}

func (repo quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	row := newQuizRow(q)
	query := `INSERT INTO quizzes (` + quizColumns + `) VALUES (
:id, :title, :kind, :subject, :year, :semester, :sections, :starts_at, :ends_at, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, query, row); err != nil {
		return quiz.Quiz{}, wrapErr(err, "inserting quiz")
	}
	return row.toQuiz(), nil
}

func (repo quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	var row quizRow
	query := repo.exec.Rebind("SELECT " + quizColumns + " FROM quizzes WHERE id = ?")
	if err := sqlx.GetContext(ctx, repo.exec, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Quiz{}, quiz.ErrNotFound
		}
		return quiz.Quiz{}, wrapErr(err, "finding quiz")
	}
	return row.toQuiz(), nil
}

func (repo quizRepository) FilterQuizzes(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	var w where
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(title) LIKE ? OR LOWER(subject) LIKE ?)", val, val)
	}
	if filter.Kind != "" {
		w.add("kind = ?", string(filter.Kind))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	query := "SELECT " + quizColumns + " FROM quizzes" + w.String() + " ORDER BY created_at DESC, title ASC"
	var rows []quizRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(query), w.args...); err != nil {
		return nil, wrapErr(err, "querying quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.toQuiz())
	}
	return quizzes, nil
}

func (repo quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	query := `UPDATE quizzes SET title = :title, subject = :subject, year = :year, semester = :semester,
sections = :sections, starts_at = :starts_at, ends_at = :ends_at, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.exec, query, newQuizRow(q))
	if err != nil {
		return quiz.Quiz{}, wrapErr(err, "updating quiz")
	}
	if err = checkAffected(res, quiz.ErrNotFound); err != nil {
		return quiz.Quiz{}, err
	}
	return repo.GetQuiz(ctx, q.ID)
}
