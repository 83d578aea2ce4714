package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/quiz"
)

var quizOrderFields = map[string]func(a, b quiz.Quiz) int{
	"title":      func(a, b quiz.Quiz) int { return strings.Compare(a.Title, b.Title) },
	"created_at": func(a, b quiz.Quiz) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// newest first
var defaultQuizOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "title", Ascending: true}}

type quizRepository struct {
	db *quizTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db.quiz}
}

func (repo *quizRepository) CreateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q.Sections = cloneStrings(q.Sections)
	repo.db.table[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.table[id]; ok {
		return *q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) FilterQuizzes(_ context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, q := range repo.db.table {
		if filter.Search != "" && !(containsFold(q.Title, filter.Search) || containsFold(q.Subject, filter.Search)) {
			continue
		}
		if filter.Kind != "" && q.Kind != filter.Kind {
			continue
		}
		if filter.IsActive != nil && q.IsActive != *filter.IsActive {
			continue
		}
		quizzes = append(quizzes, *q)
	}

	sortBy(quizzes, defaultQuizOrdering, quizOrderFields)
	return quizzes, nil
}

func (repo *quizRepository) UpdateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[q.ID]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	q.CreatedAt = orig.CreatedAt
	q.Sections = cloneStrings(q.Sections)
	repo.db.table[q.ID] = &q
	return q, nil
}
