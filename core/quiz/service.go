package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// errors
	ErrNotFound = errors.New("quiz not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// FilterQuizzes applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Quiz.Title or Quiz.Subject.
		FilterQuizzes(ctx context.Context, filter QueryFilter) ([]Quiz, error)
		UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nq NewQuiz) (Quiz, error) {
	now := nowFunc().UTC()
	q := Quiz{
		ID:        uuid.New().String(),
		Title:     nq.Title,
		Kind:      nq.Kind,
		Subject:   nq.Subject,
		StartsAt:  utcPtr(nq.StartsAt),
		EndsAt:    utcPtr(nq.EndsAt),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyClass(&q, nq.Class); err != nil {
		return Quiz{}, err
	}
	return svc.repo.CreateQuiz(ctx, q)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Quiz, error) {
	filter.Clean()
	return svc.repo.FilterQuizzes(ctx, filter)
}

// Update applies a validated UpdateQuiz to the quiz `orig`.
func (svc *Service) Update(ctx context.Context, orig Quiz, uq UpdateQuiz) (Quiz, error) {
	q := orig
	q.Title = uq.Title
	q.Subject = uq.Subject
	q.StartsAt = utcPtr(uq.StartsAt)
	q.EndsAt = utcPtr(uq.EndsAt)
	if uq.IsActive != nil {
		q.IsActive = *uq.IsActive
	}
	q.UpdatedAt = nowFunc().UTC()
	if err := applyClass(&q, uq.Class); err != nil {
		return Quiz{}, err
	}
	return svc.repo.UpdateQuiz(ctx, q)
}

// Deactivate closes a quiz; its credentials can no longer be registered.
func (svc *Service) Deactivate(ctx context.Context, id string) error {
	q, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return err
	}
	q.IsActive = false
	q.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateQuiz(ctx, q)
	return err
}

func applyClass(q *Quiz, class string) error {
	if q.Kind != KindAcademic || class == "" {
		q.Year, q.Semester, q.Sections = 0, 0, nil
		return nil
	}
	spec, err := ParseClass(class)
	if err != nil {
		return err
	}
	q.Year, q.Semester, q.Sections = spec.Year, spec.Semester, spec.Sections
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
