package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizdesk/core"
)

type Kind string

const (
	KindAcademic Kind = "academic" // tied to a subject & class
	KindEvent    Kind = "event"    // college events, open to teams
)

var Kinds = []Kind{KindAcademic, KindEvent}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Kind      Kind       `json:"kind"`
	Subject   string     `json:"subject,omitempty"`
	Year      int        `json:"year,omitempty"`
	Semester  int        `json:"semester,omitempty"`
	Sections  []string   `json:"sections,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"` // UTC
	EndsAt    *time.Time `json:"ends_at,omitempty"`   // UTC
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

// IsOpen reports whether participants may currently take the quiz.
// A quiz without a schedule is open as long as it is active.
func (q Quiz) IsOpen(now time.Time) bool {
	if !q.IsActive {
		return false
	}
	if q.StartsAt != nil && now.Before(*q.StartsAt) {
		return false
	}
	if q.EndsAt != nil && !now.Before(*q.EndsAt) {
		return false
	}
	return true
}

// Class returns the "Year-Semester:Sections" notation of an academic quiz.
func (q Quiz) Class() string {
	if q.Kind != KindAcademic || q.Year == 0 {
		return ""
	}
	return FormatClass(ClassSpec{Year: q.Year, Semester: q.Semester, Sections: q.Sections})
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	Title    string     `json:"title" validate:"required,max=200"`
	Kind     Kind       `json:"kind" validate:"required,oneof=academic event"`
	Subject  string     `json:"subject" validate:"max=120"`
	Class    string     `json:"class"` // eg. "3-1:A,B"
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Kind = Kind(core.CleanString(string(nq.Kind), true /* lower */))
	nq.Subject = core.CleanString(nq.Subject)
	nq.Class = core.CleanString(nq.Class)
	return validate.Struct(nq)
}

// UpdateQuiz defines what information may be provided to modify an existing Quiz.
type UpdateQuiz struct {
	Title    string     `json:"title" validate:"max=200"`
	Subject  string     `json:"subject" validate:"max=120"`
	Class    string     `json:"class"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	IsActive *bool      `json:"is_active"`

	kind Kind
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate, orig Quiz) error {
	if title := core.CleanString(uq.Title); title != "" {
		uq.Title = title
	} else {
		uq.Title = orig.Title
	}
	if subject := core.CleanString(uq.Subject); subject != "" {
		uq.Subject = subject
	} else {
		uq.Subject = orig.Subject
	}
	if class := core.CleanString(uq.Class); class != "" {
		uq.Class = class
	} else {
		uq.Class = orig.Class()
	}
	if uq.StartsAt == nil {
		uq.StartsAt = orig.StartsAt
	}
	if uq.EndsAt == nil {
		uq.EndsAt = orig.EndsAt
	}
	uq.kind = orig.Kind
	return validate.Struct(uq)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Kind     Kind   `query:"kind"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Kind = Kind(core.CleanString(string(qf.Kind), true /* lower */))
}
