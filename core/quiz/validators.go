package quiz

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizdesk/core"
)

var (
	classFormatTag  = "classfmt"
	classFormatText = `invalid class, expected "Year-Semester:Sections" (eg. "3-1:A,B")`

	classKindTag  = "classkind"
	classKindText = "only academic quizzes have a class"

	endsAfterTag  = "endsafter"
	endsAfterText = "must be after starts_at"
)

// InitValidators registers the quiz validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(quizStructValidation, NewQuiz{}, UpdateQuiz{})
	core.RegisterCustomTranslation(validate, translator, classFormatTag, classFormatText)
	core.RegisterCustomTranslation(validate, translator, classKindTag, classKindText)
	core.RegisterCustomTranslation(validate, translator, endsAfterTag, endsAfterText)
}

// quizStructValidation does struct level validation on NewQuiz and UpdateQuiz structs.
func quizStructValidation(sl validator.StructLevel) {
	switch q := sl.Current().Interface().(type) {
	case NewQuiz:
		validateClass(q.Kind, q.Subject, q.Class, sl)
		validateSchedule(q.StartsAt, q.EndsAt, sl)
	case UpdateQuiz:
		validateClass(q.kind, q.Subject, q.Class, sl)
		validateSchedule(q.StartsAt, q.EndsAt, sl)
	}
}

// validateClass checks that academic quizzes have a subject and a valid class,
// and that event quizzes do not have a class.
func validateClass(kind Kind, subject, class string, sl validator.StructLevel) {
	switch kind {
	case KindAcademic:
		if subject == "" {
			sl.ReportError(subject, "subject", "Subject", "required", "")
		}
		if class == "" {
			sl.ReportError(class, "class", "Class", "required", "")
		} else if _, err := ParseClass(class); err != nil {
			sl.ReportError(class, "class", "Class", classFormatTag, "")
		}
	case KindEvent:
		if class != "" {
			sl.ReportError(class, "class", "Class", classKindTag, "")
		}
	}
}

func validateSchedule(startsAt, endsAt *time.Time, sl validator.StructLevel) {
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		sl.ReportError(endsAt, "ends_at", "EndsAt", endsAfterTag, "")
	}
}
