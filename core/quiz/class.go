package quiz

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

const (
	maxYear     = 6
	maxSemester = 2
)

var (
	errClassFormat   = errors.New(`class must look like "Year-Semester:Sections", eg. "3-1:A,B"`)
	errClassYear     = errors.New("class year must be between 1 and " + strconv.Itoa(maxYear))
	errClassSemester = errors.New("class semester must be between 1 and " + strconv.Itoa(maxSemester))
	errClassSection  = errors.New("class sections must be alphanumeric")
)

// ClassSpec identifies the students an academic quiz is meant for.
type ClassSpec struct {
	Year     int
	Semester int
	Sections []string
}

// ParseClass parses the "Year-Semester:Sections" notation used by the import sheets,
// eg. "3-1:A,B" is the third year, first semester, sections A and B.
// Sections are upper-cased and deduplicated, keeping their order.
func ParseClass(s string) (ClassSpec, error) {
	var spec ClassSpec

	head, tail, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return spec, errClassFormat
	}
	yearStr, semStr, found := strings.Cut(head, "-")
	if !found {
		return spec, errClassFormat
	}

	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		return spec, errClassFormat
	}
	if year < 1 || year > maxYear {
		return spec, errClassYear
	}
	sem, err := strconv.Atoi(strings.TrimSpace(semStr))
	if err != nil {
		return spec, errClassFormat
	}
	if sem < 1 || sem > maxSemester {
		return spec, errClassSemester
	}

	seen := make(map[string]bool)
	for _, sec := range strings.Split(tail, ",") {
		sec = strings.ToUpper(strings.TrimSpace(sec))
		if sec == "" {
			continue
		}
		for _, r := range sec {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return spec, errClassSection
			}
		}
		if !seen[sec] {
			seen[sec] = true
			spec.Sections = append(spec.Sections, sec)
		}
	}
	if len(spec.Sections) == 0 {
		return spec, errClassFormat
	}

	spec.Year = year
	spec.Semester = sem
	return spec, nil
}

// FormatClass is the inverse of ParseClass.
func FormatClass(spec ClassSpec) string {
	return strconv.Itoa(spec.Year) + "-" + strconv.Itoa(spec.Semester) + ":" + strings.Join(spec.Sections, ",")
}
