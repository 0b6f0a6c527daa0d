package schools

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Semester string

const (
	Spring Semester = "Spring"
	Summer Semester = "Summer"
	Fall   Semester = "Fall"
)

// Term is an academic semester and year. String() is the tag stored on
// subscription documents.
type Term struct {
	Semester Semester
	Year     int
}

func (t Term) String() string {
	return fmt.Sprintf("%s %d", t.Semester, t.Year)
}

// CurrentTerm returns the term open for registration at now. Registration
// for Fall runs April through September, Spring October through February
// (October onwards belongs to next year's Spring) and March is Summer.
func CurrentTerm(now time.Time) Term {
	year, month := now.Year(), now.Month()
	switch {
	case month >= time.April && month <= time.September:
		return Term{Semester: Fall, Year: year}
	case month >= time.October:
		return Term{Semester: Spring, Year: year + 1}
	case month <= time.February:
		return Term{Semester: Spring, Year: year}
	default:
		return Term{Semester: Summer, Year: year}
	}
}

// ParseTerm parses a stored term tag such as "Fall 2026".
func ParseTerm(s string) (Term, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Term{}, fmt.Errorf("schools: invalid term %q", s)
	}
	var semester Semester
	switch Semester(fields[0]) {
	case Spring, Summer, Fall:
		semester = Semester(fields[0])
	default:
		return Term{}, fmt.Errorf("schools: unknown semester %q in term %q", fields[0], s)
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil {
		return Term{}, fmt.Errorf("schools: invalid year in term %q: %w", s, err)
	}
	return Term{Semester: semester, Year: year}, nil
}
