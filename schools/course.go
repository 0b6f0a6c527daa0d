package schools

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrMalformedCourse = errors.New("schools: malformed course name")

// MalformedCourseError reports a course name that does not have the
// "<college> <department><number> <section>" shape.
type MalformedCourseError struct {
	Name   string
	Reason string
}

func (e *MalformedCourseError) Error() string {
	return fmt.Sprintf("schools: malformed course name %q: %s", e.Name, e.Reason)
}

func (e *MalformedCourseError) Unwrap() error { return ErrMalformedCourse }

var (
	collegePattern    = regexp.MustCompile(`^[A-Za-z]{3,4}$`)
	departmentPattern = regexp.MustCompile(`^([A-Za-z]{2})(\d+[A-Za-z0-9]*)$`)
	sectionPattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]$`)
)

// Course identifies one registration section, e.g. "CAS CS111 A1".
// Two courses are equal iff all four fields are equal, so Course can be
// used directly as a map key.
type Course struct {
	College    string
	Department string
	Number     string
	Section    string
}

func ParseCourse(name string) (Course, error) {
	fields := strings.Fields(name)
	if len(fields) != 3 {
		return Course{}, &MalformedCourseError{Name: name, Reason: fmt.Sprintf("expected 3 fields, got %d", len(fields))}
	}
	college, depNum, section := fields[0], fields[1], fields[2]

	if !collegePattern.MatchString(college) {
		return Course{}, &MalformedCourseError{Name: name, Reason: "college must be 3-4 letters"}
	}
	m := departmentPattern.FindStringSubmatch(depNum)
	if m == nil {
		return Course{}, &MalformedCourseError{Name: name, Reason: "expected 2 letter department followed by a catalog number"}
	}
	if !sectionPattern.MatchString(section) {
		return Course{}, &MalformedCourseError{Name: name, Reason: "section must be a letter followed by a letter or digit"}
	}

	return Course{
		College:    strings.ToUpper(college),
		Department: strings.ToUpper(m[1]),
		Number:     strings.ToUpper(m[2]),
		Section:    strings.ToUpper(section),
	}, nil
}

// MustParseCourse is like ParseCourse but panics on error. Intended for
// literals in tests and fixtures.
func MustParseCourse(name string) Course {
	c, err := ParseCourse(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Course) String() string {
	return fmt.Sprintf("%s %s%s %s", c.College, c.Department, c.Number, c.Section)
}

// Subject is the subject code used by the class search, college and
// department joined ("CASCS").
func (c Course) Subject() string {
	return c.College + c.Department
}
