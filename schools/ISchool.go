package schools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ISchool looks up the live enrollment status of a course section.
// Implementations issue a single request per call and never retry.
type ISchool interface {
	GetCourseSection(ctx context.Context, course Course) (CourseSection, error)
}

type CourseSection struct {
	ClassSection        string `json:"class_section"`
	Subject             string `json:"subject"`
	CatalogNbr          string `json:"catalog_nbr"`
	WaitlistTotal       int    `json:"wait_tot"`
	EnrollmentAvailable int    `json:"enrollment_available"`
}

func (cs CourseSection) Available() bool {
	return cs.EnrollmentAvailable > 0
}

func (cs CourseSection) String() string {
	b, err := json.Marshal(cs)
	if err != nil {
		return ""
	}
	return string(b)
}

// SectionNotFoundError is returned when the class search has no entry for
// the requested section. Suggestion names the first listed section, if
// any, as "{subject} {catalog_nbr} {class_section}".
type SectionNotFoundError struct {
	Course     Course
	Suggestion string
}

func (e *SectionNotFoundError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("%s was not found.", e.Course)
	}
	return fmt.Sprintf("%s was not found. Did you mean %s?", e.Course, e.Suggestion)
}

// StatusTimeoutError is returned when the class search did not answer in
// time. The caller may retry on a later tick.
type StatusTimeoutError struct {
	Course Course
	Err    error
}

func (e *StatusTimeoutError) Error() string {
	return fmt.Sprintf("schools: timed out looking up %s: %s", e.Course, e.Err)
}

func (e *StatusTimeoutError) Unwrap() error { return e.Err }

// StatusLookupError covers every other failure to obtain a section:
// bad status codes, error pages and undecodable bodies.
type StatusLookupError struct {
	Course Course
	Err    error
}

func (e *StatusLookupError) Error() string {
	return fmt.Sprintf("schools: looking up %s: %s", e.Course, e.Err)
}

func (e *StatusLookupError) Unwrap() error { return e.Err }
