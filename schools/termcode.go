package schools

import (
	"fmt"
)

// TermCodes maps a Term to the numeric code the class search expects.
// The encoding belongs to the registrar and has changed before, so it is
// loaded from configuration rather than derived.
//
// A code is "{century digit}{two digit year}{suffix}", the century digit
// counting from 1800 (1 for the 1900s, 2 for the 2000s), e.g. Spring 2025
// with suffix "1" is "2251". Overrides take precedence and are keyed by
// Term.String().
type TermCodes struct {
	Suffixes  map[Semester]string `yaml:"suffixes"`
	Overrides map[string]string   `yaml:"overrides"`
}

// DefaultTermCodes is the mapping observed on the live class search.
func DefaultTermCodes() TermCodes {
	return TermCodes{
		Suffixes: map[Semester]string{
			Spring: "1",
			Summer: "5",
			Fall:   "8",
		},
	}
}

func (tc TermCodes) Code(t Term) (string, error) {
	if code, ok := tc.Overrides[t.String()]; ok {
		return code, nil
	}
	suffix, ok := tc.Suffixes[t.Semester]
	if !ok {
		return "", fmt.Errorf("schools: no term code suffix configured for %s", t.Semester)
	}
	return fmt.Sprintf("%d%02d%s", (t.Year-1800)/100, t.Year%100, suffix), nil
}
