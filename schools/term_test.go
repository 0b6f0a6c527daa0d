package schools

import (
	"testing"
	"time"
)

func TestCurrentTerm(t *testing.T) {
	const year = 2026
	want := map[time.Month]Term{
		time.January:   {Spring, year},
		time.February:  {Spring, year},
		time.March:     {Summer, year},
		time.April:     {Fall, year},
		time.May:       {Fall, year},
		time.June:      {Fall, year},
		time.July:      {Fall, year},
		time.August:    {Fall, year},
		time.September: {Fall, year},
		time.October:   {Spring, year + 1},
		time.November:  {Spring, year + 1},
		time.December:  {Spring, year + 1},
	}
	for month := time.January; month <= time.December; month++ {
		now := time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)
		if got := CurrentTerm(now); got != want[month] {
			t.Errorf("CurrentTerm(%s) = %s, want %s", month, got, want[month])
		}
	}
}

func TestCurrentTermBoundaries(t *testing.T) {
	lastOfSeptember := time.Date(2026, time.September, 30, 23, 59, 59, 0, time.UTC)
	firstOfOctober := lastOfSeptember.Add(time.Second)
	if got := CurrentTerm(lastOfSeptember).String(); got != "Fall 2026" {
		t.Errorf("CurrentTerm(%s) = %s, want Fall 2026", lastOfSeptember, got)
	}
	if got := CurrentTerm(firstOfOctober).String(); got != "Spring 2027" {
		t.Errorf("CurrentTerm(%s) = %s, want Spring 2027", firstOfOctober, got)
	}
}

func TestParseTerm(t *testing.T) {
	for _, term := range []Term{{Spring, 2025}, {Summer, 2026}, {Fall, 2030}} {
		got, err := ParseTerm(term.String())
		if err != nil {
			t.Fatalf("ParseTerm(%q): %v", term, err)
		}
		if got != term {
			t.Errorf("ParseTerm(%q) = %+v", term, got)
		}
	}
	for _, bad := range []string{"", "Fall", "Winter 2026", "Fall twenty", "Fall 2026 extra"} {
		if _, err := ParseTerm(bad); err == nil {
			t.Errorf("ParseTerm(%q) succeeded, want error", bad)
		}
	}
}

func TestTermCodes(t *testing.T) {
	codes := DefaultTermCodes()
	tests := []struct {
		term Term
		want string
	}{
		{Term{Spring, 2025}, "2251"},
		{Term{Summer, 2026}, "2265"},
		{Term{Fall, 2026}, "2268"},
		{Term{Fall, 2099}, "2998"},
		{Term{Fall, 1999}, "1998"},
	}
	for _, tt := range tests {
		got, err := codes.Code(tt.term)
		if err != nil {
			t.Fatalf("Code(%s): %v", tt.term, err)
		}
		if got != tt.want {
			t.Errorf("Code(%s) = %s, want %s", tt.term, got, tt.want)
		}
	}

	codes.Overrides = map[string]string{"Fall 2026": "2263"}
	if got, _ := codes.Code(Term{Fall, 2026}); got != "2263" {
		t.Errorf("override ignored: got %s", got)
	}

	if _, err := (TermCodes{}).Code(Term{Fall, 2026}); err == nil {
		t.Error("Code with no suffixes succeeded, want error")
	}
}
