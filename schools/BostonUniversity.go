package schools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultClassSearchURL is the public class search endpoint.
	DefaultClassSearchURL = "https://public.mybustudent.bu.edu/psc/BUPRD/EMPLOYEE/SA/s/WEBLIB_HCX_CM.H_CLASS_SEARCH.FieldFormula.IScript_ClassSearch"
	institution           = "BU001"
	userAgent             = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes          = 4 << 20
)

// BostonUniversity queries the BU class search JSON endpoint.
type BostonUniversity struct {
	BaseURL   string
	Client    *http.Client
	TermCodes TermCodes
	// Now is called on every lookup to resolve the current term.
	Now func() time.Time
}

// NewBostonUniversity returns a client whose requests are bounded by timeout.
func NewBostonUniversity(baseURL string, timeout time.Duration, codes TermCodes) *BostonUniversity {
	if baseURL == "" {
		baseURL = DefaultClassSearchURL
	}
	return &BostonUniversity{
		BaseURL:   baseURL,
		Client:    &http.Client{Timeout: timeout},
		TermCodes: codes,
		Now:       time.Now,
	}
}

// Query returns the class search URL for course in term.
func (bu *BostonUniversity) Query(course Course, term Term) (string, error) {
	code, err := bu.TermCodes.Code(term)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(bu.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %s: %w", bu.BaseURL, err)
	}
	q := u.Query()
	q.Set("institution", institution)
	q.Set("term", code)
	q.Set("subject", course.Subject())
	q.Set("catalog_nbr", course.Number)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (bu *BostonUniversity) GetCourseSection(ctx context.Context, course Course) (CourseSection, error) {
	uri, err := bu.Query(course, CurrentTerm(bu.Now()))
	if err != nil {
		return CourseSection{}, &StatusLookupError{Course: course, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return CourseSection{}, &StatusLookupError{Course: course, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := bu.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return CourseSection{}, &StatusTimeoutError{Course: course, Err: err}
		}
		return CourseSection{}, &StatusLookupError{Course: course, Err: fmt.Errorf("getting %s: %w", uri, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return CourseSection{}, &StatusTimeoutError{Course: course, Err: err}
		}
		return CourseSection{}, &StatusLookupError{Course: course, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return CourseSection{}, &StatusLookupError{Course: course, Err: fmt.Errorf("unexpected status %s%s", resp.Status, pageTitle(body))}
	}

	sections, err := bu.parse(body)
	if err != nil {
		return CourseSection{}, &StatusLookupError{Course: course, Err: err}
	}
	return findSection(course, sections)
}

type classSearchResponse struct {
	Classes []CourseSection `json:"classes"`
}

func (bu *BostonUniversity) parse(body []byte) ([]CourseSection, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}
	switch trimmed[0] {
	case '{':
		var r classSearchResponse
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, fmt.Errorf("decoding class search response: %w", err)
		}
		return r.Classes, nil
	case '[':
		// older revisions of the endpoint returned the sections bare
		var sections []CourseSection
		if err := json.Unmarshal(trimmed, &sections); err != nil {
			return nil, fmt.Errorf("decoding class search response: %w", err)
		}
		return sections, nil
	default:
		return nil, fmt.Errorf("response is not JSON%s", pageTitle(trimmed))
	}
}

func findSection(course Course, sections []CourseSection) (CourseSection, error) {
	for _, s := range sections {
		if strings.EqualFold(s.ClassSection, course.Section) {
			return s, nil
		}
	}
	if len(sections) == 0 {
		return CourseSection{}, &SectionNotFoundError{Course: course}
	}
	first := sections[0]
	return CourseSection{}, &SectionNotFoundError{
		Course:     course,
		Suggestion: fmt.Sprintf("%s %s %s", first.Subject, first.CatalogNbr, first.ClassSection),
	}
}

// pageTitle extracts the <title> of an HTML error page, which is where the
// portal puts its maintenance and sign-in notices.
func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}
	return fmt.Sprintf(" (page title %q)", title)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
