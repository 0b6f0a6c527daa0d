package class_notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/terrier-alert/class-notify/schools"
)

// fakeStore is an in-memory Store that records every mutation.
type fakeStore struct {
	mu       sync.Mutex
	courses  []Subscription
	users    map[string]User
	calls    []string
	listErr  error
	getErr   error
	failOn   map[string]error // keyed by "op course"
	listHook func()
}

func newFakeStore(courses ...Subscription) *fakeStore {
	return &fakeStore{courses: courses, users: make(map[string]User)}
}

func (s *fakeStore) record(call string) error {
	s.calls = append(s.calls, call)
	return s.failOn[call]
}

func (s *fakeStore) ListCourseSubscriptions(ctx context.Context) ([]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listHook != nil {
		s.listHook()
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Subscription, len(s.courses))
	for i, c := range s.courses {
		c.Users = append([]string(nil), c.Users...)
		out[i] = c
	}
	return out, nil
}

func (s *fakeStore) RemoveCourse(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("remove " + name); err != nil {
		return err
	}
	kept := s.courses[:0]
	for _, c := range s.courses {
		if c.Name == name && len(c.Users) == 0 {
			continue
		}
		kept = append(kept, c)
	}
	s.courses = kept
	return nil
}

func (s *fakeStore) Unsubscribe(ctx context.Context, name string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(fmt.Sprintf("unsubscribe %s %s", name, userID)); err != nil {
		return err
	}
	for i, c := range s.courses {
		if c.Name != name {
			continue
		}
		var users []string
		for _, u := range c.Users {
			if u != userID {
				users = append(users, u)
			}
		}
		s.courses[i].Users = users
	}
	return nil
}

func (s *fakeStore) SetSubscriptionStatus(ctx context.Context, userID string, isSubscribed bool, lastSubscription string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(fmt.Sprintf("status %s %v %s", userID, isSubscribed, lastSubscription)); err != nil {
		return err
	}
	u := s.users[userID]
	u.ID, u.IsSubscribed, u.LastSubscription = userID, isSubscribed, lastSubscription
	s.users[userID] = u
	return nil
}

func (s *fakeStore) Subscribe(ctx context.Context, name string, semester string, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(fmt.Sprintf("subscribe %s %s %s", name, semester, userID)); err != nil {
		return err
	}
	found := false
	for i, c := range s.courses {
		if c.Name == name && c.Semester == semester {
			found = true
			s.courses[i].Users = append(s.courses[i].Users, userID)
		}
	}
	if !found {
		s.courses = append(s.courses, Subscription{Name: name, Semester: semester, Users: []string{userID}})
	}
	s.users[userID] = User{ID: userID, IsSubscribed: true, LastSubscribed: &at, LastSubscription: name}
	return nil
}

func (s *fakeStore) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeStore) GetUser(ctx context.Context, userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return User{}, s.getErr
	}
	u, ok := s.users[userID]
	if !ok {
		return User{}, ErrNoSuchUser
	}
	return u, nil
}

func (s *fakeStore) GetUserCourse(ctx context.Context, userID string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.courses {
		for _, u := range c.Users {
			if u == userID {
				c.Users = append([]string(nil), c.Users...)
				return c, nil
			}
		}
	}
	return Subscription{}, ErrNoSuchCourse
}

func (s *fakeStore) mutations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// fakeSchool answers lookups from a table keyed by course string.
type fakeSchool struct {
	mu       sync.Mutex
	sections map[string]schools.CourseSection
	errs     map[string]error
	panics   map[string]bool
	lookups  []string
}

func (f *fakeSchool) GetCourseSection(ctx context.Context, course schools.Course) (schools.CourseSection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := course.String()
	f.lookups = append(f.lookups, key)
	if f.panics[key] {
		panic("school exploded")
	}
	if err, ok := f.errs[key]; ok {
		return schools.CourseSection{}, err
	}
	if s, ok := f.sections[key]; ok {
		return s, nil
	}
	return schools.CourseSection{}, &schools.StatusLookupError{Course: course, Err: errors.New("no fixture")}
}

type notification struct {
	user string
	text string
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notification
	fails map[string]bool
}

func (n *fakeNotifier) Notify(ctx context.Context, userID string, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID, text})
	return !n.fails[userID]
}

func (n *fakeNotifier) messages() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *fakeAlerter) Alert(ctx context.Context, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, msg)
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

// fakeClock stands still until set or advanced. Its tickers fire only
// when the test sends on them through tick.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []chan time.Time
	created chan struct{}
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, created: make(chan struct{}, 1)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(d time.Duration) *Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time)
	c.tickers = append(c.tickers, ch)
	select {
	case c.created <- struct{}{}:
	default:
	}
	return NewTicker(ch, func() {})
}

// tick delivers one tick to the most recent ticker and blocks until the
// receiver takes it.
func (c *fakeClock) tick() {
	c.mu.Lock()
	ch := c.tickers[len(c.tickers)-1]
	now := c.now
	c.mu.Unlock()
	ch <- now
}
