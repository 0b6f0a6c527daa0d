package class_notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/terrier-alert/class-notify/schools"
)

// Store is the subscription store the bot reads and mutates.
type Store interface {
	ListCourseSubscriptions(ctx context.Context) ([]Subscription, error)
	RemoveCourse(ctx context.Context, name string) error
	Unsubscribe(ctx context.Context, name string, userID string) error
	SetSubscriptionStatus(ctx context.Context, userID string, isSubscribed bool, lastSubscription string) error
	Subscribe(ctx context.Context, name string, semester string, userID string, at time.Time) error
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserCourse(ctx context.Context, userID string) (Subscription, error)
}

// Notifier delivers a message to a user and reports success. It must
// not block past its own timeout.
type Notifier interface {
	Notify(ctx context.Context, userID string, text string) bool
}

// Alerter escalates a failure to the operator.
type Alerter interface {
	Alert(ctx context.Context, msg string)
}

// Bot reconciles course subscriptions against live course status.
type Bot struct {
	School   schools.ISchool
	DB       Store
	Notifier Notifier
	Alerter  Alerter
	Clock    Clock
	Log      zerolog.Logger
}

// Sweep checks every subscribed course once, in order. A failure while
// checking one course is alerted and the sweep moves on, except for a
// *schools.StatusTimeoutError which ends the sweep and is returned:
// courses already checked keep their effects, the rest wait for the next
// sweep. Cancelling ctx stops the sweep after the course in flight.
func (bot *Bot) Sweep(ctx context.Context) error {
	log := bot.Log.With().Str("sweep", uuid.NewString()).Logger()

	subs, err := bot.DB.ListCourseSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("unable to get course subscriptions: %w", err)
	}
	log.Info().Int("courses", len(subs)).Msg("checking courses")

	work := context.WithoutCancel(ctx)
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			log.Info().Msg("sweep interrupted")
			return err
		}
		clog := log.With().Str("course", sub.Name).Logger()
		err := bot.checkSubscription(work, sub, clog)
		if err == nil {
			continue
		}
		var timeout *schools.StatusTimeoutError
		if errors.As(err, &timeout) {
			clog.Warn().Err(err).Msg("course status lookup timed out, ending sweep")
			return err
		}
		clog.Error().Err(err).Msg("failed on checking course")
		bot.Alerter.Alert(work, fmt.Sprintf("Failed to check %s: %s", sub.Name, err))
	}
	return nil
}

func (bot *Bot) checkSubscription(ctx context.Context, sub Subscription, log zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while checking course: %v", r)
		}
	}()

	if len(sub.Users) == 0 {
		if err := bot.DB.RemoveCourse(ctx, sub.Name); err != nil {
			return fmt.Errorf("removing course with no subscribers: %w", err)
		}
		log.Info().Msg("removed course with no subscribers")
		return nil
	}

	course, err := schools.ParseCourse(sub.Name)
	if err != nil {
		log.Warn().Err(err).Msg("skipping course document")
		return nil
	}

	current := schools.CurrentTerm(bot.Clock.Now())
	if term, err := schools.ParseTerm(sub.Semester); err != nil || term != current {
		log.Info().Str("semester", sub.Semester).Str("current", current.String()).Msg("course term has expired")
		msg := fmt.Sprintf("You have been unsubscribed from %s since the deadline to add courses for %s has passed.",
			course, sub.Semester)
		return bot.notifyAndUnsubscribe(ctx, sub, msg, log)
	}

	section, err := bot.School.GetCourseSection(ctx, course)
	var notFound *schools.SectionNotFoundError
	switch {
	case errors.As(err, &notFound):
		log.Info().Str("suggestion", notFound.Suggestion).Msg("course was not found")
		return bot.notifyAndUnsubscribe(ctx, sub, notFoundMessage(course, notFound.Suggestion), log)
	case err != nil:
		return err
	}

	if !section.Available() {
		log.Debug().Int("waitlist", section.WaitlistTotal).Msg("course is not available")
		return nil
	}
	log.Info().Int("seats", section.EnrollmentAvailable).Int("waitlist", section.WaitlistTotal).Msg("course is available")
	msg := fmt.Sprintf("%s is now available! (with %d students on the waitlist)", course, section.WaitlistTotal)
	return bot.notifyAndUnsubscribe(ctx, sub, msg, log)
}

func notFoundMessage(course schools.Course, suggestion string) string {
	if suggestion == "" {
		return fmt.Sprintf("%s was not found in the University Class Schedule.", course)
	}
	return fmt.Sprintf("%s was not found in the University Class Schedule. Did you mean %s?", course, suggestion)
}

// notifyAndUnsubscribe messages every subscriber of sub and removes them
// from it. Users are unsubscribed whether or not the message got through.
func (bot *Bot) notifyAndUnsubscribe(ctx context.Context, sub Subscription, msg string, log zerolog.Logger) error {
	seen := make(map[string]bool, len(sub.Users))
	for _, uid := range sub.Users {
		if seen[uid] {
			continue
		}
		seen[uid] = true

		if !bot.Notifier.Notify(ctx, uid, msg) {
			log.Warn().Str("user", uid).Msg("user was not notified, unsubscribing anyway")
		}
		if err := bot.DB.Unsubscribe(ctx, sub.Name, uid); err != nil {
			return fmt.Errorf("unable to remove subscriber %s: %w", uid, err)
		}
		if err := bot.DB.SetSubscriptionStatus(ctx, uid, false, sub.Name); err != nil {
			return fmt.Errorf("unable to update status of %s: %w", uid, err)
		}
		log.Info().Str("user", uid).Msg("removed user from course")
	}
	return nil
}

// Subscribe adds userID to course for the current term.
func (bot *Bot) Subscribe(ctx context.Context, course string, userID string) (schools.Course, error) {
	c, err := schools.ParseCourse(course)
	if err != nil {
		return schools.Course{}, err
	}
	now := bot.Clock.Now()
	if err := bot.DB.Subscribe(ctx, c.String(), schools.CurrentTerm(now).String(), userID, now); err != nil {
		return schools.Course{}, fmt.Errorf("adding a subscriber with course %s and userID %s: %w", c, userID, err)
	}
	return c, nil
}

// Unsubscribe removes userID from course.
func (bot *Bot) Unsubscribe(ctx context.Context, course string, userID string) error {
	if c, err := schools.ParseCourse(course); err == nil {
		course = c.String()
	}
	if err := bot.DB.Unsubscribe(ctx, course, userID); err != nil {
		return fmt.Errorf("unable to remove subscriber: %w", err)
	}
	if err := bot.DB.SetSubscriptionStatus(ctx, userID, false, course); err != nil {
		return fmt.Errorf("unable to update subscription status: %w", err)
	}
	return nil
}

// SubscriptionStatus is what a user is subscribed to right now. Course is
// nil unless User.IsSubscribed.
type SubscriptionStatus struct {
	User   User
	Course *Subscription
}

// Status looks up userID's subscription. An unknown user is reported as
// not subscribed, and so is a user whose subscribed flag points at a
// course that no longer lists them.
func (bot *Bot) Status(ctx context.Context, userID string) (SubscriptionStatus, error) {
	u, err := bot.DB.GetUser(ctx, userID)
	switch {
	case errors.Is(err, ErrNoSuchUser):
		return SubscriptionStatus{User: User{ID: userID}}, nil
	case err != nil:
		return SubscriptionStatus{}, err
	}
	if !u.IsSubscribed {
		return SubscriptionStatus{User: u}, nil
	}

	sub, err := bot.DB.GetUserCourse(ctx, userID)
	switch {
	case errors.Is(err, ErrNoSuchCourse):
		bot.Log.Warn().Str("user", userID).Str("last_subscription", u.LastSubscription).
			Msg("user marked subscribed but no course lists them")
		u.IsSubscribed = false
		return SubscriptionStatus{User: u}, nil
	case err != nil:
		return SubscriptionStatus{}, err
	}
	return SubscriptionStatus{User: u, Course: &sub}, nil
}

// Announce sends msg to every known user and returns how many were
// reached out of how many were tried.
func (bot *Bot) Announce(ctx context.Context, msg string) (sent int, total int, err error) {
	users, err := bot.DB.ListUsers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to list users: %w", err)
	}
	for _, u := range users {
		if bot.Notifier.Notify(ctx, u.ID, msg) {
			sent++
		}
	}
	return sent, len(users), nil
}
