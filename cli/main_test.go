package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	class_notify "github.com/terrier-alert/class-notify"
	"github.com/terrier-alert/class-notify/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestLookupCommand(t *testing.T) {
	tests := []struct {
		args     []string
		want     string
		wantArgs int
		wantErr  bool
	}{
		{args: nil, want: "run"},
		{args: []string{"run"}, want: "run"},
		{args: []string{"sweep"}, want: "sweep"},
		{args: []string{"subscribe", "123", "CAS CS111 A1"}, want: "subscribe", wantArgs: 2},
		{args: []string{"unsubscribe", "123", "CAS CS111 A1"}, want: "unsubscribe", wantArgs: 2},
		{args: []string{"sync-status"}, want: "sync-status"},
		{args: []string{"status", "123"}, want: "status", wantArgs: 1},
		{args: []string{"status"}, wantErr: true},
		{args: []string{"announce", "Registration opens tomorrow"}, want: "announce", wantArgs: 1},
		{args: []string{"subscribe", "123"}, wantErr: true},
		{args: []string{"announce", "a", "b"}, wantErr: true},
		{args: []string{"register"}, wantErr: true},
	}
	for _, tt := range tests {
		c, args, err := lookupCommand(tt.args)
		if tt.wantErr {
			if !errors.Is(err, errUsage) {
				t.Errorf("lookupCommand(%q) error = %v, want usage error", tt.args, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("lookupCommand(%q): %v", tt.args, err)
			continue
		}
		if c.name != tt.want || len(args) != tt.wantArgs {
			t.Errorf("lookupCommand(%q) = %s %q", tt.args, c.name, args)
		}
	}
}

func TestFormatStatus(t *testing.T) {
	since := time.Date(2026, time.November, 2, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		st   class_notify.SubscriptionStatus
		want string
	}{
		{
			st: class_notify.SubscriptionStatus{
				User:   class_notify.User{ID: "123", IsSubscribed: true, LastSubscribed: &since, LastSubscription: "CAS CS111 A1"},
				Course: &class_notify.Subscription{Name: "CAS CS111 A1", Semester: "Spring 2027", Users: []string{"123"}},
			},
			want: "123 is subscribed to CAS CS111 A1 for Spring 2027 since 2026-11-02T10:00:00Z",
		},
		{
			st:   class_notify.SubscriptionStatus{User: class_notify.User{ID: "123", LastSubscription: "CAS CS111 A1"}},
			want: "123 is not subscribed (last subscription CAS CS111 A1)",
		},
		{
			st:   class_notify.SubscriptionStatus{User: class_notify.User{ID: "456"}},
			want: "456 is not subscribed",
		},
	}
	for _, tt := range tests {
		if got := formatStatus(tt.st); got != tt.want {
			t.Errorf("formatStatus() = %q, want %q", got, tt.want)
		}
	}
}

func TestAppGraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(
		appOptions(config.Default(), zerolog.Nop()),
		fx.Invoke(startMonitor),
		fx.Invoke(func(*class_notify.Bot, *class_notify.Database) {}),
	)
	if err != nil {
		t.Errorf("ValidateApp: %v", err)
	}
}

type countingStore struct {
	class_notify.Store
	lists atomic.Int32
}

func (s *countingStore) ListCourseSubscriptions(ctx context.Context) ([]class_notify.Subscription, error) {
	s.lists.Add(1)
	return nil, nil
}

type nopAlerter struct{}

func (nopAlerter) Alert(ctx context.Context, msg string) {}

func TestStartMonitorRunsUntilStopped(t *testing.T) {
	store := &countingStore{}
	bot := &class_notify.Bot{DB: store, Alerter: nopAlerter{}, Clock: class_notify.RealClock{}, Log: zerolog.Nop()}
	m := class_notify.NewMonitor(bot, nopAlerter{}, class_notify.RealClock{}, time.Hour, 0, zerolog.Nop())

	lc := fxtest.NewLifecycle(t)
	startMonitor(lc, m)
	lc.RequireStart()

	deadline := time.Now().Add(5 * time.Second)
	for store.lists.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	lc.RequireStop()

	if got := store.lists.Load(); got != 1 {
		t.Errorf("%d sweeps, want exactly the initial one", got)
	}
}
