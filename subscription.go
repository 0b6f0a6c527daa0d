package class_notify

import (
	"encoding/json"
	"time"
)

// Subscription is the document kept per course and term in the courses
// collection. Users holds subscriber ids, each at most once.
type Subscription struct {
	Name     string   `bson:"name"`
	Semester string   `bson:"semester"`
	Users    []string `bson:"users"`
}

func (s Subscription) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// User is the per-user document in the users collection.
type User struct {
	ID               string     `bson:"user"`
	IsSubscribed     bool       `bson:"is_subscribed"`
	LastSubscribed   *time.Time `bson:"last_subscribed,omitempty"`
	LastSubscription string     `bson:"last_subscription"`
}
