package class_notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	courseCollection = "courses"
	userCollection   = "users"
)

var (
	ErrNoSuchUser   = errors.New("class_notify: no user exists with such id")
	ErrNoSuchCourse = errors.New("class_notify: user is not subscribed to any course")
)

// Database is the subscription store. Every method touches a single
// document (or issues a single multi-document update), so each call is
// atomic on its own but calls are not transactional with each other.
type Database struct {
	client  *mongo.Client
	courses *mongo.Collection
	users   *mongo.Collection
	log     zerolog.Logger
}

// NewDatabase wraps an already connected mongo database.
func NewDatabase(db *mongo.Database, log zerolog.Logger) *Database {
	return &Database{
		courses: db.Collection(courseCollection),
		users:   db.Collection(userCollection),
		log:     log.With().Str("component", "db").Logger(),
	}
}

// Connect opens the "<env>_db" database at uri and makes sure the course
// index exists.
func Connect(ctx context.Context, uri string, env string, log zerolog.Logger) (*Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to data base: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging data base: %w", err)
	}
	name := env + "_db"
	db := NewDatabase(client.Database(name), log)
	db.client = client

	if indexName, err := db.courses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "semester", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating unique index for name and semester with indexName %s: %w",
			indexName, err)
	}
	if _, err := db.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating unique index for user: %w", err)
	}
	db.log.Info().Str("database", name).Msg("connected to database successfully")
	return db, nil
}

func (db *Database) Close(ctx context.Context) error {
	if db.client == nil {
		return nil
	}
	return db.client.Disconnect(ctx)
}

// ListCourseSubscriptions returns a snapshot of every course document.
func (db *Database) ListCourseSubscriptions(ctx context.Context) ([]Subscription, error) {
	cursor, err := db.courses.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("getting collection cursor: %w", err)
	}
	var subs []Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decoding results as subscriptions: %w", err)
	}
	return subs, nil
}

// emptyCourseFilter matches documents of the course with no first
// subscriber: an empty users array, a null one or none at all.
func emptyCourseFilter(name string) bson.D {
	return bson.D{
		{Key: "name", Value: name},
		{Key: "users.0", Value: bson.D{{Key: "$exists", Value: false}}},
	}
}

// RemoveCourse deletes the course document once nobody is subscribed to
// it. A subscriber that joined after the caller's snapshot keeps the
// document alive. Removing an absent course is not an error.
func (db *Database) RemoveCourse(ctx context.Context, name string) error {
	filter := emptyCourseFilter(name)
	result, err := db.courses.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("DeleteMany with filter %v: %w", filter, err)
	}
	db.log.Debug().Str("course", name).Int64("deleted", result.DeletedCount).Msg("removed course")
	return nil
}

// Unsubscribe pulls userID from every document of the course.
func (db *Database) Unsubscribe(ctx context.Context, name string, userID string) error {
	filter := bson.D{{Key: "name", Value: name}}
	update := bson.D{{Key: "$pull", Value: bson.D{{Key: "users", Value: userID}}}}
	result, err := db.courses.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update data base with filter %v and update query %v: %w",
			filter, update, err)
	}
	db.log.Debug().Str("course", name).Str("user", userID).
		Int64("modified", result.ModifiedCount).Msg("removed subscriber")
	return nil
}

// SetSubscriptionStatus upserts the user's subscription flag and last
// subscribed course.
func (db *Database) SetSubscriptionStatus(ctx context.Context, userID string, isSubscribed bool, lastSubscription string) error {
	filter := bson.D{{Key: "user", Value: userID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_subscribed", Value: isSubscribed},
		{Key: "last_subscription", Value: lastSubscription},
	}}}
	if _, err := db.users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("updating subscription status of %s: %w", userID, err)
	}
	return nil
}

// Subscribe adds userID to the course document for semester, creating the
// document if needed, and records the subscription on the user.
func (db *Database) Subscribe(ctx context.Context, name string, semester string, userID string, at time.Time) error {
	filter := bson.D{{Key: "name", Value: name}, {Key: "semester", Value: semester}}
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: "users", Value: userID}}}}
	if _, err := db.courses.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("adding subscriber %s to %s: %w", userID, name, err)
	}

	userFilter := bson.D{{Key: "user", Value: userID}}
	userUpdate := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_subscribed", Value: true},
		{Key: "last_subscribed", Value: at},
		{Key: "last_subscription", Value: name},
	}}}
	if _, err := db.users.UpdateOne(ctx, userFilter, userUpdate, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("updating user %s: %w", userID, err)
	}
	db.log.Info().Str("course", name).Str("user", userID).Msg("added subscriber")
	return nil
}

func (db *Database) GetUser(ctx context.Context, userID string) (User, error) {
	result := db.users.FindOne(ctx, bson.D{{Key: "user", Value: userID}})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNoSuchUser
		}
		return User{}, fmt.Errorf("finding user %s: %w", userID, err)
	}
	var u User
	if err := result.Decode(&u); err != nil {
		return User{}, fmt.Errorf("decoding user: %w", err)
	}
	return u, nil
}

func (db *Database) GetUserCourse(ctx context.Context, userID string) (Subscription, error) {
	result := db.courses.FindOne(ctx, bson.D{{Key: "users", Value: userID}})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Subscription{}, ErrNoSuchCourse
		}
		return Subscription{}, fmt.Errorf("finding course of user %s: %w", userID, err)
	}
	var s Subscription
	if err := result.Decode(&s); err != nil {
		return Subscription{}, fmt.Errorf("decoding subscription: %w", err)
	}
	return s, nil
}

func (db *Database) ListUsers(ctx context.Context) ([]User, error) {
	cursor, err := db.users.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("getting collection cursor: %w", err)
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decoding results as users: %w", err)
	}
	return users, nil
}

// SyncUserStatuses rewrites every user's status from the course documents:
// users found in a course are marked subscribed to it, users marked
// subscribed but found in no course are marked unsubscribed. It returns
// the number of users written.
func (db *Database) SyncUserStatuses(ctx context.Context) (int, error) {
	subs, err := db.ListCourseSubscriptions(ctx)
	if err != nil {
		return 0, err
	}
	users, err := db.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	subscribed := make(map[string]bool)
	for _, sub := range subs {
		for _, uid := range sub.Users {
			subscribed[uid] = true
			if err := db.SetSubscriptionStatus(ctx, uid, true, sub.Name); err != nil {
				return updated, err
			}
			updated++
		}
	}
	for _, u := range users {
		if subscribed[u.ID] || !u.IsSubscribed {
			continue
		}
		if err := db.SetSubscriptionStatus(ctx, u.ID, false, u.LastSubscription); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
