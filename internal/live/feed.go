// Package live keeps dashboards current: every write publishes the name of the
// collection it touched and every connected dashboard re-receives the full
// result of each query reading that collection.
package live

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Collections that live queries can depend on.
const (
	CollectionUsers      = "users"
	CollectionAttendance = "attendanceRequests"
	CollectionHomeworks  = "homeworks"
	CollectionFiles      = "files"
	CollectionQuizzes    = "quizzes"
)

// Pub/sub channels.
const (
	ChannelChanges = "portal:changes"
	ChannelAuth    = "portal:auth"
)

// Feed publishes change and auth-state notifications to Redis.
type Feed struct {
	client *redis.Client
}

// NewFeed wraps client.
func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

// Changed announces a write to collection.
func (f *Feed) Changed(ctx context.Context, collection string) error {
	return f.client.Publish(ctx, ChannelChanges, collection).Err()
}

// AuthChanged announces a sign-in, sign-out or status change for uid.
func (f *Feed) AuthChanged(ctx context.Context, uid string) error {
	return f.client.Publish(ctx, ChannelAuth, uid).Err()
}
