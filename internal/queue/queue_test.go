package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, AvatarPublisher{Queue: q}.EnqueueAvatar(ctx, "u1", "data:image/png;base64,AAAA"))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, Message{Type: TypeAvatarUpload, UID: "u1", Data: "data:image/png;base64,AAAA"}, msg)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewRedisQueue(client, "")
	require.NoError(t, q.Publish(ctx, Message{Type: TypeAvatarUpload, UID: "u1", Data: "first"}))
	require.NoError(t, q.Publish(ctx, Message{Type: TypeAvatarUpload, UID: "u2", Data: "second"}))

	n, err := client.LLen(ctx, DefaultKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = mr.Lpush(DefaultKey, "not json")
	require.NoError(t, err)

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	// First in, first out; the malformed entry pushed last is skipped.
	assert.Equal(t, "u1", receive(t, ch).UID)
	assert.Equal(t, "u2", receive(t, ch).UID)
}
