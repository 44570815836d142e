package avatar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal/internal/cloudinary"
	"portal/internal/queue"
)

type fakeUploader struct {
	err error
}

func (f fakeUploader) UploadDataURL(_ context.Context, _, publicID string) (*cloudinary.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cloudinary.UploadResult{PublicID: publicID, SecureURL: "https://res.test/" + publicID + ".png"}, nil
}

type photos struct {
	mu   sync.Mutex
	urls map[string]string
}

func (p *photos) SetPhotoURL(_ context.Context, uid, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls[uid] = url
	return nil
}

func (p *photos) get(uid string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urls[uid]
}

type results struct {
	mu   sync.Mutex
	seen []string
}

func (r *results) AvatarUpload(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, result)
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	store := &photos{urls: map[string]string{}}
	rec := &results{}

	p := NewProcessor(fakeUploader{}, store, nil, rec, zap.NewNop())
	require.NoError(t, p.Handle(ctx, queue.Message{Type: queue.TypeAvatarUpload, UID: "u1", Data: "data:image/png;base64,AAAA"}))
	assert.Equal(t, "https://res.test/u1.png", store.get("u1"))

	assert.Error(t, p.Handle(ctx, queue.Message{Type: queue.TypeAvatarUpload}))

	failing := NewProcessor(fakeUploader{err: errors.New("boom")}, store, nil, rec, zap.NewNop())
	assert.Error(t, failing.Handle(ctx, queue.Message{Type: queue.TypeAvatarUpload, UID: "u2", Data: "x"}))
	assert.Empty(t, store.get("u2"))

	unconfigured := NewProcessor(nil, store, nil, rec, zap.NewNop())
	assert.ErrorIs(t, unconfigured.Handle(ctx, queue.Message{UID: "u3", Data: "x"}), ErrNotConfigured)

	assert.Equal(t, []string{"ok", "invalid", "failed", "skipped"}, rec.seen)
}

func TestRunConsumesQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(4)
	store := &photos{urls: map[string]string{}}
	p := NewProcessor(fakeUploader{}, store, nil, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx, q)
	}()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other", UID: "ignored", Data: "x"}))
	require.NoError(t, queue.AvatarPublisher{Queue: q}.EnqueueAvatar(ctx, "u1", "data:image/png;base64,AAAA"))
	require.Eventually(t, func() bool { return store.get("u1") != "" }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, store.get("ignored"))

	cancel()
	<-done
}
