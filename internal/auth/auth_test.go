package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memIdentities struct {
	mu   sync.Mutex
	byID map[string]Identity
}

func newMemIdentities() *memIdentities {
	return &memIdentities{byID: map[string]Identity{}}
}

func (m *memIdentities) InsertIdentity(_ context.Context, id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == id.Email {
			return ErrEmailInUse
		}
	}
	m.byID[id.UID] = id
	return nil
}

func (m *memIdentities) IdentityByEmail(_ context.Context, email string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byID {
		if id.Email == email {
			id := id
			return &id, nil
		}
	}
	return nil, nil
}

func (m *memIdentities) DeleteIdentity(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, uid)
	return nil
}

type countingNotifier struct {
	mu   sync.Mutex
	uids []string
}

func (n *countingNotifier) AuthChanged(_ context.Context, uid string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uids = append(n.uids, uid)
	return nil
}

func newTestSessions(t *testing.T) (*Sessions, *miniredis.Miniredis, *countingNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	n := &countingNotifier{}
	return NewSessions("test-portal", "test-key", time.Hour, NewRedisDenylist(client), n), mr, n
}

func TestIssueParse(t *testing.T) {
	now := time.Now()
	sess, err := Issue("uid-1", "issuer", "key", time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", sess.UID)
	assert.NotEmpty(t, sess.ID)

	claims, err := Parse(sess.Token, "key", "issuer")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.Subject)
	assert.Equal(t, sess.ID, claims.ID)

	_, err = Parse(sess.Token, "other-key", "issuer")
	assert.Error(t, err)
	_, err = Parse(sess.Token, "key", "other-issuer")
	assert.Error(t, err)

	expired, err := Issue("uid-1", "issuer", "key", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = Parse(expired.Token, "key", "issuer")
	assert.Error(t, err)
}

func TestSessionsSignOutRevokes(t *testing.T) {
	sessions, _, n := newTestSessions(t)
	ctx := context.Background()

	sess, err := sessions.Issue(ctx, "uid-1")
	require.NoError(t, err)

	got, err := sessions.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)

	require.NoError(t, sessions.SignOut(ctx, sess))
	_, err = sessions.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	assert.Equal(t, []string{"uid-1", "uid-1"}, n.uids)
}

func TestDenylistEntryExpires(t *testing.T) {
	sessions, mr, _ := newTestSessions(t)
	ctx := context.Background()

	sess, err := sessions.Issue(ctx, "uid-1")
	require.NoError(t, err)
	require.NoError(t, sessions.SignOut(ctx, sess))
	assert.True(t, mr.Exists(revokedPrefix+sess.ID))

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(revokedPrefix+sess.ID))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	sessions, _, _ := newTestSessions(t)
	_, err := sessions.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		pwd  string
		want bool
	}{
		{"Secret123", true},
		{"Abcdefg1", true},
		{"Abcdef1", false},
		{"abcdefg1", false},
		{"ABCDEFG1", false},
		{"Abcdefgh", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.pwd, func(t *testing.T) {
			assert.Equal(t, tt.want, StrongPassword(tt.pwd))
		})
	}
}

func TestProvider(t *testing.T) {
	sessions, _, _ := newTestSessions(t)
	p := NewProvider(newMemIdentities(), sessions)
	ctx := context.Background()

	sess, err := p.CreateIdentity(ctx, "  Omar@Example.com ", "Secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.UID)

	_, err = p.CreateIdentity(ctx, "omar@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrEmailInUse)

	_, err = p.CreateIdentity(ctx, "new@example.com", "abc")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = p.CreateIdentity(ctx, "no-at-sign", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	got, err := p.Authenticate(ctx, "OMAR@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, sess.UID, got.UID)

	_, err = p.Authenticate(ctx, "omar@example.com", "Wrong1234")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = p.Authenticate(ctx, "ghost@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	require.NoError(t, p.DeleteIdentity(ctx, sess.UID))
	_, err = p.Authenticate(ctx, "omar@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestRequireSession(t *testing.T) {
	sessions, _, _ := newTestSessions(t)
	sess, err := sessions.Issue(context.Background(), "uid-1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireSession(sessions), func(c *gin.Context) {
		s, _ := SessionFrom(c)
		c.String(http.StatusOK, s.UID)
	})

	tests := []struct {
		name     string
		setup    func(*http.Request)
		wantCode int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+sess.Token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token}) }, http.StatusOK},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "uid-1", rec.Body.String())
			}
		})
	}
}
