package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// stubVerifier accepts "token-<subject>" and rejects everything else
type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	const prefix = "token-"
	if len(raw) <= len(prefix) || raw[:len(prefix)] != prefix {
		return nil, ErrInvalidToken
	}
	return &Claims{Subject: raw[len(prefix):], ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// countingProfiles counts lookups that reach the store
type countingProfiles struct {
	*storage.MemoryStore
	lookups int
	err     error
}

func (c *countingProfiles) GetProfile(ctx context.Context, id string) (*storage.Profile, error) {
	c.lookups++
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryStore.GetProfile(ctx, id)
}

func newTestProvider(t *testing.T) (*Provider, *countingProfiles) {
	t.Helper()
	profiles := &countingProfiles{MemoryStore: storage.NewMemoryStore()}
	require.NoError(t, profiles.UpsertProfile(context.Background(), &storage.Profile{ID: "editor-1", Email: "ed@example.com", Role: "editor"}))
	return NewProvider(stubVerifier{}, profiles, nil, ProviderOptions{}), profiles
}

func TestProvider_Authenticate(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		_, err := provider.Authenticate(ctx, "")
		assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := provider.Authenticate(ctx, "bogus")
		assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))
	})

	t.Run("valid token with profile", func(t *testing.T) {
		session, err := provider.Authenticate(ctx, "token-editor-1")
		require.NoError(t, err)
		assert.Equal(t, "editor-1", session.UserID())
		assert.Equal(t, RoleEditor, session.Role())
		assert.Equal(t, HashToken("token-editor-1"), session.TokenHash)
	})

	t.Run("valid token without profile has no role", func(t *testing.T) {
		session, err := provider.Authenticate(ctx, "token-stranger")
		require.NoError(t, err)
		assert.Nil(t, session.Profile)
		assert.Equal(t, Role(""), session.Role())
	})
}

func TestProvider_ProfileStoreFailure(t *testing.T) {
	provider, profiles := newTestProvider(t)
	profiles.err = errors.New("connection reset")

	_, err := provider.Authenticate(context.Background(), "token-editor-1")
	assert.True(t, apperrors.Is(err, apperrors.KindStore))
}

func TestProvider_GetProfileIsCached(t *testing.T) {
	provider, profiles := newTestProvider(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := provider.GetProfile(ctx, "editor-1")
		require.NoError(t, err)
		assert.Equal(t, "editor", p.Role)
	}
	assert.Equal(t, 1, profiles.lookups)

	provider.InvalidateProfile("editor-1")
	_, err := provider.GetProfile(ctx, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, profiles.lookups)

	_, err = provider.GetProfile(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestProvider_SignOut(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	session, err := provider.Authenticate(ctx, "token-editor-1")
	require.NoError(t, err)

	require.NoError(t, provider.SignOut(ctx, session))

	_, err = provider.Authenticate(ctx, "token-editor-1")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))

	assert.True(t, apperrors.Is(provider.SignOut(ctx, nil), apperrors.KindAuthenticationRequired))
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	session := &Session{User: User{ID: "u1", Email: "u1@example.com"}}
	ctx := WithSession(context.Background(), session)

	got, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, session, got)

	user, ok := GetCurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1@example.com", user.Email)
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("owner").Valid())
	assert.Equal(t, Role(""), ParseRole("owner"))
	assert.Equal(t, RoleViewer, ParseRole("viewer"))

	var nilSession *Session
	assert.Equal(t, Role(""), nilSession.Role())
	assert.Empty(t, nilSession.UserID())

	withBadRole := &Session{Profile: &storage.Profile{Role: "superuser"}}
	assert.Equal(t, Role(""), withBadRole.Role())
}

func TestMemoryRevocationList(t *testing.T) {
	list := NewMemoryRevocationList()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	list.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "h1", now.Add(time.Minute)))
	revoked, err := list.IsRevoked(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationList(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	list := NewRedisRevocationList(client)
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "h1", time.Now().Add(time.Hour)))
	revoked, err := list.IsRevoked(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("workbench:revoked:h1"))

	mr.FastForward(2 * time.Hour)
	revoked, err = list.IsRevoked(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "h2", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("workbench:revoked:h2"))
}

func TestBearerTokenAndState(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = BearerToken("Basic dXNlcjpwYXNz")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)

	s1, err := GenerateState()
	require.NoError(t, err)
	s2, err := GenerateState()
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, HashToken("x"), 64)
}
