package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/contextkeys"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

const (
	DefaultProfileCacheSize = 1024
	DefaultProfileCacheTTL  = 5 * time.Minute

	// defaultRevocationTTL applies to tokens that carry no expiry
	defaultRevocationTTL = 24 * time.Hour
)

// ProviderOptions tunes the identity provider
type ProviderOptions struct {
	ProfileCacheSize int
	ProfileCacheTTL  time.Duration
	Logger           *observability.Logger
}

// Provider is the identity provider: it verifies bearer tokens, resolves
// profiles and handles sign-out
type Provider struct {
	verifier TokenVerifier
	profiles storage.ProfileStore
	revoked  RevocationList
	cache    *lru.LRU[string, *storage.Profile]
	logger   *observability.Logger
}

// NewProvider creates an identity provider. A nil revocation list falls
// back to an in-memory one.
func NewProvider(verifier TokenVerifier, profiles storage.ProfileStore, revoked RevocationList, opts ProviderOptions) *Provider {
	if opts.ProfileCacheSize <= 0 {
		opts.ProfileCacheSize = DefaultProfileCacheSize
	}
	if opts.ProfileCacheTTL <= 0 {
		opts.ProfileCacheTTL = DefaultProfileCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if revoked == nil {
		revoked = NewMemoryRevocationList()
	}

	return &Provider{
		verifier: verifier,
		profiles: profiles,
		revoked:  revoked,
		cache:    lru.NewLRU[string, *storage.Profile](opts.ProfileCacheSize, nil, opts.ProfileCacheTTL),
		logger:   opts.Logger,
	}
}

// Authenticate verifies a raw bearer token and builds the session. A
// missing profile is not an error; the session simply has no role.
func (p *Provider) Authenticate(ctx context.Context, token string) (*Session, error) {
	const op = "auth.Authenticate"

	if token == "" {
		return nil, apperrors.AuthenticationRequired(op)
	}

	claims, err := p.verifier.Verify(ctx, token)
	if err != nil {
		p.logger.WithError(err).Debug("token verification failed")
		return nil, apperrors.AuthenticationRequired(op)
	}

	hash := HashToken(token)
	revoked, err := p.revoked.IsRevoked(ctx, hash)
	if err != nil {
		return nil, apperrors.Store(op, "failed to check session", err)
	}
	if revoked {
		return nil, apperrors.AuthenticationRequired(op)
	}

	session := &Session{
		User:      User{ID: claims.Subject, Email: claims.Email},
		TokenHash: hash,
		ExpiresAt: claims.ExpiresAt,
	}

	profile, err := p.GetProfile(ctx, claims.Subject)
	switch {
	case err == nil:
		session.Profile = profile
	case apperrors.Is(err, apperrors.KindNotFound):
		p.logger.WithField("user_id", claims.Subject).Warn("authenticated user has no profile")
	default:
		return nil, err
	}

	return session, nil
}

// GetProfile returns the user's profile, served from cache when fresh
func (p *Provider) GetProfile(ctx context.Context, userID string) (*storage.Profile, error) {
	const op = "auth.GetProfile"

	if profile, ok := p.cache.Get(userID); ok {
		copied := *profile
		return &copied, nil
	}

	profile, err := p.profiles.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(op, "profile not found")
	} else if err != nil {
		return nil, apperrors.Store(op, "failed to load profile", err)
	}

	p.cache.Add(userID, profile)
	copied := *profile
	return &copied, nil
}

// InvalidateProfile drops a cached profile
func (p *Provider) InvalidateProfile(userID string) {
	p.cache.Remove(userID)
}

// SignOut revokes the session's token until it would have expired
func (p *Provider) SignOut(ctx context.Context, session *Session) error {
	const op = "auth.SignOut"

	if session == nil {
		return apperrors.AuthenticationRequired(op)
	}

	until := session.ExpiresAt
	if until.IsZero() {
		until = time.Now().Add(defaultRevocationTTL)
	}
	if err := p.revoked.Revoke(ctx, session.TokenHash, until); err != nil {
		return apperrors.Store(op, "failed to sign out", err)
	}

	p.cache.Remove(session.UserID())
	p.logger.WithField("user_id", session.UserID()).Info("user signed out")
	return nil
}

// WithSession stores the session in ctx
func WithSession(ctx context.Context, session *Session) context.Context {
	ctx = contextkeys.WithSession(ctx, session)
	return contextkeys.WithUserID(ctx, session.UserID())
}

// SessionFromContext returns the request's session, if any
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(contextkeys.SessionKey).(*Session)
	return session, ok && session != nil
}

// GetCurrentUser returns the authenticated user of the request, if any
func GetCurrentUser(ctx context.Context) (*User, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, false
	}
	user := session.User
	return &user, true
}

// String implements fmt.Stringer for log fields
func (s *Session) String() string {
	return fmt.Sprintf("session(user=%s role=%s)", s.UserID(), s.Role())
}
