// Package auth is the identity provider of the workbench server.
//
// # Sessions
//
// A request carries a bearer token. Provider.Authenticate verifies it with
// a TokenVerifier, rejects revoked tokens, loads the caller's profile and
// returns a Session:
//
//	session, err := provider.Authenticate(ctx, token)
//	if apperrors.Is(err, apperrors.KindAuthenticationRequired) { ... }
//
// Session.Role is empty when the profile is missing, which the access
// policy treats as "deny everything".
//
// # Verifiers
//
// JWTVerifier accepts HS256 tokens signed with a shared secret (hosted
// auth services issue these with the user ID as subject and an email
// claim). OIDCVerifier accepts ID tokens from an OpenID Connect issuer.
//
// # Profiles and sign-out
//
// Profiles are cached in an expirable LRU. SignOut records the token hash
// in a RevocationList (in-memory or Redis) until the token's expiry and
// evicts the cached profile.
package auth
