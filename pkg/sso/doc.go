// Package sso implements OpenID Connect single sign-on.
//
// GET /auth/login stores a random state in a short-lived cookie and
// redirects to the identity provider. GET /auth/callback checks the state,
// exchanges the authorization code, verifies the ID token and provisions a
// profile on first login (role viewer unless configured otherwise). The
// response carries the ID token, which clients send as their bearer token:
//
//	{"id_token": "...", "expires_at": "2024-01-01T12:00:00Z", "user_id": "..."}
//
// The API server accepts these tokens when its verifier is configured for
// the same issuer and client ID.
package sso
