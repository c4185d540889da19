package sso

import "time"

// DefaultScopes are requested when Config.Scopes is empty
var DefaultScopes = []string{"openid", "email", "profile"}

// DefaultRole is granted to accounts provisioned on first login
const DefaultRole = "viewer"

// Config holds OpenID Connect client configuration
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string // never logged
	RedirectURL  string
	Scopes       []string

	// DefaultRole applies to profiles created on first login
	DefaultRole string
	// CookieSecure marks the state cookie Secure (HTTPS deployments)
	CookieSecure bool
}

// Identity is the user asserted by a verified ID token
type Identity struct {
	Subject   string
	Email     string
	FullName  string
	IDToken   string
	ExpiresAt time.Time
}

// LoginResult is returned by the callback. The ID token is used as the
// bearer token for the API.
type LoginResult struct {
	IDToken   string    `json:"id_token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
}
