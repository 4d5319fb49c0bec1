package spotify

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// ScopeLibraryModify is the only scope the bot requests: it allows adding
// tracks to the user's library.
const ScopeLibraryModify = "user-library-modify"

// ErrNoRefreshToken is returned when an authorization-code exchange comes
// back without a refresh token; without one the stored credential could never
// be renewed.
var ErrNoRefreshToken = errors.New("spotify: no refresh token in response")

// ErrNoExpiry is returned when a token response omits the expiry. Assuming a
// default here could mask a provider contract change and hand out tokens with
// premature or indefinite validity, so it is treated as a provider error.
var ErrNoExpiry = errors.New("spotify: no expiry in token response")

// Endpoint is Spotify's OAuth2 endpoint pair.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// OAuth wraps the golang.org/x/oauth2 configuration for Spotify's
// authorization-code and refresh-token grants.
type OAuth struct {
	cfg *oauth2.Config
}

// NewOAuth builds the OAuth helper for the given app credentials. redirectURL
// must match the URI registered with Spotify.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{ScopeLibraryModify},
		Endpoint:     Endpoint,
	}}
}

// WithEndpoint points the token exchange at an alternate endpoint. Used by tests.
func (o *OAuth) WithEndpoint(ep oauth2.Endpoint) *OAuth {
	o.cfg.Endpoint = ep
	return o
}

// AuthCodeURL returns the Spotify authorization URL the user is redirected to
// during account linking, carrying the CSRF state token.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token set. The response must
// carry both a refresh token and an expiry; either missing is a provider
// error.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if tok.Expiry.IsZero() {
		return nil, ErrNoExpiry
	}
	return tok, nil
}

// Refresh exchanges a refresh token for a fresh access token. When the
// provider rotates the refresh token the returned token carries the new one;
// otherwise the library preserves the token it was seeded with. Callers that
// sidestep the library must still keep the old refresh token when the field
// comes back empty. A missing expiry is a provider error.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := o.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	if tok.Expiry.IsZero() {
		return nil, ErrNoExpiry
	}
	return tok, nil
}
