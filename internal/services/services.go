package services

import (
	"context"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"golang.org/x/oauth2"
)

// IdentityProvider is an OAuth2 sign-in provider that turns a token exchange into a normalized identity.
type IdentityProvider interface {
	// Name returns the provider key stored on identities (e.g., "soundcloud").
	Name() string

	// AuthCodeURL returns the authorization URL with state and a PKCE challenge derived from verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for a token, proving possession of verifier.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// Identity fetches the profile of the token's owner.
	Identity(ctx context.Context, token *oauth2.Token) (*models.Identity, error)
}

// Catalog searches, resolves and streams tracks.
type Catalog interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
	Track(ctx context.Context, id string) (*models.Track, error)
	StreamURL(ctx context.Context, id string) (string, error)
	Resolve(ctx context.Context, url string) (*models.Track, error)
	Waveform(ctx context.Context, waveformURL string) (*models.Waveform, error)
}

// CredentialsFromToken converts an OAuth2 token into the credentials stored alongside an identity.
func CredentialsFromToken(token *oauth2.Token) models.Credentials {
	if token == nil {
		return models.Credentials{}
	}

	creds := models.Credentials{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if !token.Expiry.IsZero() {
		expires := token.Expiry.UTC().Truncate(time.Second)
		creds.ExpiresAt = &expires
	}
	return creds
}
