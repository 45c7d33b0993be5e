// Package services talks to the SoundCloud HTTP API.
//
// # Interfaces
//
// [IdentityProvider] covers web sign-in: an authorization URL with a PKCE challenge, the code
// exchange, and the mapping of the provider's profile to a [models.Identity].
// [Catalog] covers track search, resolution, stream URLs and waveforms for the player.
//
// # SoundCloud Implementation
//
// [SoundCloudService] implements both. Sign-in uses the authorization code flow with an S256
// challenge against secure.soundcloud.com. Catalog calls authenticate with the signed-in user's
// token when [SoundCloudService.WithToken] supplied one, and otherwise with an application token
// obtained through the client credentials grant.
//
// The identity mapping reads the /me document with gjson:
//
//	id            → UID (as a string)
//	full_name     → Name (falls back to username)
//	username      → Nickname
//	avatar_url    → Image
//	permalink_url → URL
//
// The raw document is kept on the identity for auditing.
//
// # Transport
//
// [APIClient] wraps go-retryablehttp. Idempotent GETs are retried on connection errors,
// 429 and 5xx with exponential backoff. The final response is passed through so callers
// see the real status.
//
// # Error Handling
//
// Status codes map to sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : 401/403
//   - [shared.ErrTrackNotFound] : 404 on catalog endpoints, or a resolved URL that isn't a track
//   - [shared.ErrRateLimited] : 429 after retries
//   - [shared.ErrServiceUnavailable] : 5xx after retries
//   - [shared.ErrAPIRequest] : any other non-2xx status
package services
