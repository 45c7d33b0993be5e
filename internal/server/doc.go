// Package server is the moodtape web service: routing, sessions, SoundCloud sign-in and the JSON API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses
// [http.ServeMux] patterns ("GET /api/tracks/{id}/stream") so handlers read path values with
// [http.Request.PathValue].
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Global middleware is added with Use; per-route middleware is passed to Handle and runs inside it.
//
// # Sessions
//
// [SessionStore] keeps sessions in memory keyed by the _moodtape_session cookie. The session carries
// the OAuth state and PKCE verifier between /auth/soundcloud and its callback, and the user id afterwards.
// The id is rotated on sign-in.
//
// # Rate Limiting
//
// [RateLimiter] gives every (session, bucket) pair its own token bucket. Denied requests get a 429
// with a Retry-After header and a JSON error localized from the Accept-Language header.
//
// # Errors
//
// Handlers return shared sentinel errors; writeError maps them to status codes and never leaks the
// detail of a 500.
package server
