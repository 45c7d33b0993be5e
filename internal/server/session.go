package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/moodtape/internal/shared"
)

// SessionCookie is the name of the cookie carrying the session id.
const SessionCookie = "_moodtape_session"

const defaultSessionTTL = 14 * 24 * time.Hour

// anonymousSessionTTL caps how long a session without a signed-in user lives, which bounds an
// unfinished sign-in.
const anonymousSessionTTL = 15 * time.Minute

// Session is the server-side state behind a session cookie.
type Session struct {
	ID         string
	UserID     string
	OAuthState string
	Verifier   string
	CreatedAt  time.Time
	LastSeen   time.Time

	// New is set while the session has only been started on the current request. It is never stored.
	New bool
}

// Authenticated reports whether a user has signed in on this session.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// SessionStore keeps sessions in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions expire after ttl without activity. secure marks the
// cookie Secure.
func NewSessionStore(ttl time.Duration, secure bool) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{sessions: make(map[string]Session), ttl: ttl, secure: secure, now: time.Now}
}

// Get returns the live session with id.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, s.now()) {
		delete(s.sessions, id)
		return Session{}, false
	}
	return sess, true
}

// Create starts an empty session and stores it.
func (s *SessionStore) Create() Session {
	sess := s.start()
	s.Save(sess)
	sess.New = false
	return sess
}

// start returns an unsaved session.
func (s *SessionStore) start() Session {
	now := s.now()
	return Session{ID: shared.GenerateID(), CreatedAt: now, LastSeen: now, New: true}
}

// Save stores sess, replacing any session with the same id.
func (s *SessionStore) Save(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.New = false
	s.sessions[sess.ID] = sess
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(sess Session, now time.Time) bool {
	ttl := s.ttl
	if !sess.Authenticated() {
		ttl = min(ttl, anonymousSessionTTL)
	}
	return now.Sub(sess.LastSeen) > ttl
}

// Delete removes the session with id.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Rotate replaces sess with a copy under a new id, used when a user signs in.
func (s *SessionStore) Rotate(w http.ResponseWriter, sess Session) Session {
	s.Delete(sess.ID)

	rotated := sess
	rotated.ID = shared.GenerateID()
	rotated.LastSeen = s.now()
	s.Save(rotated)
	s.setCookie(w, rotated.ID, int(s.ttl.Seconds()))
	return rotated
}

// Destroy removes sess and expires its cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, sess Session) {
	s.Delete(sess.ID)
	s.setCookie(w, "", -1)
}

func (s *SessionStore) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware loads the session named by the cookie, starting a new one when it is missing or expired.
// A new session is only stored once a handler saves it.
func (s *SessionStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess Session
		found := false
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			sess, found = s.Get(c.Value)
		}

		if found {
			sess.LastSeen = s.now()
			s.Save(sess)
		} else {
			sess = s.start()
			s.setCookie(w, sess.ID, int(s.ttl.Seconds()))
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

type sessionKey struct{}

func withSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session stored on ctx by [SessionStore.Middleware].
func SessionFrom(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}
