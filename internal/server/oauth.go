package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/services"
	"github.com/desertthunder/moodtape/internal/shared"
	"golang.org/x/oauth2"
)

const welcomeTimeout = 15 * time.Second

// handleAuthStart stores a fresh state and PKCE verifier on the session and redirects to the provider.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	sess.OAuthState = shared.GenerateID()
	sess.Verifier = oauth2.GenerateVerifier()
	s.sessions.Save(sess)

	http.Redirect(w, r, s.provider.AuthCodeURL(sess.OAuthState, sess.Verifier), http.StatusFound)
}

// handleAuthCallback validates the state, exchanges the code and signs the user in.
//
// The state is cleared before anything else so each authorization is processed once.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	state, verifier := sess.OAuthState, sess.Verifier
	sess.OAuthState, sess.Verifier = "", ""
	if !sess.New {
		s.sessions.Save(sess)
	}

	q := r.URL.Query()
	if state == "" || q.Get("state") != state {
		s.logger.Warn("oauth state mismatch", "provider", s.provider.Name())
		writeError(w, shared.ErrInvalidState)
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		writeError(w, err)
		return
	}

	token, err := s.provider.Exchange(r.Context(), code, verifier)
	if err != nil {
		s.logger.Error("token exchange failed", "provider", s.provider.Name(), "error", err)
		writeError(w, err)
		return
	}

	identity, err := s.provider.Identity(r.Context(), token)
	if err != nil {
		s.logger.Error("failed to fetch identity", "provider", s.provider.Name(), "error", err)
		writeError(w, err)
		return
	}

	user, created, err := s.identities.LinkAccount(*identity, services.CredentialsFromToken(token), "")
	if err != nil {
		s.logger.Error("failed to link account", "uid", identity.UID, "error", err)
		writeError(w, err)
		return
	}

	sess.UserID = user.ID()
	s.sessions.Rotate(w, sess)

	s.logger.Info("signed in", "user_id", user.ID(), "provider", identity.Provider, "created", created)
	if created {
		s.sendWelcome(r.Context(), user)
	}

	http.Redirect(w, r, s.afterSignIn(), http.StatusFound)
}

func (s *Server) afterSignIn() string {
	if base := strings.TrimRight(s.config.Server.BaseURL, "/"); base != "" {
		return base + "/"
	}
	return "/"
}

// sendWelcome mails a new user unless their address is a placeholder. Failures are logged.
func (s *Server) sendWelcome(ctx context.Context, user *models.User) {
	if repositories.IsPlaceholderEmail(user.Email) {
		s.logger.Debug("skipping welcome mail for placeholder address", "user_id", user.ID())
		return
	}

	msg, err := s.mailer.WelcomeMail(user)
	if err != nil {
		s.logger.Error("failed to compose welcome mail", "user_id", user.ID(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)
	defer cancel()
	if err := s.mailer.Send(ctx, "welcome", msg); err != nil {
		s.logger.Error("failed to send welcome mail", "user_id", user.ID(), "error", err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	s.sessions.Destroy(w, sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

type updateMeRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

// handleUpdateMe lets a user replace their placeholder address. Setting a real address for the first
// time sends the welcome mail.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	hadPlaceholder := repositories.IsPlaceholderEmail(user.Email)
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	if err := s.users.Update(user); err != nil {
		writeError(w, err)
		return
	}

	if hadPlaceholder && !repositories.IsPlaceholderEmail(user.Email) {
		s.sendWelcome(r.Context(), user)
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}
