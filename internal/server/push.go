package server

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/shared"
)

// subscribeRequest mirrors the JSON form of a browser PushSubscription.
type subscribeRequest struct {
	Endpoint       string  `json:"endpoint"`
	ExpirationTime *int64  `json:"expirationTime"`
	Keys           pushKey `json:"keys"`
}

type pushKey struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// pushRoutes serves the web push endpoints as one group, dispatching on the matched pattern.
type pushRoutes struct {
	handlers map[string]http.Handler
}

func newPushRoutes(s *Server) *pushRoutes {
	return &pushRoutes{handlers: map[string]http.Handler{
		"POST /api/push_subscriptions":   RequireUser(http.HandlerFunc(s.handleSubscribe)),
		"DELETE /api/push_subscriptions": RequireUser(http.HandlerFunc(s.handleUnsubscribe)),
		"POST /api/push/test":            RequireUser(http.HandlerFunc(s.handleTestPush)),
		"GET /api/push/vapid_public_key": http.HandlerFunc(s.handleVAPIDKey),
	}}
}

func (p *pushRoutes) Routes() []string {
	return slices.Sorted(maps.Keys(p.handlers))
}

func (p *pushRoutes) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := p.handlers[r.Pattern]
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", shared.ErrNotFound, r.URL.Path))
		return
	}
	h.ServeHTTP(w, r)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub := models.NewPushSubscription(0, user.ID(), strings.TrimSpace(req.Endpoint), req.Keys.P256dh, req.Keys.Auth)
	sub.UserAgent = r.UserAgent()
	if err := s.subs.Upsert(sub); err != nil {
		writeError(w, err)
		return
	}

	s.logger.Debug("push subscription saved", "user_id", user.ID(), "subscription_id", sub.ID())
	writeJSON(w, http.StatusCreated, subscriptionView{ID: sub.ID(), Endpoint: sub.Endpoint})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req unsubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		writeError(w, fmt.Errorf("%w: endpoint", shared.ErrMissingArgument))
		return
	}

	if err := s.subs.DeleteByEndpoint(user.ID(), req.Endpoint); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVAPIDKey(w http.ResponseWriter, r *http.Request) {
	key := s.config.Push.VAPIDPublicKey
	if key == "" {
		writeError(w, fmt.Errorf("%w: push notifications are not configured", shared.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": key})
}

type testPushRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// handleTestPush sends a notification to every browser the current user subscribed.
func (s *Server) handleTestPush(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req testPushRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Body == "" {
		req.Body = "Push notifications are working."
	}

	n := push.Notification{Title: req.Title, Options: push.Options{Body: req.Body}}
	if n.Title == "" {
		n.Title = push.DefaultTitle
	}

	result, err := s.broadcaster.BroadcastToUser(r.Context(), nil, user.ID(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcastView{
		Total:  result.Total,
		Sent:   result.Sent,
		Failed: result.Failed,
		Pruned: result.Pruned,
	})
}
