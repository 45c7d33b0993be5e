package models

import (
	"fmt"
	"net/url"
)

// PushSubscription is a Web Push endpoint registered by one browser of a user.
type PushSubscription struct {
	Base
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent string
}

// NewPushSubscription creates a subscription for userID.
func NewPushSubscription(sequence int, userID, endpoint, p256dh, auth string) *PushSubscription {
	return &PushSubscription{Base: newBase(sequence), UserID: userID, Endpoint: endpoint, P256dh: p256dh, Auth: auth}
}

func (s *PushSubscription) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", s.Endpoint)
	}
	if s.P256dh == "" || s.Auth == "" {
		return fmt.Errorf("p256dh and auth keys are required")
	}
	return nil
}
