package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// User is an account created the first time someone signs in with a provider.
type User struct {
	Base
	Email     string
	Name      string
	AvatarURL string
}

// NewUser creates a [User] with fresh timestamps.
func NewUser(sequence int, email, name string) *User {
	return &User{Base: newBase(sequence), Email: email, Name: name}
}

// Validate requires a parseable email address and a display name.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", u.Email, err)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Identity is the provider-neutral profile an OAuth strategy produces after a token exchange.
type Identity struct {
	Provider string `json:"provider"`
	UID      string `json:"uid"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Image    string `json:"image"`
	URL      string `json:"url,omitempty"`
	RawInfo  string `json:"-"`
}

// Credentials holds the OAuth tokens obtained alongside an [Identity].
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// LinkedIdentity persists an [Identity] and its [Credentials] for a [User].
type LinkedIdentity struct {
	Base
	UserID string
	Identity
	Credentials
}

// NewLinkedIdentity links identity to the user with userID.
func NewLinkedIdentity(sequence int, userID string, identity Identity, creds Credentials) *LinkedIdentity {
	return &LinkedIdentity{Base: newBase(sequence), UserID: userID, Identity: identity, Credentials: creds}
}

func (l *LinkedIdentity) Validate() error {
	switch {
	case l.UserID == "":
		return fmt.Errorf("user_id is required")
	case l.Provider == "":
		return fmt.Errorf("provider is required")
	case l.UID == "":
		return fmt.Errorf("uid is required")
	}
	return nil
}
