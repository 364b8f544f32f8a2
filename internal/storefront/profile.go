package storefront

import (
	"context"
	"strings"
	"sync"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

type userBlob struct {
	Profile *domain.UserProfile `json:"profile,omitempty"`
	Token   string              `json:"token,omitempty"`
}

// Session holds the last-known profile and the bearer credential in the "user" blob.
type Session struct {
	mu       sync.Mutex
	blobs    storage.Store
	loginURL string
	state    userBlob
}

func loadSession(ctx context.Context, blobs storage.Store, loginURL string) (*Session, error) {
	var state userBlob
	if _, err := storage.LoadJSON(ctx, blobs, storage.BlobUser, &state); err != nil {
		return nil, err
	}
	return &Session{blobs: blobs, loginURL: loginURL, state: state}, nil
}

// SignIn stores profile and token as the current session.
func (s *Session) SignIn(ctx context.Context, profile domain.UserProfile, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("token", "is required")
	}
	next := userBlob{Profile: &profile, Token: token}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := storage.SaveJSON(ctx, s.blobs, storage.BlobUser, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// SignOut forgets the profile and credential.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Delete(ctx, storage.BlobUser); err != nil {
		return err
	}
	s.state = userBlob{}
	return nil
}

// Profile returns the last-known profile, if signed in.
func (s *Session) Profile() (domain.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Profile == nil {
		return domain.UserProfile{}, false
	}
	return *s.state.Profile, true
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token != ""
}

// Credential returns the bearer token or an *AuthRequiredError pointing at the login flow.
func (s *Session) Credential() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token == "" {
		return "", &AuthRequiredError{LoginURL: s.loginURL}
	}
	return s.state.Token, nil
}
