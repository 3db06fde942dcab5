// Package auth provides the opaque credential source the chat client
// attaches to thread API requests. It knows nothing about how credentials
// are obtained beyond login/logout; requests made without a credential are
// sent anonymously.
package auth

import (
	"os"
	"sync"

	"intersectx/internal/logger"
	"intersectx/pkg/chattypes"
)

// CredentialSource supplies the bearer token and user identity for API
// requests. An empty token means the request goes out without an
// Authorization header.
type CredentialSource interface {
	Token() string
	CurrentUser() *chattypes.User
}

// Store is an in-memory credential holder safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	token string
	user  *chattypes.User
}

// NewStore creates an empty credential store (anonymous until Login).
func NewStore() *Store {
	return &Store{}
}

// FromEnv creates a credential store seeded from the INTERSECTX_API_TOKEN,
// INTERSECTX_USER_EMAIL, INTERSECTX_USER_FIRST_NAME and
// INTERSECTX_USER_LAST_NAME environment variables. Missing variables leave
// the store anonymous.
func FromEnv() *Store {
	s := NewStore()

	token := os.Getenv("INTERSECTX_API_TOKEN")
	email := os.Getenv("INTERSECTX_USER_EMAIL")
	if token == "" && email == "" {
		return s
	}

	s.Login(token, &chattypes.User{
		Email:     email,
		FirstName: os.Getenv("INTERSECTX_USER_FIRST_NAME"),
		LastName:  os.Getenv("INTERSECTX_USER_LAST_NAME"),
	})
	return s
}

// Login stores the credential and the user it belongs to.
func (s *Store) Login(token string, user *chattypes.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.user = user

	email := ""
	if user != nil {
		email = user.Email
	}
	logger.Debug("Credentials stored", "user", email, "has_token", token != "")
}

// Logout clears the stored credential and user.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.user = nil
	logger.Debug("Credentials cleared")
}

// Token returns the current bearer token, or the empty string when
// anonymous.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUser returns the logged-in user, or nil when anonymous.
func (s *Store) CurrentUser() *chattypes.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}
