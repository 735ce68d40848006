// Package session owns the identity of the user: the bearer token and the username.
//
// The identity is persisted in a session file, so that it survives restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/opst/chemviz/cmd/chemviz/config/open"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	yaml "gopkg.in/yaml.v3"
)

// ErrNotAuthenticated is returned when an operation needs a identity but there is none.
var ErrNotAuthenticated = errors.New("not logged in")

// Identity is an authenticated user.
type Identity struct {
	Username string
	Token    string
}

// ExpiresAt reads "exp" claim of the token.
//
// The signature is not verified. It is the backend's job.
//
// # Returns
//
// - time.Time: expiry
//
// - bool: false if the token is not JWT or it has no "exp".
func (i Identity) ExpiresAt() (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(i.Token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// file is the content of the session file.
type file struct {
	AuthToken string `yaml:"authToken"`
	Username  string `yaml:"username"`
}

type Store struct {
	path   string
	client rest.ChemvizClient
	logger *log.Logger

	m        sync.Mutex
	identity *Identity
}

// New creates an empty Store.
//
// # Args
//
// - path: session file
//
// - client: used to login and verify the token.
//
// - logger: where failures which are not returned go to.
func New(path string, client rest.ChemvizClient, logger *log.Logger) *Store {
	return &Store{path: path, client: client, logger: logger}
}

// Restore loads the identity from the session file.
//
// # Returns
//
// - *Identity: restored one, or nil if the session file does not exist or is empty.
//
// - error: when the session file cannot be read.
func (s *Store) Restore() (*Identity, error) {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	f := file{}
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("session file is broken: %s: %w", s.path, err)
	}
	if f.AuthToken == "" || f.Username == "" {
		return nil, nil
	}

	id := Identity{Username: f.Username, Token: f.AuthToken}
	s.m.Lock()
	defer s.m.Unlock()
	s.identity = &id
	return &id, nil
}

// Current returns the identity, if authenticated.
func (s *Store) Current() (Identity, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Token returns the bearer token, or ErrNotAuthenticated.
func (s *Store) Token() (string, error) {
	id, ok := s.Current()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return id.Token, nil
}

// Login sends credentials to the backend, and stores the identity on success.
//
// The username stored is the one which the backend returns.
//
// On failure, including failure to write the session file, the state is untouched.
func (s *Store) Login(ctx context.Context, username, password string) (Identity, error) {
	result, err := s.client.Login(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{Username: result.Username, Token: result.Access}
	if id.Username == "" {
		id.Username = username
	}

	buf, err := yaml.Marshal(file{AuthToken: id.Token, Username: id.Username})
	if err != nil {
		return Identity{}, err
	}
	if err := open.WriteSafely(s.path, buf); err != nil {
		return Identity{}, fmt.Errorf("cannot save session: %w", err)
	}

	s.m.Lock()
	defer s.m.Unlock()
	s.identity = &id
	return id, nil
}

// Logout clears the identity in memory and the session file.
//
// It never fails. A failure to remove the session file is logged.
func (s *Store) Logout() {
	s.m.Lock()
	s.identity = nil
	s.m.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Printf("cannot remove session file %s: %s", s.path, err)
	}
}

// Verify confirms that the backend still accepts the token.
//
// Any failure, even if it is not about authentication, logs out.
//
// # Returns
//
// - error: nil if the token is accepted. ErrNotAuthenticated if there are no identity.
// Otherwise, the error of the request.
func (s *Store) Verify(ctx context.Context) error {
	token, err := s.Token()
	if err != nil {
		return err
	}
	if _, err := s.client.ListDatasets(ctx, token); err != nil {
		s.Logout()
		return err
	}
	return nil
}

// Guard logs out if err says the token is rejected.
//
// It returns err as it is, so that callers can write `return store.Guard(err)`.
func (s *Store) Guard(err error) error {
	if errors.Is(err, rest.ErrUnauthorized) {
		s.logger.Printf("credential is rejected. logged out: %s", err)
		s.Logout()
	}
	return err
}
