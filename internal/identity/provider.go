// Package identity supplies the authenticated user a session runs for. It
// never checks credentials; it only hands out stable opaque ids.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"tradeflow/pkg/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidEmail = errors.New("email is required")
	ErrUnknownUser  = errors.New("unknown user")
	ErrSignedOut    = errors.New("user is signed out")
)

type Provider interface {
	User(ctx context.Context, userID string) (models.User, error)
	SignOut(ctx context.Context, userID string) error
}

// LocalProvider issues deterministic ids per email for a single-process demo.
type LocalProvider struct {
	users    map[string]models.User
	byEmail  map[string]string
	signedIn map[string]bool
	mu       sync.RWMutex
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{
		users:    make(map[string]models.User),
		byEmail:  make(map[string]string),
		signedIn: make(map[string]bool),
	}
}

// SignIn returns the user for email, creating it on first use. The same email
// always maps to the same id so persisted subscriptions line up across runs.
func (p *LocalProvider) SignIn(email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, ErrInvalidEmail
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id, exists := p.byEmail[email]
	if !exists {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
		p.byEmail[email] = id
		p.users[id] = models.User{ID: id, Email: email}
	}

	p.signedIn[id] = true
	return p.users[id], nil
}

func (p *LocalProvider) User(ctx context.Context, userID string) (models.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	user, exists := p.users[userID]
	if !exists {
		return models.User{}, ErrUnknownUser
	}
	if !p.signedIn[userID] {
		return models.User{}, ErrSignedOut
	}
	return user, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.users[userID]; !exists {
		return ErrUnknownUser
	}
	p.signedIn[userID] = false
	return nil
}
