// Package session keeps the one piece of browser state that survives a reload:
// the backend bearer token and the cached profile of the logged-in admin.
package session

import (
	"context"
	"errors"
	"time"

	"bomsabor-web/models"
)

var ErrNotFound = errors.New("session: not found")

type Session struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists authenticated sessions. Load returns ErrNotFound for unknown or
// expired ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
