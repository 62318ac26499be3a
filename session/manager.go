package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bomsabor-web/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// FromContext returns the session Middleware attached, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Manager ties a browser cookie to a stored Session. Every browser gets an id,
// but only logged-in sessions reach the store.
type Manager struct {
	store      Store
	cookieName string
	secure     bool
	ttl        time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewManager(store Store, cookieName string, secure bool, ttl time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		secure:     secure,
		ttl:        ttl,
		log:        log.With().Str("component", "session").Logger(),
		now:        time.Now,
	}
}

func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(m.cookieName); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			m.setCookie(w, id, 0)
		}

		s, err := m.store.Load(r.Context(), id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.log.Error().Err(err).Msg("load session")
			}
			s = &Session{ID: id}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// Login stores the credential under a fresh id and points the cookie at it. The
// returned session replaces s.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, s *Session, token string, user models.User) (*Session, error) {
	now := m.now()
	fresh := &Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, fresh); err != nil {
		return nil, err
	}
	if s != nil && s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			m.log.Warn().Err(err).Msg("drop previous session")
		}
	}
	m.setCookie(w, fresh.ID, m.ttl)
	return fresh, nil
}

// Logout forgets the credential; the browser keeps its id.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	s.Token = ""
	s.User = models.User{}
	return m.store.Delete(ctx, s.ID)
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}
