// Package web serves the customer menu and checkout, the public order tracking
// page and the admin pages as server-rendered HTML.
package web

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"bomsabor-web/backend"
	"bomsabor-web/config"
	"bomsabor-web/models"
	"bomsabor-web/realtime"
	"bomsabor-web/services"
	"bomsabor-web/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	// StateIdleTimeout drops the cart and form of a browser not seen for this long.
	StateIdleTimeout = 6 * time.Hour
	// MaxBrowserStates bounds the browsers held in memory at once.
	MaxBrowserStates = 20000
)

// RealtimeFactory opens a fresh broadcast connection per event stream. A nil
// factory turns live updates off.
type RealtimeFactory func() *realtime.Client

type Server struct {
	api         *backend.Client
	sessions    *session.Manager
	states      *stateStore
	throttle    *services.LoginThrottle
	newRealtime RealtimeFactory
	views       *renderer
	trustProxy  bool
	log         zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

func NewServer(api *backend.Client, sessions *session.Manager, newRealtime RealtimeFactory, cfg config.HTTPConfig, log zerolog.Logger) (*Server, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Server{
		api:         api,
		sessions:    sessions,
		states:      newStateStore(StateIdleTimeout, MaxBrowserStates),
		throttle:    services.NewLoginThrottle(),
		newRealtime: newRealtime,
		views:       views,
		trustProxy:  cfg.TrustProxy,
		log:         log.With().Str("component", "web").Logger(),
		closing:     make(chan struct{}),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.sessions.Middleware)
	r.Use(LoggerMiddleware(&s.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/", s.handleHome)
	r.Post("/cart/add", s.handleCartAdd)
	r.Post("/cart/adjust", s.handleCartAdjust)
	r.Post("/cart/remove", s.handleCartRemove)
	r.Post("/checkout", s.handleCheckoutSubmit)
	r.Post("/checkout/fulfillment", s.handleCheckoutStep)
	r.Post("/checkout/city", s.handleCheckoutStep)
	r.Post("/checkout/neighborhood", s.handleCheckoutStep)
	r.Post("/checkout/new", s.handleCheckoutNew)
	r.Get("/menu/events", s.handleMenuEvents)

	r.Get("/pedido/{token}", s.handleTracking)
	r.Get("/pedido/{token}/events", s.handleTrackingEvents)

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/admin", s.handleAdmin)
		r.Post("/admin/menu", s.handleMenuCreate)
		r.Post("/admin/menu/{id}", s.handleMenuUpdate)
		r.Post("/admin/menu/{id}/delete", s.handleMenuDelete)
		r.Post("/admin/zones", s.handleZoneCreate)
		r.Post("/admin/zones/{id}", s.handleZoneUpdate)
		r.Get("/orders", s.handleOrders)
		r.Get("/orders/events", s.handleOrderEvents)
		r.Post("/orders/{id}/status", s.handleOrderStatus)
		r.Post("/orders/reset", s.handleOrdersReset)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusNotFound, "notfound", "Página não encontrada", nil, nil)
	})
	return r
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// cancel running handlers, so register it with RegisterOnShutdown.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// requireAuth sends browsers without a backend credential to the login page.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) state(r *http.Request) *browserState {
	sess := session.FromContext(r.Context())
	if sess == nil {
		return newBrowserState()
	}
	return s.states.get(sess.ID)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, flashes []Flash, data any) {
	ld := layoutData{Title: title, Flashes: flashes, Page: data}
	if sess := session.FromContext(r.Context()); sess.Authenticated() {
		user := sess.User
		ld.User = &user
	}
	if err := s.views.render(w, status, page, ld); err != nil {
		s.log.Error().Err(err).Str("page", page).Msg("render page")
	}
}

// fail turns err into a notification for the next page. It returns true when
// the response is already written: an expired credential ends the session and
// redirects to the login page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, st *browserState, title string, err error) bool {
	if errors.Is(err, backend.ErrUnauthorized) {
		sess := session.FromContext(r.Context())
		if err := s.sessions.Logout(r.Context(), sess); err != nil {
			s.log.Warn().Err(err).Msg("drop expired session")
		}
		st.Orders.Clear()
		st.flashError("Sessão expirada", "Faça login novamente.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return true
	}
	s.log.Warn().Err(err).Str("request_id", getRequestID(r)).Msg(title)
	st.flashError(title, backend.UserMessage(err))
	return false
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func token(r *http.Request) string {
	if sess := session.FromContext(r.Context()); sess != nil {
		return sess.Token
	}
	return ""
}

// clientIP is the login throttle key. Proxy headers only count when RealIP is
// mounted for a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func periodOrDefault(p models.Period) models.Period {
	if p.Valid() {
		return p
	}
	return models.PeriodLunch
}
