package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bomsabor-web/models"
	"bomsabor-web/realtime"
	"bomsabor-web/services"
	"bomsabor-web/session"

	"github.com/go-chi/chi/v5"
)

const (
	streamConnectTimeout = 10 * time.Second
	streamHeartbeat      = 25 * time.Second
)

// fragmentEvent replaces the element with id Target by HTML in the browser.
type fragmentEvent struct {
	Target string `json:"target"`
	HTML   string `json:"html"`
}

// pushFunc queues a rendered fragment for the browser.
type pushFunc func(target, html string)

// subscribeFunc joins the channels of one page on rt.
type subscribeFunc func(ctx context.Context, rt *realtime.Client, push pushFunc) error

// stream bridges one broadcast connection to a server-sent event stream. The
// connection lives exactly as long as the request; when it drops, the stream
// ends and EventSource reconnects.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, tokenForPrivate string, subscribe subscribeFunc) {
	if s.newRealtime == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	rt := s.newRealtime()
	defer rt.Close()
	if tokenForPrivate != "" {
		rt.SetCredential(tokenForPrivate)
	}

	events := make(chan fragmentEvent, 16)
	push := func(target, html string) {
		select {
		case events <- fragmentEvent{Target: target, HTML: html}:
		case <-ctx.Done():
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, streamConnectTimeout)
	err := subscribe(connectCtx, rt, push)
	if err == nil {
		err = rt.Connect(connectCtx)
	}
	cancel()
	if err != nil {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("open event stream")
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.Done():
			return
		case <-s.closing:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			b, err := json.Marshal(ev)
			if err != nil {
				s.log.Error().Err(err).Msg("encode fragment")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: fragment\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleMenuEvents(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	s.stream(w, r, "", func(ctx context.Context, rt *realtime.Client, push pushFunc) error {
		_, err := rt.Subscribe(ctx, realtime.ChannelMenu, func(ev realtime.Event) {
			var item models.MenuItem
			if err := ev.Decode(&item); err != nil {
				s.log.Warn().Err(err).Str("event", ev.Name).Msg("decode menu event")
				return
			}
			if !st.Menu.Apply(services.MenuEvent(ev.Name), item) {
				return
			}
			period := periodOrDefault(st.Checkout.Form().Period)
			html, err := s.views.fragment("home", "menu_list", menuListData{Items: st.Menu.ByPeriod(period)})
			if err != nil {
				s.log.Error().Err(err).Msg("render menu list")
				return
			}
			push("menu-list", html)
		})
		return err
	})
}

func (s *Server) handleOrderEvents(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	s.stream(w, r, session.FromContext(r.Context()).Token, func(ctx context.Context, rt *realtime.Client, push pushFunc) error {
		_, err := rt.Subscribe(ctx, realtime.ChannelAdminOrders, func(ev realtime.Event) {
			changed := false
			switch ev.Name {
			case realtime.EventOrderCreated:
				var o models.Order
				if err := ev.Decode(&o); err != nil || o.ID == 0 {
					s.log.Warn().Err(err).Msg("decode created order")
					return
				}
				st.Orders.Upsert(o)
				changed = true
			case realtime.EventOrderStatusUpdated:
				var u models.StatusUpdate
				if err := ev.Decode(&u); err != nil {
					s.log.Warn().Err(err).Msg("decode status update")
					return
				}
				changed = st.Orders.ApplyPush(u)
			}
			if !changed {
				return
			}
			html, err := s.views.fragment("orders", "order_list", ordersPage{Orders: st.Orders.Orders()})
			if err != nil {
				s.log.Error().Err(err).Msg("render order list")
				return
			}
			push("order-list", html)
		})
		return err
	})
}

func (s *Server) handleTrackingEvents(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	s.stream(w, r, "", func(ctx context.Context, rt *realtime.Client, push pushFunc) error {
		_, err := rt.Subscribe(ctx, realtime.OrderChannel(tok), func(ev realtime.Event) {
			if ev.Name != realtime.EventOrderStatusUpdated {
				return
			}
			var u models.StatusUpdate
			if err := ev.Decode(&u); err != nil || u.Status == "" {
				s.log.Warn().Err(err).Msg("decode tracking update")
				return
			}
			html, err := s.views.fragment("tracking", "tracking_status", models.Order{Status: u.Status})
			if err != nil {
				s.log.Error().Err(err).Msg("render tracking status")
				return
			}
			push("tracking-status", html)
		})
		return err
	})
}
