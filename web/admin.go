package web

import (
	"net/http"
	"strconv"

	"bomsabor-web/backend"
	"bomsabor-web/models"
	"bomsabor-web/services"
	"bomsabor-web/session"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type loginPage struct {
	Email       string
	WaitSeconds int
}

type adminPage struct {
	Menu    []models.MenuItem
	Zones   []models.CityZones
	NewItem services.MenuItemForm
}

type ordersPage struct {
	Orders []models.Order
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).Authenticated() {
		redirect(w, r, "/admin")
		return
	}
	flashes, _ := s.state(r).takeMessages()
	s.render(w, r, http.StatusOK, "login", "Entrar", flashes, loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	ip := clientIP(r)
	email := r.FormValue("email")

	if wait := s.throttle.WaitSeconds(ip); wait > 0 {
		s.log.Warn().Str("ip", ip).Int("wait_seconds", wait).Msg("login throttled")
		st.flashError("Muitas tentativas", "Aguarde antes de tentar novamente.")
		flashes, _ := st.takeMessages()
		s.render(w, r, http.StatusTooManyRequests, "login", "Entrar", flashes, loginPage{Email: email, WaitSeconds: wait})
		return
	}

	res, err := s.api.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		s.throttle.RecordFailed(ip)
		s.log.Warn().Err(err).Str("ip", ip).Msg("login failed")
		st.flashError("Falha no login", backend.UserMessage(err))
		flashes, _ := st.takeMessages()
		s.render(w, r, http.StatusUnauthorized, "login", "Entrar", flashes, loginPage{Email: email})
		return
	}
	s.throttle.RecordSuccess(ip)

	prev := session.FromContext(r.Context())
	fresh, err := s.sessions.Login(r.Context(), w, prev, res.Token, res.User)
	if err != nil {
		s.log.Error().Err(err).Msg("save session")
		st.flashError("Falha no login", "Não foi possível iniciar a sessão.")
		redirect(w, r, "/login")
		return
	}
	if prev != nil {
		s.states.rename(prev.ID, fresh.ID)
	}
	s.log.Info().Str("user", res.User.Email).Msg("admin logged in")
	st.flashSuccess("Login realizado", "Bem-vindo, "+res.User.Name+"!")
	redirect(w, r, "/admin")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	sess := session.FromContext(r.Context())
	if sess.Authenticated() {
		if err := s.api.Logout(r.Context(), sess.Token); err != nil {
			s.log.Warn().Err(err).Msg("backend logout")
		}
	}
	if err := s.sessions.Logout(r.Context(), sess); err != nil {
		s.log.Warn().Err(err).Msg("drop session")
	}
	st.Orders.Clear()
	redirect(w, r, "/")
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)

	var (
		g        errgroup.Group
		items    []models.MenuItem
		zones    []models.DeliveryZone
		menuErr  error
		zonesErr error
	)
	g.Go(func() error {
		items, menuErr = s.api.ListMenuItems(r.Context())
		return nil
	})
	g.Go(func() error {
		zones, zonesErr = s.api.ListDeliveryZones(r.Context())
		return nil
	})
	_ = g.Wait()

	if menuErr != nil {
		if s.fail(w, r, st, "Erro ao carregar cardápio", menuErr) {
			return
		}
	} else {
		st.Menu.Replace(items)
	}
	if zonesErr != nil {
		if s.fail(w, r, st, "Erro ao carregar taxas de entrega", zonesErr) {
			return
		}
	}

	flashes, _ := st.takeMessages()
	s.render(w, r, http.StatusOK, "admin", "Administração", flashes, adminPage{
		Menu:    st.Menu.Items(),
		Zones:   services.GroupZonesByCity(zones),
		NewItem: services.MenuItemForm{Period: string(models.PeriodLunch)},
	})
}

func menuItemFormFrom(r *http.Request) services.MenuItemForm {
	return services.MenuItemForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Price:       r.FormValue("price"),
		SmallPrice:  r.FormValue("price_small"),
		ImageURL:    r.FormValue("image_url"),
		Period:      r.FormValue("period"),
	}
}

func (s *Server) handleMenuCreate(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	in, err := services.ParseMenuItemForm(menuItemFormFrom(r))
	if err != nil {
		st.flashError("Dados inválidos", err.Error())
		redirect(w, r, "/admin")
		return
	}
	item, err := s.api.CreateMenuItem(r.Context(), token(r), in)
	if err != nil {
		if !s.fail(w, r, st, "Erro ao salvar prato", err) {
			redirect(w, r, "/admin")
		}
		return
	}
	st.Menu.Apply(services.MenuItemCreated, *item)
	st.flashSuccess("Prato adicionado", item.Name)
	redirect(w, r, "/admin")
}

func (s *Server) handleMenuUpdate(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	id := chi.URLParam(r, "id")
	in, err := services.ParseMenuItemForm(menuItemFormFrom(r))
	if err != nil {
		st.flashError("Dados inválidos", err.Error())
		redirect(w, r, "/admin")
		return
	}
	item, err := s.api.UpdateMenuItem(r.Context(), token(r), id, in)
	if err != nil {
		if !s.fail(w, r, st, "Erro ao salvar prato", err) {
			redirect(w, r, "/admin")
		}
		return
	}
	st.Menu.Apply(services.MenuItemUpdated, *item)
	st.flashSuccess("Prato atualizado", item.Name)
	redirect(w, r, "/admin")
}

func (s *Server) handleMenuDelete(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	id := chi.URLParam(r, "id")
	if err := s.api.DeleteMenuItem(r.Context(), token(r), id); err != nil {
		if !s.fail(w, r, st, "Erro ao excluir prato", err) {
			redirect(w, r, "/admin")
		}
		return
	}
	st.Menu.Apply(services.MenuItemDeleted, models.MenuItem{ID: models.FlexID(id)})
	st.flashSuccess("Prato excluído", "")
	redirect(w, r, "/admin")
}

func (s *Server) handleZoneCreate(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	in, err := services.ParseZoneForm(r.FormValue("city"), r.FormValue("neighborhood"), r.FormValue("fee"))
	if err != nil {
		st.flashError("Dados inválidos", err.Error())
		redirect(w, r, "/admin")
		return
	}
	if _, err := s.api.CreateDeliveryZone(r.Context(), token(r), in); err != nil {
		if !s.fail(w, r, st, "Erro ao salvar taxa", err) {
			redirect(w, r, "/admin")
		}
		return
	}
	st.flashSuccess("Taxa cadastrada", in.City+" - "+in.Neighborhood)
	redirect(w, r, "/admin")
}

func (s *Server) handleZoneUpdate(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.render(w, r, http.StatusNotFound, "notfound", "Página não encontrada", nil, nil)
		return
	}
	in, err := services.ParseZoneForm(r.FormValue("city"), r.FormValue("neighborhood"), r.FormValue("fee"))
	if err != nil {
		st.flashError("Dados inválidos", err.Error())
		redirect(w, r, "/admin")
		return
	}
	if _, err := s.api.UpdateDeliveryZone(r.Context(), token(r), id, in); err != nil {
		if !s.fail(w, r, st, "Erro ao salvar taxa", err) {
			redirect(w, r, "/admin")
		}
		return
	}
	st.flashSuccess("Taxa atualizada", in.City+" - "+in.Neighborhood)
	redirect(w, r, "/admin")
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	orders, err := s.api.ListOrders(r.Context(), token(r))
	if err != nil {
		if s.fail(w, r, st, "Erro ao carregar pedidos", err) {
			return
		}
	} else {
		st.Orders.Replace(orders)
	}
	flashes, _ := st.takeMessages()
	s.render(w, r, http.StatusOK, "orders", "Pedidos", flashes, ordersPage{Orders: st.Orders.Orders()})
}

// handleOrderStatus shows the new status right away and puts the old one back
// if the API refuses it.
func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.render(w, r, http.StatusNotFound, "notfound", "Página não encontrada", nil, nil)
		return
	}
	status := models.OrderStatus(r.FormValue("status"))
	if !services.ValidStatus(status) {
		st.flashError("Status inválido", string(status))
		redirect(w, r, "/orders")
		return
	}
	ch, err := st.Orders.BeginStatus(id, status)
	if err != nil {
		st.flashError("Pedido não encontrado", "Atualize a lista de pedidos.")
		redirect(w, r, "/orders")
		return
	}
	updated, err := s.api.UpdateOrderStatus(r.Context(), token(r), id, status)
	if err != nil {
		st.Orders.RevertStatus(ch)
		if !s.fail(w, r, st, "Erro ao atualizar status", err) {
			redirect(w, r, "/orders")
		}
		return
	}
	st.Orders.ConfirmStatus(ch, updated)
	st.flashSuccess("Status atualizado", "Pedido #"+strconv.FormatInt(id, 10)+": "+services.StatusLabel(status))
	redirect(w, r, "/orders")
}

func (s *Server) handleOrdersReset(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	if r.FormValue("confirm") != "yes" {
		st.flashError("Confirmação necessária", "Confirme para apagar todos os pedidos.")
		redirect(w, r, "/orders")
		return
	}
	if err := s.api.ResetOrders(r.Context(), token(r)); err != nil {
		if !s.fail(w, r, st, "Erro ao zerar pedidos", err) {
			redirect(w, r, "/orders")
		}
		return
	}
	st.Orders.Clear()
	s.log.Info().Str("request_id", getRequestID(r)).Msg("orders reset")
	st.flashSuccess("Pedidos zerados", "")
	redirect(w, r, "/orders")
}
