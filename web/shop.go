package web

import (
	"errors"
	"net/http"
	"strconv"

	"bomsabor-web/backend"
	"bomsabor-web/models"
	"bomsabor-web/services"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type menuListData struct {
	Items  []models.MenuItem
	Failed bool
}

type homePage struct {
	Period       models.Period
	Menu         menuListData
	Cart         []services.CartLine
	Totals       services.OrderTotals
	Form         services.CheckoutForm
	Resolver     services.ResolverView
	Errors       services.ValidationErrors
	Confirmation *services.Confirmation
}

type trackingPage struct {
	Token string
	Order *models.Order
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	if p := models.Period(r.URL.Query().Get("period")); p.Valid() {
		st.Checkout.SetPeriod(p)
	}

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
		s.log.Warn().Err(menuErr).Msg("load menu")
	} else {
		st.Menu.Replace(items)
	}
	if zonesErr != nil {
		s.log.Warn().Err(zonesErr).Msg("load delivery zones")
	} else {
		st.Checkout.LoadZones(zones)
	}

	flashes, errs := st.takeMessages()
	form := st.Checkout.Form()
	period := periodOrDefault(form.Period)
	s.render(w, r, http.StatusOK, "home", "Cardápio", flashes, homePage{
		Period:       period,
		Menu:         menuListData{Items: st.Menu.ByPeriod(period), Failed: menuErr != nil},
		Cart:         st.Cart.Lines(),
		Totals:       st.Checkout.Totals(st.Cart),
		Form:         form,
		Resolver:     st.Checkout.Resolver(),
		Errors:       errs,
		Confirmation: st.Checkout.Confirmation(),
	})
}

// handleCartAdd prices the selection from the menu this browser was shown, never
// from the posted form.
func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	item, ok := st.Menu.Get(models.FlexID(r.FormValue("item_id")))
	if !ok {
		st.flashError("Item indisponível", "Atualize o cardápio e tente novamente.")
		redirect(w, r, "/")
		return
	}
	price, label := item.Price, models.SizeLargeLabel
	if r.FormValue("size") == "small" && item.HasSizes() {
		price, label = item.SmallPrice.Decimal, models.SizeSmallLabel
	}
	st.Cart.AddItem(item, price, label)
	redirect(w, r, "/")
}

func (s *Server) handleCartAdjust(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	delta, err := strconv.Atoi(r.FormValue("delta"))
	if err == nil {
		st.Cart.AdjustQuantity(r.FormValue("line_id"), delta)
	}
	redirect(w, r, "/")
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	s.state(r).Cart.RemoveLine(r.FormValue("line_id"))
	redirect(w, r, "/")
}

// absorbCheckoutForm copies everything the checkout form posted into the
// browser's checkout. A neighborhood is only taken when the city did not change
// in the same post, since the list it came from belonged to the old city.
func absorbCheckoutForm(r *http.Request, st *browserState) {
	c := st.Checkout
	c.Update(services.CheckoutForm{
		Customer:      r.FormValue("customer"),
		Phone:         r.FormValue("phone"),
		PaymentMethod: models.PaymentMethod(r.FormValue("payment_method")),
		Street:        r.FormValue("street"),
		Notes:         r.FormValue("notes"),
		Period:        models.Period(r.FormValue("period")),
	})
	if f := models.Fulfillment(r.FormValue("fulfillment")); f.Valid() && f != c.Form().Fulfillment {
		c.SetFulfillment(f)
	}
	if c.Form().Fulfillment != models.FulfillmentDelivery {
		return
	}
	view := c.Resolver()
	city := r.FormValue("city")
	if city != view.City {
		c.SelectCity(city)
		return
	}
	if n := r.FormValue("neighborhood"); n != "" && n != view.Neighborhood {
		if err := c.SelectNeighborhood(n); errors.Is(err, services.ErrZoneNotFound) {
			st.setFieldErrors(services.ValidationErrors{"neighborhood": "Bairro sem taxa de entrega cadastrada"})
		}
	}
}

func (s *Server) handleCheckoutStep(w http.ResponseWriter, r *http.Request) {
	absorbCheckoutForm(r, s.state(r))
	redirect(w, r, "/#carrinho")
}

func (s *Server) handleCheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	absorbCheckoutForm(r, st)

	conf, err := st.Checkout.Submit(r.Context(), st.Cart, s.api)
	var verr services.ValidationErrors
	switch {
	case err == nil:
		s.log.Info().Int64("order_id", conf.OrderID).Str("request_id", getRequestID(r)).Msg("order created")
		st.flashSuccess("Pedido enviado!", "Acompanhe o status pelo link abaixo.")
	case errors.Is(err, services.ErrEmptyCart):
		st.flashError("Carrinho vazio", "Adicione itens antes de enviar o pedido.")
	case errors.As(err, &verr):
		st.setFieldErrors(verr)
		st.flashError("Verifique os dados do pedido", "")
	case errors.Is(err, services.ErrSubmissionInFlight):
		st.flashError("Pedido em envio", "Aguarde a confirmação do pedido anterior.")
	default:
		if s.fail(w, r, st, "Erro ao enviar pedido", err) {
			return
		}
	}
	redirect(w, r, "/#carrinho")
}

func (s *Server) handleCheckoutNew(w http.ResponseWriter, r *http.Request) {
	s.state(r).Checkout.Reset()
	redirect(w, r, "/")
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	order, err := s.api.OrderByToken(r.Context(), tok)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			s.render(w, r, http.StatusNotFound, "notfound", "Pedido não encontrado", nil, "Pedido não encontrado.")
			return
		}
		s.log.Warn().Err(err).Str("request_id", getRequestID(r)).Msg("load tracked order")
		s.render(w, r, http.StatusBadGateway, "notfound", "Pedido", nil, "Não foi possível carregar o pedido. Tente novamente.")
		return
	}
	flashes, _ := s.state(r).takeMessages()
	s.render(w, r, http.StatusOK, "tracking", "Seu pedido", flashes, trackingPage{Token: tok, Order: order})
}
