package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bomsabor-web/backend"
	"bomsabor-web/models"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrSubmissionInFlight = errors.New("order submission already in progress")
)

// ValidationErrors maps a form field to the message shown next to it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v[f]
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

type CheckoutForm struct {
	Customer      string
	Phone         string
	PaymentMethod models.PaymentMethod
	Fulfillment   models.Fulfillment
	Street        string
	Notes         string
	Period        models.Period
}

func NewCheckoutForm() CheckoutForm {
	return CheckoutForm{
		PaymentMethod: models.PaymentCash,
		Fulfillment:   models.FulfillmentDelivery,
		Period:        models.PeriodLunch,
	}
}

// Confirmation is what the customer sees after the backend accepted the order.
type Confirmation struct {
	OrderID     int64
	Token       string
	TrackingURL string
}

// ShortToken is the tail of the tracking token printed on the confirmation.
func (c Confirmation) ShortToken() string {
	if len(c.Token) <= 6 {
		return c.Token
	}
	return c.Token[len(c.Token)-6:]
}

// TrackingPath is the public tracking page of an order.
func TrackingPath(token string) string {
	return "/pedido/" + token
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest, idempotencyKey string) (*models.Order, error)
}

// Checkout is the order form of one browser session. It owns the delivery
// resolver and the idempotency key of the order being prepared.
type Checkout struct {
	mu           sync.Mutex
	form         CheckoutForm
	resolver     *DeliveryResolver
	idemKey      string
	lastRequest  string
	inFlight     bool
	confirmation *Confirmation
}

func NewCheckout() *Checkout {
	return &Checkout{form: NewCheckoutForm(), resolver: NewDeliveryResolver(nil)}
}

func (c *Checkout) Form() CheckoutForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Update copies the free-text fields of a posted form. Fulfillment and the
// zone selection go through SetFulfillment and the resolver.
func (c *Checkout) Update(f CheckoutForm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Customer = strings.TrimSpace(f.Customer)
	c.form.Phone = strings.TrimSpace(f.Phone)
	c.form.Street = strings.TrimSpace(f.Street)
	c.form.Notes = strings.TrimSpace(f.Notes)
	if f.PaymentMethod != "" {
		c.form.PaymentMethod = f.PaymentMethod
	}
	if f.Period != "" {
		c.form.Period = f.Period
	}
}

// SetPeriod follows the menu tab the customer is looking at.
func (c *Checkout) SetPeriod(p models.Period) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Period = p
}

func (c *Checkout) SetFulfillment(f models.Fulfillment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Fulfillment = f
	c.resolver.SetFulfillment(f)
}

// LoadZones installs a freshly fetched fee table, keeping the current selection
// when it still resolves.
func (c *Checkout) LoadZones(zones []models.DeliveryZone) {
	c.mu.Lock()
	defer c.mu.Unlock()
	city, neighborhood := c.resolver.City(), c.resolver.Neighborhood()
	c.resolver = NewDeliveryResolver(zones)
	if city != "" {
		c.resolver.SelectCity(city)
		_ = c.resolver.SelectNeighborhood(neighborhood)
	}
}

func (c *Checkout) SelectCity(city string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolver.SelectCity(city)
}

func (c *Checkout) SelectNeighborhood(n string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver.SelectNeighborhood(n)
}

// ResolverView is a read-only snapshot of the zone selection for rendering.
type ResolverView struct {
	Loaded        bool
	Cities        []string
	Neighborhoods []models.DeliveryZone
	City          string
	Neighborhood  string
	Resolved      bool
}

func (c *Checkout) Resolver() ResolverView {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.resolver
	return ResolverView{
		Loaded:        r.Loaded(),
		Cities:        r.Cities(),
		Neighborhoods: r.Neighborhoods(),
		City:          r.City(),
		Neighborhood:  r.Neighborhood(),
		Resolved:      r.Resolved(),
	}
}

func (c *Checkout) Totals(cart *Cart) OrderTotals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Totals(cart, c.form.Fulfillment, c.resolver.Fee())
}

func (c *Checkout) Confirmation() *Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmation
}

// Reset leaves the confirmation view and starts a fresh form.
func (c *Checkout) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmation = nil
	period := c.form.Period
	c.form = NewCheckoutForm()
	c.form.Period = period
	c.resolver.Reset()
}

func (c *Checkout) Validate(cart *Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked(cart)
}

func (c *Checkout) validateLocked(cart *Cart) error {
	if cart.Len() == 0 {
		return ErrEmptyCart
	}
	errs := ValidationErrors{}
	if c.form.Customer == "" {
		errs["customer"] = "Informe seu nome"
	}
	if c.form.Phone == "" {
		errs["phone"] = "Informe seu telefone"
	}
	if !c.form.PaymentMethod.Valid() {
		errs["payment_method"] = "Forma de pagamento inválida"
	}
	if !c.form.Fulfillment.Valid() {
		errs["fulfillment"] = "Tipo de entrega inválido"
	}
	if !c.form.Period.Valid() {
		errs["period"] = "Período inválido"
	}
	if c.form.Fulfillment == models.FulfillmentDelivery {
		switch {
		case c.resolver.City() == "":
			errs["city"] = "Selecione a cidade"
		case c.resolver.Neighborhood() == "":
			errs["neighborhood"] = "Selecione o bairro"
		case !c.resolver.Resolved():
			errs["neighborhood"] = "Bairro sem taxa de entrega cadastrada"
		}
		if c.form.Street == "" {
			errs["street"] = "Informe o endereço"
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Address composes the address line sent with the order.
func (c *Checkout) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addressLocked()
}

func (c *Checkout) addressLocked() string {
	if c.form.Fulfillment == models.FulfillmentPickup {
		return models.PickupAddress
	}
	return fmt.Sprintf("%s - %s (%s), %s",
		c.resolver.City(), c.resolver.Neighborhood(), models.FormatMoney(c.resolver.Fee()), c.form.Street)
}

func (c *Checkout) BuildRequest(cart *Cart) backend.CreateOrderRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildRequestLocked(cart)
}

func (c *Checkout) buildRequestLocked(cart *Cart) backend.CreateOrderRequest {
	cartLines := cart.Lines()
	lines := make([]models.OrderLine, len(cartLines))
	for i, l := range cartLines {
		lines[i] = models.OrderLine{ID: models.FlexID(l.ID), Name: l.Name, Quantity: l.Qty, Price: l.Price}
	}
	totals := Totals(cart, c.form.Fulfillment, c.resolver.Fee())
	return backend.CreateOrderRequest{
		Customer:      c.form.Customer,
		Phone:         c.form.Phone,
		Address:       c.addressLocked(),
		PaymentMethod: c.form.PaymentMethod,
		Fulfillment:   c.form.Fulfillment,
		Notes:         c.form.Notes,
		Period:        c.form.Period,
		Lines:         lines,
		Total:         backend.FormatTotal(totals.Total),
		Status:        models.OrderStatusPending,
	}
}

// Submit validates the form and sends the order. The idempotency key survives
// failed attempts of an unchanged request and is rotated once an order is accepted.
// On failure the cart and the form are left as they were.
func (c *Checkout) Submit(ctx context.Context, cart *Cart, creator OrderCreator) (*Confirmation, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if err := c.validateLocked(cart); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	req := c.buildRequestLocked(cart)
	fingerprint, err := json.Marshal(req)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("encode order: %w", err)
	}
	if c.idemKey == "" || c.lastRequest != string(fingerprint) {
		c.idemKey = uuid.NewString()
		c.lastRequest = string(fingerprint)
	}
	key := c.idemKey
	c.inFlight = true
	c.mu.Unlock()

	order, err := creator.CreateOrder(ctx, req, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if order == nil || order.Token == "" {
		return nil, errors.New("create order: response has no tracking token")
	}

	cart.Clear()
	period := c.form.Period
	c.form = NewCheckoutForm()
	c.form.Period = period
	c.resolver.Reset()
	c.idemKey = ""
	c.lastRequest = ""
	c.confirmation = &Confirmation{
		OrderID:     order.ID,
		Token:       order.Token,
		TrackingURL: TrackingPath(order.Token),
	}
	return c.confirmation, nil
}
