package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"bomsabor-web/backend"
	"bomsabor-web/config"
	"bomsabor-web/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const menuJSON = `{"data":[
	{"id":1,"name":"Pizza Calabresa","category":"Pizzas","price":"45.00","price_small":"30.00","period":"dinner"},
	{"id":2,"name":"Feijoada","category":"Pratos","price":"32.50","price_small":null,"period":"lunch"}
]}`

const zonesJSON = `[
	{"id":1,"city":"Niterói","neighborhood":"Icaraí","fee":"6.00"},
	{"id":2,"city":"Niterói","neighborhood":"Centro","fee":"5.00"}
]`

const ordersJSON = `[{"id":7,"uuid":"tok-abcdef123456","cliente":"Maria","telefone":"2199","endereco":"Retirada no local",
	"meio_pagamento":"pix","tipo_entrega":"retirada","observacoes":null,"period":"lunch",
	"itens":[{"id":2,"name":"Feijoada","quantity":1,"price":"32.50"}],"total":"32.50","status":"pendente",
	"created_at":"2026-10-15T12:30:00Z","updated_at":"2026-10-15T12:30:00Z"}]`

// fakeAPI records what the server sent and answers like the restaurant API.
type fakeAPI struct {
	mu          sync.Mutex
	orders      []map[string]any
	idemKeys    []string
	statusCalls []string
	authHeaders []string
	resets      int
	channelAuth []string

	orderStatus string
	statusCode  int
	ordersCode  int
	loginStatus int
}

func (f *fakeAPI) ordersBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resets > 0 {
		return "[]"
	}
	if f.orderStatus == "" {
		return ordersJSON
	}
	return strings.Replace(ordersJSON, `"status":"pendente"`, `"status":"`+f.orderStatus+`"`, 1)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/menu-items", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, menuJSON)
	})
	mux.HandleFunc("GET /api/delivery-fees", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, zonesJSON)
	})
	mux.HandleFunc("POST /api/pedidos", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.orders = append(f.orders, body)
		f.idemKeys = append(f.idemKeys, r.Header.Get("Idempotency-Key"))
		f.mu.Unlock()
		io.WriteString(w, `{"id":42,"uuid":"0b7c8d9e-0000-4000-8000-00000a1b2c3d","status":"pendente"}`)
	})
	mux.HandleFunc("GET /api/pedidos", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		code := f.ordersCode
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			io.WriteString(w, `{"message":"Unauthenticated."}`)
			return
		}
		io.WriteString(w, f.ordersBody())
	})
	mux.HandleFunc("PATCH /api/pedidos/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.statusCalls = append(f.statusCalls, r.PathValue("id")+":"+body["status"]+":"+r.Header.Get("Authorization"))
		code := f.statusCode
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			io.WriteString(w, `{"message":"Transição inválida"}`)
			return
		}
		f.mu.Lock()
		f.orderStatus = body["status"]
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/pedidos/reset", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.resets++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/broadcasting/auth", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.channelAuth = append(f.channelAuth, body["channel_name"]+":"+r.Header.Get("Authorization"))
		f.mu.Unlock()
		io.WriteString(w, `{"auth":"key:signature"}`)
	})
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		code := f.loginStatus
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			io.WriteString(w, `{"message":"Credenciais inválidas"}`)
			return
		}
		io.WriteString(w, `{"token":"tok-admin","user":{"id":1,"name":"Ana","email":"ana@bomsabor.com"}}`)
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/pedidos/status/{token}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("token") != "tok-abcdef123456" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"Pedido não encontrado"}`)
			return
		}
		io.WriteString(w, strings.TrimSuffix(strings.TrimPrefix(ordersJSON, "["), "]"))
	})
	return mux
}

type harness struct {
	api    *fakeAPI
	apiURL string
	server *Server
	srv    *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T, rt RealtimeFactory) *harness {
	t.Helper()
	h := newUnstartedHarness(t, rt, config.HTTPConfig{})
	h.srv.Start()
	return h
}

// newUnstartedHarness lets a test adjust the http.Server before it listens.
func newUnstartedHarness(t *testing.T, rt RealtimeFactory, cfg config.HTTPConfig) *harness {
	t.Helper()
	api := &fakeAPI{}
	apiSrv := httptest.NewServer(api.handler())
	t.Cleanup(apiSrv.Close)

	sessions := session.NewManager(session.NewMemoryStore(), "bs_test", false, time.Hour, zerolog.Nop())
	s, err := NewServer(backend.New(apiSrv.URL+"/api", 5*time.Second), sessions, rt, cfg, zerolog.Nop())
	require.NoError(t, err)
	srv := httptest.NewUnstartedServer(s.Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		api:    api,
		apiURL: apiSrv.URL,
		server: s,
		srv:    srv,
		client: &http.Client{Jar: jar, Timeout: 5 * time.Second},
	}
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	status, body := h.post(t, "/login", url.Values{"email": {"ana@bomsabor.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Administração")
}

func TestHomeShowsMenuOfSelectedPeriod(t *testing.T) {
	h := newHarness(t, nil)

	status, body := h.get(t, "/?period=dinner")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Pizza Calabresa")
	assert.NotContains(t, body, "Feijoada")

	_, body = h.get(t, "/?period=lunch")
	assert.Contains(t, body, "Feijoada")
	assert.NotContains(t, body, "Pizza Calabresa")
}

func TestCartAddPricesFromMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.get(t, "/?period=dinner")

	_, body := h.post(t, "/cart/add", url.Values{"item_id": {"1"}, "size": {"small"}, "price": {"0.01"}})
	assert.Contains(t, body, "Pizza Calabresa (Pequena)")
	assert.Contains(t, body, "Subtotal: R$ 30.00")

	_, body = h.post(t, "/cart/adjust", url.Values{"line_id": {"1-30.00"}, "delta": {"1"}})
	assert.Contains(t, body, "Subtotal: R$ 60.00")

	_, body = h.post(t, "/cart/remove", url.Values{"line_id": {"1-30.00"}})
	assert.Contains(t, body, "Seu carrinho está vazio.")
}

func TestCartAddUnknownItem(t *testing.T) {
	h := newHarness(t, nil)
	_, body := h.post(t, "/cart/add", url.Values{"item_id": {"99"}})
	assert.Contains(t, body, "Item indisponível")
}

func TestCheckoutDeliveryOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.get(t, "/?period=lunch")
	h.post(t, "/cart/add", url.Values{"item_id": {"2"}})

	form := url.Values{
		"customer":       {"Maria"},
		"phone":          {"21 99999-0000"},
		"fulfillment":    {"entrega"},
		"payment_method": {"pix"},
		"period":         {"lunch"},
		"street":         {"Rua A, 10"},
		"city":           {"Niterói"},
	}
	_, body := h.post(t, "/checkout/city", form)
	assert.Contains(t, body, "Icaraí (R$ 6.00)")

	form.Set("neighborhood", "Icaraí")
	_, body = h.post(t, "/checkout", form)
	assert.Contains(t, body, "Pedido enviado!")
	assert.Contains(t, body, "<strong>1b2c3d</strong>")
	assert.Contains(t, body, "/pedido/0b7c8d9e-0000-4000-8000-00000a1b2c3d")

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	require.Len(t, h.api.orders, 1)
	order := h.api.orders[0]
	assert.Equal(t, "Niterói - Icaraí (R$ 6.00), Rua A, 10", order["endereco"])
	assert.Equal(t, "38.50", order["total"])
	assert.Equal(t, "pendente", order["status"])
	assert.NotEmpty(t, h.api.idemKeys[0])
}

func TestCheckoutShowsFieldErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.get(t, "/?period=lunch")
	h.post(t, "/cart/add", url.Values{"item_id": {"2"}})

	_, body := h.post(t, "/checkout", url.Values{"fulfillment": {"retirada"}, "payment_method": {"pix"}})
	assert.Contains(t, body, "Verifique os dados do pedido")
	assert.Contains(t, body, "Informe seu nome")
	assert.Contains(t, body, "Informe seu telefone")

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Empty(t, h.api.orders)
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := newHarness(t, nil)
	_, body := h.post(t, "/checkout", url.Values{"customer": {"Maria"}})
	assert.Contains(t, body, "Carrinho vazio")
}

func TestAdminPagesRequireLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	for _, path := range []string{"/admin", "/orders"} {
		resp, err := h.client.Get(h.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
}

func TestOrderStatusUpdate(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)

	_, body := h.get(t, "/orders")
	assert.Contains(t, body, "#7 · Maria")
	assert.Contains(t, body, "15/10")

	_, body = h.post(t, "/orders/7/status", url.Values{"status": {"preparando"}})
	assert.Contains(t, body, "Status atualizado")
	assert.Contains(t, body, `<span class="badge status-blue">Preparando</span>`)

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Equal(t, []string{"7:preparando:Bearer tok-admin"}, h.api.statusCalls)
}

func TestOrdersResetNeedsConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)

	_, body := h.post(t, "/orders/reset", url.Values{})
	assert.Contains(t, body, "Confirmação necessária")
	assert.Contains(t, body, "#7 · Maria")

	_, body = h.post(t, "/orders/reset", url.Values{"confirm": {"yes"}})
	assert.Contains(t, body, "Pedidos zerados")
	assert.NotContains(t, body, "#7 · Maria")

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Equal(t, 1, h.api.resets)
}

func TestOrderStatusRejectedRevertsBadge(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)
	h.get(t, "/orders")
	h.api.mu.Lock()
	h.api.statusCode = http.StatusUnprocessableEntity
	h.api.mu.Unlock()

	_, body := h.post(t, "/orders/7/status", url.Values{"status": {"entregue"}})
	assert.Contains(t, body, "Transição inválida")
	assert.Contains(t, body, `<span class="badge status-yellow">Pendente</span>`)
}

func TestExpiredCredentialEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)
	h.api.mu.Lock()
	h.api.ordersCode = http.StatusUnauthorized
	h.api.mu.Unlock()

	_, body := h.get(t, "/orders")
	assert.Contains(t, body, "Sessão expirada")
	assert.Contains(t, body, `action="/login"`)

	h.api.mu.Lock()
	h.api.ordersCode = 0
	h.api.mu.Unlock()
	_, body = h.get(t, "/orders")
	assert.Contains(t, body, `action="/login"`)
}

func TestLoginFailureIsThrottled(t *testing.T) {
	h := newHarness(t, nil)
	h.api.loginStatus = http.StatusUnauthorized

	status, body := h.post(t, "/login", url.Values{"email": {"ana@bomsabor.com"}, "password": {"x"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Credenciais inválidas")

	status, body = h.post(t, "/login", url.Values{"email": {"ana@bomsabor.com"}, "password": {"x"}})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "Muitas tentativas")
}

func (h *harness) postFrom(t *testing.T, path, forwardedFor string, form url.Values) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginThrottleIgnoresForwardedForByDefault(t *testing.T) {
	h := newHarness(t, nil)
	h.api.loginStatus = http.StatusUnauthorized
	form := url.Values{"email": {"ana@bomsabor.com"}, "password": {"x"}}

	var codes []int
	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		codes = append(codes, h.postFrom(t, "/login", ip, form))
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestLoginThrottleBehindTrustedProxy(t *testing.T) {
	h := newUnstartedHarness(t, nil, config.HTTPConfig{TrustProxy: true})
	h.srv.Start()
	h.api.loginStatus = http.StatusUnauthorized
	form := url.Values{"email": {"ana@bomsabor.com"}, "password": {"x"}}

	assert.Equal(t, http.StatusUnauthorized, h.postFrom(t, "/login", "203.0.113.1", form))
	assert.Equal(t, http.StatusTooManyRequests, h.postFrom(t, "/login", "203.0.113.1", form))
	assert.Equal(t, http.StatusUnauthorized, h.postFrom(t, "/login", "203.0.113.2", form))
}

func TestLoginKeepsCart(t *testing.T) {
	h := newHarness(t, nil)
	h.get(t, "/?period=lunch")
	h.post(t, "/cart/add", url.Values{"item_id": {"2"}})
	h.login(t)

	_, body := h.get(t, "/?period=lunch")
	assert.Contains(t, body, "Subtotal: R$ 32.50")
	assert.Contains(t, body, `href="/orders"`)
}

func TestTracking(t *testing.T) {
	h := newHarness(t, nil)

	status, body := h.get(t, "/pedido/tok-abcdef123456")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Olá, Maria!")
	assert.Contains(t, body, `id="tracking-status"`)

	status, body = h.get(t, "/pedido/nope")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Pedido não encontrado")
}

func TestEventStreamsOffWithoutRealtime(t *testing.T) {
	h := newHarness(t, nil)
	status, _ := h.get(t, "/menu/events")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestUnknownPage(t *testing.T) {
	h := newHarness(t, nil)
	status, body := h.get(t, "/nada")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Página não encontrada")
}
