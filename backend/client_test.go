package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bomsabor-web/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", 5*time.Second)
}

func TestLoginStoresNothingAndReturnsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin@bomsabor.com", body["email"])
		w.Write([]byte(`{"token":"tok-1","user":{"id":3,"name":"Ana","email":"admin@bomsabor.com"}}`))
	})

	res, err := c.Login(context.Background(), "admin@bomsabor.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, models.FlexID("3"), res.User.ID)
}

func TestErrorMessageFromBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"O campo telefone é obrigatório."}`))
	})

	_, err := c.CreateOrder(context.Background(), CreateOrderRequest{}, "")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "O campo telefone é obrigatório.", UserMessage(err))
}

func TestErrorWithoutJSONFallsBackToGenericMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	err := c.ResetOrders(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, GenericErrorMessage, UserMessage(err))
	assert.Equal(t, GenericErrorMessage, UserMessage(errors.New("dial tcp: refused")))
}

func TestUnauthorizedIsDetectable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	})
	_, err := c.ListOrders(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBearerAndIdempotencyHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/pedidos":
			if r.Method == http.MethodPost {
				assert.Empty(t, r.Header.Get("Authorization"))
				assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
				w.Write([]byte(`{"id":10,"uuid":"abc-123","status":"pendente","total":"27.50"}`))
				return
			}
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Write([]byte(`{"data":[{"id":10,"uuid":"abc-123","status":"pendente"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	order, err := c.CreateOrder(context.Background(), CreateOrderRequest{Status: models.OrderStatusPending}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", order.Token)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("27.50")))

	orders, err := c.ListOrders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(10), orders[0].ID)
}

func TestUpdateOrderStatusBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/pedidos/7", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"preparando"}`, string(b))
		w.Write([]byte(`{"message":"ok"}`))
	})

	o, err := c.UpdateOrderStatus(context.Background(), "tok", 7, models.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestListMenuItemsBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Feijoada Completa","price":"35.90","period":"lunch","category":"Prato Principal"}]`))
	})
	items, err := c.ListMenuItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.PeriodLunch, items[0].Period)
}

func TestAuthorizeChannelUsesAbsoluteEndpoint(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		assert.Equal(t, "/broadcasting/auth", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123.456", body["socket_id"])
		assert.Equal(t, "private-admin-orders", body["channel_name"])
		w.Write([]byte(`{"auth":"key:sig"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", time.Second)
	sig, err := c.AuthorizeChannel(context.Background(), srv.URL+"/broadcasting/auth", "tok", "123.456", "private-admin-orders")
	require.NoError(t, err)
	assert.Equal(t, "key:sig", sig)
	assert.True(t, hit)
}
