package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"bomsabor-web/models"

	"github.com/shopspring/decimal"
)

// dataList decodes either a bare JSON array or a Laravel resource collection ({"data": [...]}).
type dataList[T any] struct {
	Items []T
}

func (d *dataList[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Data []T `json:"data"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		d.Items = wrapped.Data
		return nil
	}
	return json.Unmarshal(b, &d.Items)
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var res LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login: empty token in response")
	}
	return &res, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, WithToken(token))
}

func (c *Client) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var res dataList[models.MenuItem]
	if err := c.do(ctx, http.MethodGet, "/menu-items", nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) CreateMenuItem(ctx context.Context, token string, in models.MenuItemInput) (*models.MenuItem, error) {
	var res models.MenuItem
	if err := c.do(ctx, http.MethodPost, "/menu-items", in, &res, WithToken(token)); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateMenuItem(ctx context.Context, token, id string, in models.MenuItemInput) (*models.MenuItem, error) {
	var res models.MenuItem
	if err := c.do(ctx, http.MethodPut, "/menu-items/"+url.PathEscape(id), in, &res, WithToken(token)); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteMenuItem(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/menu-items/"+url.PathEscape(id), nil, nil, WithToken(token))
}

func (c *Client) ListDeliveryZones(ctx context.Context) ([]models.DeliveryZone, error) {
	var res dataList[models.DeliveryZone]
	if err := c.do(ctx, http.MethodGet, "/delivery-fees", nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) CreateDeliveryZone(ctx context.Context, token string, in models.DeliveryZoneInput) (*models.DeliveryZone, error) {
	var res models.DeliveryZone
	if err := c.do(ctx, http.MethodPost, "/delivery-fees", in, &res, WithToken(token)); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateDeliveryZone(ctx context.Context, token string, id int64, in models.DeliveryZoneInput) (*models.DeliveryZone, error) {
	var res models.DeliveryZone
	endpoint := "/delivery-fees/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPut, endpoint, in, &res, WithToken(token)); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateOrderRequest is the public order creation body.
type CreateOrderRequest struct {
	Customer      string               `json:"cliente"`
	Phone         string               `json:"telefone"`
	Address       string               `json:"endereco"`
	PaymentMethod models.PaymentMethod `json:"meio_pagamento"`
	Fulfillment   models.Fulfillment   `json:"tipo_entrega"`
	Notes         string               `json:"observacoes"`
	Period        models.Period        `json:"period"`
	Lines         []models.OrderLine   `json:"itens"`
	Total         string               `json:"total"`
	Status        models.OrderStatus   `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (*models.Order, error) {
	var res models.Order
	var opts []Option
	if idempotencyKey != "" {
		opts = append(opts, WithIdempotencyKey(idempotencyKey))
	}
	if err := c.do(ctx, http.MethodPost, "/pedidos", req, &res, opts...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	var res dataList[models.Order]
	if err := c.do(ctx, http.MethodGet, "/pedidos", nil, &res, WithToken(token)); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// UpdateOrderStatus returns the updated order when the API echoes it, nil otherwise.
func (c *Client) UpdateOrderStatus(ctx context.Context, token string, id int64, status models.OrderStatus) (*models.Order, error) {
	var res models.Order
	endpoint := "/pedidos/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPatch, endpoint, map[string]models.OrderStatus{"status": status}, &res, WithToken(token)); err != nil {
		return nil, err
	}
	if res.ID == 0 {
		return nil, nil
	}
	return &res, nil
}

func (c *Client) ResetOrders(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/pedidos/reset", nil, nil, WithToken(token))
}

func (c *Client) OrderByToken(ctx context.Context, token string) (*models.Order, error) {
	var res models.Order
	if err := c.do(ctx, http.MethodGet, "/pedidos/status/"+url.PathEscape(token), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FormatTotal renders an amount the way the order API expects it ("27.50").
func FormatTotal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// AuthorizeChannel asks the broadcasting auth endpoint to sign a private channel
// subscription for socketID. endpoint is absolute since Laravel serves it outside /api.
func (c *Client) AuthorizeChannel(ctx context.Context, endpoint, token, socketID, channel string) (string, error) {
	var res struct {
		Auth string `json:"auth"`
	}
	body := map[string]string{"socket_id": socketID, "channel_name": channel}
	if err := c.doURL(ctx, http.MethodPost, endpoint, body, &res, WithToken(token)); err != nil {
		return "", err
	}
	if res.Auth == "" {
		return "", fmt.Errorf("authorize %s: empty signature", channel)
	}
	return res.Auth, nil
}
