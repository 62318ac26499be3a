package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pendente"
	OrderStatusPreparing      OrderStatus = "preparando"
	OrderStatusOutForDelivery OrderStatus = "Saiu para entrega"
	OrderStatusDelivered      OrderStatus = "entregue"
	OrderStatusCancelled      OrderStatus = "cancelado"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "dinheiro"
	PaymentDebit  PaymentMethod = "cartao_debito"
	PaymentCredit PaymentMethod = "cartao_credito"
	PaymentPix    PaymentMethod = "pix"
)

type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "entrega"
	FulfillmentPickup   Fulfillment = "retirada"
)

// PickupAddress replaces the address on pickup orders.
const PickupAddress = "Retirada no local"

type OrderLine struct {
	ID       FlexID          `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is the backend's view of a submitted order. Lines and Total never change
// after creation; Status moves through the admin order list.
type Order struct {
	ID            int64           `json:"id"`
	Token         string          `json:"uuid"`
	Customer      string          `json:"cliente"`
	Phone         string          `json:"telefone"`
	Address       string          `json:"endereco"`
	PaymentMethod PaymentMethod   `json:"meio_pagamento"`
	Fulfillment   Fulfillment     `json:"tipo_entrega"`
	Notes         *string         `json:"observacoes"`
	Period        Period          `json:"period"`
	Lines         []OrderLine     `json:"itens"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StatusUpdate is the payload of an OrderStatusUpdated broadcast.
type StatusUpdate struct {
	ID        int64       `json:"id"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentDebit, PaymentCredit, PaymentPix:
		return true
	}
	return false
}

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCash:
		return "Dinheiro"
	case PaymentDebit:
		return "Cartão de débito"
	case PaymentCredit:
		return "Cartão de crédito"
	case PaymentPix:
		return "Pix"
	default:
		return string(p)
	}
}

// PaymentMethods is the order the checkout form lists them in.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentDebit, PaymentCredit, PaymentPix}

func (f Fulfillment) Valid() bool {
	return f == FulfillmentDelivery || f == FulfillmentPickup
}

func (f Fulfillment) Label() string {
	if f == FulfillmentPickup {
		return "Retirada"
	}
	return "Entrega"
}
