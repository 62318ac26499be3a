package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"bomsabor-web/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStatuses is the fixed set an admin can choose from, in display order.
var OrderStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusPreparing,
	models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered,
	models.OrderStatusCancelled,
}

func ValidStatus(s models.OrderStatus) bool {
	for _, st := range OrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func StatusLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPending:
		return "Pendente"
	case models.OrderStatusPreparing:
		return "Preparando"
	case models.OrderStatusOutForDelivery:
		return "Saiu para entrega"
	case models.OrderStatusDelivered:
		return "Entregue"
	case models.OrderStatusCancelled:
		return "Cancelado"
	default:
		return string(s)
	}
}

// StatusColor is the badge class of a status.
func StatusColor(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPending:
		return "status-yellow"
	case models.OrderStatusPreparing:
		return "status-blue"
	case models.OrderStatusOutForDelivery:
		return "status-green"
	case models.OrderStatusCancelled:
		return "status-red"
	default:
		return "status-gray"
	}
}

// ValidStatusTransition is the forward flow offered by quick actions. The order
// list select itself allows any status of the set.
func ValidStatusTransition(from, to models.OrderStatus) bool {
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusPreparing || to == models.OrderStatusCancelled
	case models.OrderStatusPreparing:
		return to == models.OrderStatusOutForDelivery || to == models.OrderStatusDelivered || to == models.OrderStatusCancelled
	case models.OrderStatusOutForDelivery:
		return to == models.OrderStatusDelivered || to == models.OrderStatusCancelled
	}
	return false
}

// NextStatuses lists the quick actions for an order; a pickup order skips the
// out-for-delivery step.
func NextStatuses(o *models.Order) []models.OrderStatus {
	switch o.Status {
	case models.OrderStatusPending:
		return []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusCancelled}
	case models.OrderStatusPreparing:
		if o.Fulfillment == models.FulfillmentPickup {
			return []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled}
		}
		return []models.OrderStatus{models.OrderStatusOutForDelivery, models.OrderStatusCancelled}
	case models.OrderStatusOutForDelivery:
		return []models.OrderStatus{models.OrderStatusDelivered}
	}
	return nil
}

// StatusChange is an optimistic status update waiting for the API's answer.
type StatusChange struct {
	OrderID     int64
	Prev        models.OrderStatus
	PrevUpdated time.Time
	Next        models.OrderStatus
}

// OrderBoard is the admin's view of the order list, newest first. Pushes and
// local changes merge by updated_at: a push older than what is shown is dropped,
// and a push without a timestamp never overrides an unconfirmed local change.
type OrderBoard struct {
	mu      sync.Mutex
	orders  []models.Order
	pending map[int64]StatusChange
}

func NewOrderBoard() *OrderBoard {
	return &OrderBoard{pending: map[int64]StatusChange{}}
}

func (b *OrderBoard) Replace(orders []models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append([]models.Order(nil), orders...)
	b.sortLocked()
	b.pending = map[int64]StatusChange{}
}

// Upsert adds an order from an OrderCreated push, or refreshes it when the
// pushed copy is not older than the one shown.
func (b *OrderBoard) Upsert(o models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(o.ID); i >= 0 {
		if !o.UpdatedAt.IsZero() && o.UpdatedAt.Before(b.orders[i].UpdatedAt) {
			return
		}
		b.orders[i] = o
		delete(b.pending, o.ID)
		return
	}
	b.orders = append(b.orders, o)
	b.sortLocked()
}

func (b *OrderBoard) BeginStatus(id int64, status models.OrderStatus) (StatusChange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return StatusChange{}, ErrOrderNotFound
	}
	ch := StatusChange{OrderID: id, Prev: b.orders[i].Status, PrevUpdated: b.orders[i].UpdatedAt, Next: status}
	if p, ok := b.pending[id]; ok {
		ch.Prev, ch.PrevUpdated = p.Prev, p.PrevUpdated
	}
	b.orders[i].Status = status
	b.pending[id] = ch
	return ch, nil
}

// ConfirmStatus settles a change the API accepted. updated is the API's echo of
// the order and may be nil.
func (b *OrderBoard) ConfirmStatus(ch StatusChange, updated *models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pending[ch.OrderID]; ok && p.Next == ch.Next {
		delete(b.pending, ch.OrderID)
	}
	i := b.indexLocked(ch.OrderID)
	if i < 0 || updated == nil {
		return
	}
	if updated.UpdatedAt.IsZero() || !updated.UpdatedAt.Before(b.orders[i].UpdatedAt) {
		b.orders[i].Status = updated.Status
		b.orders[i].UpdatedAt = updated.UpdatedAt
	}
}

// RevertStatus undoes a change the API rejected, unless something newer has
// already replaced it.
func (b *OrderBoard) RevertStatus(ch StatusChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[ch.OrderID]
	if !ok || p.Next != ch.Next {
		return
	}
	delete(b.pending, ch.OrderID)
	if i := b.indexLocked(ch.OrderID); i >= 0 && b.orders[i].Status == ch.Next {
		b.orders[i].Status = p.Prev
		b.orders[i].UpdatedAt = p.PrevUpdated
	}
}

// ApplyPush merges an OrderStatusUpdated event and reports whether it changed
// the board.
func (b *OrderBoard) ApplyPush(u models.StatusUpdate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(u.ID)
	if i < 0 || !ValidStatus(u.Status) {
		return false
	}
	if u.UpdatedAt.IsZero() {
		if _, pending := b.pending[u.ID]; pending {
			return false
		}
	} else {
		if u.UpdatedAt.Before(b.orders[i].UpdatedAt) {
			return false
		}
		b.orders[i].UpdatedAt = u.UpdatedAt
		delete(b.pending, u.ID)
	}
	b.orders[i].Status = u.Status
	return true
}

func (b *OrderBoard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = nil
	b.pending = map[int64]StatusChange{}
}

func (b *OrderBoard) Orders() []models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

func (b *OrderBoard) Get(id int64) (models.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(id); i >= 0 {
		return b.orders[i], true
	}
	return models.Order{}, false
}

func (b *OrderBoard) indexLocked(id int64) int {
	for i := range b.orders {
		if b.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *OrderBoard) sortLocked() {
	sort.SliceStable(b.orders, func(i, j int) bool { return b.orders[i].ID > b.orders[j].ID })
}
