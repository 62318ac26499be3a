// Package bot posts new orders to the kitchen's Telegram chat as cards with
// status buttons, and keeps each card in step with the order.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bomsabor-web/backend"
	"bomsabor-web/config"
	"bomsabor-web/models"
	"bomsabor-web/realtime"
	"bomsabor-web/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const reconnectDelay = 5 * time.Second

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// OrdersAPI is the part of the backend client the notifier uses.
type OrdersAPI interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResponse, error)
	ListOrders(ctx context.Context, token string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, token string, id int64, status models.OrderStatus) (*models.Order, error)
}

type Notifier struct {
	tg              Sender
	api             OrdersAPI
	pointers        CardPointers
	sent            *services.NotifyLog
	chatID          int64
	email           string
	password        string
	trackingBaseURL string
	log             zerolog.Logger

	mu     sync.Mutex
	token  string
	orders map[int64]models.Order

	orderLocks sync.Map // map[orderID]*sync.Mutex
}

func NewNotifier(tg Sender, api OrdersAPI, pointers CardPointers, cfg config.TelegramConfig, trackingBaseURL string, log zerolog.Logger) *Notifier {
	return &Notifier{
		tg:              tg,
		api:             api,
		pointers:        pointers,
		sent:            services.NewNotifyLog(),
		chatID:          cfg.AdminChatID,
		email:           cfg.AdminEmail,
		password:        cfg.AdminPassword,
		trackingBaseURL: trackingBaseURL,
		log:             log.With().Str("component", "bot").Logger(),
		orders:          map[int64]models.Order{},
	}
}

// Run follows the admin order feed and answers status buttons until ctx ends.
// A dropped feed is reopened with a fresh connection.
func (n *Notifier) Run(ctx context.Context, updates tgbotapi.UpdatesChannel, newRealtime func() *realtime.Client) error {
	go n.serveCallbacks(ctx, updates)
	for {
		err := n.listen(ctx, newRealtime())
		if ctx.Err() != nil {
			return nil
		}
		n.log.Warn().Err(err).Msg("order feed dropped, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (n *Notifier) listen(ctx context.Context, rt *realtime.Client) error {
	defer rt.Close()

	token, err := n.currentToken(ctx)
	if err != nil {
		return err
	}
	rt.SetCredential(token)

	events := make(chan realtime.Event, 64)
	if _, err := rt.Subscribe(ctx, realtime.ChannelAdminOrders, func(ev realtime.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}); err != nil {
		return err
	}
	if err := rt.Connect(ctx); err != nil {
		return err
	}
	n.log.Info().Msg("following admin orders")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.Done():
			return errors.New("realtime connection closed")
		case ev := <-events:
			n.HandleEvent(ctx, ev)
		}
	}
}

func (n *Notifier) serveCallbacks(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery == nil {
				continue
			}
			if strings.HasPrefix(update.CallbackQuery.Data, services.OrderStatusCallbackPrefix) {
				n.HandleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (n *Notifier) login(ctx context.Context) (string, error) {
	res, err := n.api.Login(ctx, n.email, n.password)
	if err != nil {
		return "", fmt.Errorf("backend login: %w", err)
	}
	n.mu.Lock()
	n.token = res.Token
	n.mu.Unlock()
	return res.Token, nil
}

func (n *Notifier) currentToken(ctx context.Context) (string, error) {
	n.mu.Lock()
	token := n.token
	n.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return n.login(ctx)
}

// withToken runs call with the backend credential, logging in again once if
// the API has expired it.
func (n *Notifier) withToken(ctx context.Context, call func(token string) error) error {
	token, err := n.currentToken(ctx)
	if err != nil {
		return err
	}
	err = call(token)
	if !errors.Is(err, backend.ErrUnauthorized) {
		return err
	}
	if token, err = n.login(ctx); err != nil {
		return err
	}
	return call(token)
}

// HandleEvent reacts to one push on the admin order channel.
func (n *Notifier) HandleEvent(ctx context.Context, ev realtime.Event) {
	switch ev.Name {
	case realtime.EventOrderCreated:
		var o models.Order
		if err := ev.Decode(&o); err != nil || o.ID == 0 {
			n.log.Warn().Err(err).Msg("decode created order")
			return
		}
		n.remember(o)
		if n.sent.ShouldNotify(o.ID, string(o.Status)) {
			n.refreshCard(ctx, o)
		}
	case realtime.EventOrderStatusUpdated:
		var u models.StatusUpdate
		if err := ev.Decode(&u); err != nil || u.ID == 0 {
			n.log.Warn().Err(err).Msg("decode status update")
			return
		}
		o, ok := n.lookup(ctx, u.ID)
		if !ok {
			return
		}
		if !u.UpdatedAt.IsZero() && u.UpdatedAt.Before(o.UpdatedAt) {
			return
		}
		o.Status = u.Status
		if !u.UpdatedAt.IsZero() {
			o.UpdatedAt = u.UpdatedAt
		}
		n.remember(o)
		if n.sent.ShouldNotify(o.ID, string(o.Status)) {
			n.refreshCard(ctx, o)
		}
	}
}

func (n *Notifier) remember(o models.Order) {
	n.mu.Lock()
	n.orders[o.ID] = o
	n.mu.Unlock()
}

// lookup returns the last known copy of an order, asking the API for the
// order list when the order was created before the notifier started.
func (n *Notifier) lookup(ctx context.Context, id int64) (models.Order, bool) {
	n.mu.Lock()
	o, ok := n.orders[id]
	n.mu.Unlock()
	if ok {
		return o, true
	}
	var orders []models.Order
	err := n.withToken(ctx, func(token string) error {
		var err error
		orders, err = n.api.ListOrders(ctx, token)
		return err
	})
	if err != nil {
		n.log.Warn().Err(err).Int64("order_id", id).Msg("load orders")
		return models.Order{}, false
	}
	for _, o := range orders {
		n.remember(o)
		if o.ID == id {
			ok = true
		}
	}
	n.mu.Lock()
	o = n.orders[id]
	n.mu.Unlock()
	return o, ok
}

// HandleCallback applies a status button pressed in the kitchen chat.
func (n *Notifier) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	id, status, ok := services.ParseStatusCallback(cq.Data)
	if !ok {
		n.answer(cq.ID, "Ação inválida.")
		return
	}
	if cq.Message == nil || cq.Message.Chat == nil || cq.Message.Chat.ID != n.chatID {
		n.answer(cq.ID, "Não autorizado.")
		return
	}

	o, known := n.lookup(ctx, id)
	if known && o.Status != status && !services.ValidStatusTransition(o.Status, status) {
		n.answer(cq.ID, "Pedido já está "+services.StatusLabel(o.Status)+".")
		return
	}

	var updated *models.Order
	err := n.withToken(ctx, func(token string) error {
		var err error
		updated, err = n.api.UpdateOrderStatus(ctx, token, id, status)
		return err
	})
	if err != nil {
		n.log.Warn().Err(err).Int64("order_id", id).Str("status", string(status)).Msg("order status update failed")
		n.answer(cq.ID, backend.UserMessage(err))
		return
	}
	n.answer(cq.ID, "✅ Status atualizado.")

	if updated != nil {
		o, known = *updated, true
	}
	if !known {
		return
	}
	o.Status = status
	n.remember(o)
	n.sent.Record(id, string(status))
	n.refreshCard(ctx, o)
}

func (n *Notifier) answer(callbackID, text string) {
	if _, err := n.tg.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		n.log.Warn().Err(err).Msg("answer callback")
	}
}

// lockOrder serializes card edits of one order.
func (n *Notifier) lockOrder(orderID int64) func() {
	v, _ := n.orderLocks.LoadOrStore(orderID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// cardMarkup converts OrderCardContent.Buttons to Telegram inline keyboard (URL vs callback).
func cardMarkup(c services.OrderCardContent) *tgbotapi.InlineKeyboardMarkup {
	if len(c.Buttons) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range c.Buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// refreshCard edits the order's card if one was posted, otherwise posts it.
// A card deleted from the chat is posted again; an unchanged one is left alone.
func (n *Notifier) refreshCard(ctx context.Context, o models.Order) {
	unlock := n.lockOrder(o.ID)
	defer unlock()

	content := services.BuildAdminCard(&o, n.trackingBaseURL)
	ptr, ok, err := n.pointers.Get(ctx, o.ID, n.chatID)
	if err != nil {
		n.log.Warn().Err(err).Int64("order_id", o.ID).Msg("get card pointer")
	}
	if ok {
		edit := tgbotapi.NewEditMessageText(ptr.ChatID, ptr.MessageID, content.Text)
		if kb := cardMarkup(content); kb != nil {
			edit.ReplyMarkup = kb
		} else {
			edit.ReplyMarkup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
		}
		_, err := n.tg.Send(edit)
		switch {
		case err == nil:
			n.savePointer(ctx, o, ptr.MessageID)
			return
		case strings.Contains(err.Error(), "not modified"):
			return
		case !strings.Contains(err.Error(), "not found"):
			n.log.Warn().Err(err).Int64("order_id", o.ID).Msg("edit order card")
			return
		}
	}

	msg := tgbotapi.NewMessage(n.chatID, content.Text)
	if kb := cardMarkup(content); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := n.tg.Send(msg)
	if err != nil {
		n.log.Warn().Err(err).Int64("order_id", o.ID).Msg("send order card")
		return
	}
	n.savePointer(ctx, o, sent.MessageID)
}

func (n *Notifier) savePointer(ctx context.Context, o models.Order, messageID int) {
	p := CardPointer{ChatID: n.chatID, MessageID: messageID, Status: string(o.Status)}
	if err := n.pointers.Upsert(ctx, o.ID, p); err != nil {
		n.log.Warn().Err(err).Int64("order_id", o.ID).Msg("save card pointer")
	}
}
