package services

import (
	"fmt"
	"strconv"
	"strings"

	"bomsabor-web/models"
)

// OrderStatusCallbackPrefix starts the callback data of a status button:
// order_status:{id}:{status}.
const OrderStatusCallbackPrefix = "order_status:"

// OrderCardButton is one inline button (text + callback_data or url).
type OrderCardButton struct {
	Text         string
	CallbackData string
	URL          string // if set, use as URL button instead of callback
}

// OrderCardContent is the text and optional inline keyboard for an order card.
type OrderCardContent struct {
	Text    string
	Buttons [][]OrderCardButton
}

func statusButtonText(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPreparing:
		return "👨‍🍳 Preparar"
	case models.OrderStatusOutForDelivery:
		return "🛵 Saiu para entrega"
	case models.OrderStatusDelivered:
		return "✅ Entregue"
	case models.OrderStatusCancelled:
		return "❌ Cancelar"
	default:
		return StatusLabel(s)
	}
}

// StatusCallbackData encodes a status button.
func StatusCallbackData(orderID int64, s models.OrderStatus) string {
	return OrderStatusCallbackPrefix + strconv.FormatInt(orderID, 10) + ":" + string(s)
}

// ParseStatusCallback decodes order_status:{id}:{status}. The status may itself
// contain spaces but never a colon.
func ParseStatusCallback(data string) (int64, models.OrderStatus, bool) {
	rest, ok := strings.CutPrefix(data, OrderStatusCallbackPrefix)
	if !ok {
		return 0, "", false
	}
	idStr, status, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || !ValidStatus(models.OrderStatus(status)) {
		return 0, "", false
	}
	return id, models.OrderStatus(status), true
}

// BuildAdminCard returns full card text and inline keyboard for the kitchen chat.
// Buttons follow NextStatuses; finished orders get none.
func BuildAdminCard(o *models.Order, trackingBaseURL string) OrderCardContent {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 Pedido #%d\n", o.ID)
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "🕒 %s\n", o.CreatedAt.Local().Format("02/01 15:04"))
	}
	fmt.Fprintf(&sb, "\n👤 %s\n📞 %s\n", o.Customer, o.Phone)
	fmt.Fprintf(&sb, "📦 %s · %s\n", o.Fulfillment.Label(), o.Period.Label())
	if o.Fulfillment != models.FulfillmentPickup {
		fmt.Fprintf(&sb, "📍 %s\n", o.Address)
	}
	sb.WriteString("\n")
	for _, l := range o.Lines {
		fmt.Fprintf(&sb, "%dx %s — %s\n", l.Quantity, l.Name, models.FormatMoney(l.Price))
	}
	fmt.Fprintf(&sb, "\n💵 Total: %s\n", models.FormatMoney(o.Total))
	fmt.Fprintf(&sb, "💳 %s\n", o.PaymentMethod.Label())
	if o.Notes != nil && strings.TrimSpace(*o.Notes) != "" {
		fmt.Fprintf(&sb, "📝 \"%s\"\n", strings.TrimSpace(*o.Notes))
	}
	fmt.Fprintf(&sb, "\nStatus: %s", StatusLabel(o.Status))

	var buttons [][]OrderCardButton
	var row []OrderCardButton
	for _, s := range NextStatuses(o) {
		row = append(row, OrderCardButton{Text: statusButtonText(s), CallbackData: StatusCallbackData(o.ID, s)})
	}
	if len(row) > 0 {
		buttons = append(buttons, row)
	}
	if trackingBaseURL != "" && o.Token != "" {
		buttons = append(buttons, []OrderCardButton{{Text: "🔗 Acompanhamento", URL: strings.TrimRight(trackingBaseURL, "/") + TrackingPath(o.Token)}})
	}
	return OrderCardContent{Text: sb.String(), Buttons: buttons}
}
