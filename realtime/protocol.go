// Package realtime is a small Pusher protocol (v7) client for the broadcast
// server the backend publishes to.
package realtime

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	eventConnectionEstablished = "pusher:connection_established"
	eventError                 = "pusher:error"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventSubscribe             = "pusher:subscribe"
	eventUnsubscribe           = "pusher:unsubscribe"
	eventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
)

// Broadcast event names, as listened for by the pages.
const (
	EventMenuItemCreated    = "MenuItemCreated"
	EventMenuItemUpdated    = "MenuItemUpdated"
	EventMenuItemDeleted    = "MenuItemDeleted"
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusUpdated = "OrderStatusUpdated"
)

const (
	ChannelMenu        = "menu"
	ChannelAdminOrders = "private-admin-orders"
)

// OrderChannel is the public channel of one order's tracking page.
func OrderChannel(token string) string {
	return "order." + token
}

func isPrivate(channel string) bool {
	return strings.HasPrefix(channel, "private-") || strings.HasPrefix(channel, "presence-")
}

type envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type connectionData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribeData struct {
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Event is one broadcast delivered to a subscription.
type Event struct {
	Name    string
	Channel string
	Data    json.RawMessage
}

// NormalizeEventName strips a PHP namespace ("App\Events\") and the leading
// dot Echo uses for fully qualified names.
func NormalizeEventName(name string) string {
	name = strings.TrimPrefix(name, ".")
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// unwrapData returns the JSON object carried by data. Pusher servers send it as
// a JSON-encoded string; some send the object itself.
func unwrapData(data json.RawMessage) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return json.RawMessage(s), nil
}

// Decode unmarshals the event payload into v. A payload that wraps the entity
// in a single property ({"order": {...}}) is unwrapped first.
func (e Event) Decode(v any) error {
	raw, err := unwrapData(e.Data)
	if err != nil {
		return err
	}
	var wrapper map[string]json.RawMessage
	if json.Unmarshal(raw, &wrapper) == nil && len(wrapper) == 1 {
		if _, hasID := wrapper["id"]; !hasID {
			for _, inner := range wrapper {
				inner = bytes.TrimSpace(inner)
				if len(inner) > 0 && inner[0] == '{' {
					raw = inner
				}
			}
		}
	}
	return json.Unmarshal(raw, v)
}
