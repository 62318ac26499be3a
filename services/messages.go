package services

import (
	"fmt"
	"sync"
	"time"
)

// NotifyDedupWindow is how long an identical order notification is suppressed.
const NotifyDedupWindow = 30 * time.Second

// NotifyLog remembers outbound order notifications so the same (order, status)
// is not announced twice when a push and a button press race.
type NotifyLog struct {
	mu   sync.Mutex
	sent map[string]time.Time
	now  func() time.Time
}

func NewNotifyLog() *NotifyLog {
	return &NotifyLog{sent: map[string]time.Time{}, now: time.Now}
}

func notifyKey(orderID int64, status string) string {
	return fmt.Sprintf("%d:%s", orderID, status)
}

// SentWithin reports whether the same order_id and status was already sent within the window.
func (l *NotifyLog) SentWithin(orderID int64, status string, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.sent[notifyKey(orderID, status)]
	return ok && l.now().Sub(at) < window
}

// Record marks a notification as sent and drops entries older than the dedup window.
func (l *NotifyLog) Record(orderID int64, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, at := range l.sent {
		if now.Sub(at) >= NotifyDedupWindow {
			delete(l.sent, k)
		}
	}
	l.sent[notifyKey(orderID, status)] = now
}

// ShouldNotify records and returns true unless the notification is a duplicate.
func (l *NotifyLog) ShouldNotify(orderID int64, status string) bool {
	if l.SentWithin(orderID, status, NotifyDedupWindow) {
		return false
	}
	l.Record(orderID, status)
	return true
}
