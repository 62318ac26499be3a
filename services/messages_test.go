package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifyLogSuppressesDuplicatesWithin30s(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewNotifyLog()
	l.now = func() time.Time { return now }

	assert.True(t, l.ShouldNotify(7, "pendente"))
	assert.False(t, l.ShouldNotify(7, "pendente"))
	assert.True(t, l.ShouldNotify(7, "preparando"))
	assert.True(t, l.ShouldNotify(8, "pendente"))

	now = now.Add(31 * time.Second)
	assert.False(t, l.SentWithin(7, "pendente", NotifyDedupWindow))
	assert.True(t, l.ShouldNotify(7, "pendente"))
}
