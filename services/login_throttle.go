package services

import (
	"math"
	"sync"
	"time"
)

const ThrottleCooldownCapSeconds = 30

// throttleForgetAfter drops a client whose last cooldown ended this long ago.
const throttleForgetAfter = 15 * time.Minute

type throttleEntry struct {
	failCount     int
	cooldownUntil time.Time
}

// LoginThrottle slows down repeated failed logins from one client.
type LoginThrottle struct {
	mu      sync.Mutex
	entries   map[string]throttleEntry
	now       func() time.Time
	lastPrune time.Time
}

func NewLoginThrottle() *LoginThrottle {
	return &LoginThrottle{entries: map[string]throttleEntry{}, now: time.Now}
}

// WaitSeconds returns how many seconds the client must wait before trying again (0 if no cooldown).
func (t *LoginThrottle) WaitSeconds(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return 0
	}
	now := t.now()
	if now.Before(e.cooldownUntil) {
		return int(e.cooldownUntil.Sub(now).Seconds()) + 1 // round up
	}
	return 0
}

// RecordFailed increments the fail count and sets cooldown = min(30, 2^failCount) seconds.
func (t *LoginThrottle) RecordFailed(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	e := t.entries[key]
	e.failCount++
	e.cooldownUntil = now.Add(time.Duration(CooldownSecondsForFailCount(e.failCount)) * time.Second)
	t.entries[key] = e
}

// RecordSuccess forgets the client's failures.
func (t *LoginThrottle) RecordSuccess(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// pruneLocked forgets clients that stopped failing, at most once a minute.
func (t *LoginThrottle) pruneLocked(now time.Time) {
	if now.Sub(t.lastPrune) < time.Minute {
		return
	}
	t.lastPrune = now
	for key, e := range t.entries {
		if now.Sub(e.cooldownUntil) > throttleForgetAfter {
			delete(t.entries, key)
		}
	}
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	s := int(math.Pow(2, float64(failCount)))
	if s > ThrottleCooldownCapSeconds {
		return ThrottleCooldownCapSeconds
	}
	return s
}
