package web

import (
	"sync"
	"time"

	"bomsabor-web/services"
)

// Flash is a one-shot notification shown on the next render.
type Flash struct {
	Kind  string // "success" or "error"
	Title string
	Text  string
}

// browserState is the in-memory UI state of one browser: the cart, the order
// form, and the lists the pages last showed.
type browserState struct {
	Cart     *services.Cart
	Checkout *services.Checkout
	Menu     *services.MenuBoard
	Orders   *services.OrderBoard

	mu          sync.Mutex
	flashes     []Flash
	fieldErrors services.ValidationErrors
	lastSeen    time.Time
}

func newBrowserState() *browserState {
	return &browserState{
		Cart:     services.NewCart(),
		Checkout: services.NewCheckout(),
		Menu:     services.NewMenuBoard(nil),
		Orders:   services.NewOrderBoard(),
	}
}

func (s *browserState) addFlash(f Flash) {
	s.mu.Lock()
	s.flashes = append(s.flashes, f)
	s.mu.Unlock()
}

func (s *browserState) flashError(title, text string) {
	s.addFlash(Flash{Kind: "error", Title: title, Text: text})
}

func (s *browserState) flashSuccess(title, text string) {
	s.addFlash(Flash{Kind: "success", Title: title, Text: text})
}

func (s *browserState) setFieldErrors(errs services.ValidationErrors) {
	s.mu.Lock()
	s.fieldErrors = errs
	s.mu.Unlock()
}

// takeMessages returns and clears the pending flashes and field errors.
func (s *browserState) takeMessages() ([]Flash, services.ValidationErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, e := s.flashes, s.fieldErrors
	s.flashes, s.fieldErrors = nil, nil
	return f, e
}

// stateStore maps a browser id to its state. Idle entries are evicted, and
// once max browsers are held the least recently seen one makes room.
type stateStore struct {
	mu      sync.Mutex
	states  map[string]*browserState
	idle    time.Duration
	max     int
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

func newStateStore(idle time.Duration, maxStates int) *stateStore {
	return &stateStore{
		states:  map[string]*browserState{},
		idle:    idle,
		max:     maxStates,
		now:     time.Now,
		gcEvery: time.Minute,
	}
}

func (s *stateStore) get(id string) *browserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastGC) >= s.gcEvery {
		s.evictLocked(now)
		s.lastGC = now
	}
	st, ok := s.states[id]
	if !ok {
		if s.max > 0 && len(s.states) >= s.max {
			s.evictLocked(now)
			s.lastGC = now
			if len(s.states) >= s.max {
				s.evictOldestLocked()
			}
		}
		st = newBrowserState()
		s.states[id] = st
	}
	st.lastSeen = now
	return st
}

// rename keeps a browser's cart and form when its session id rotates at login.
func (s *stateStore) rename(oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[oldID]; ok {
		delete(s.states, oldID)
		s.states[newID] = st
	}
}

func (s *stateStore) evictLocked(now time.Time) {
	for id, st := range s.states {
		if now.Sub(st.lastSeen) > s.idle {
			delete(s.states, id)
		}
	}
}

func (s *stateStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, st := range s.states {
		if oldestID == "" || st.lastSeen.Before(oldest) {
			oldestID, oldest = id, st.lastSeen
		}
	}
	delete(s.states, oldestID)
}

func (s *stateStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
