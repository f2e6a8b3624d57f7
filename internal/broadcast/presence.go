package broadcast

import (
	"sync"
	"time"

	"slothold/internal/keys"
)

// Tracker counts sessions currently viewing a slot. It backs the viewer_count
// field of broadcasts; the websocket layer calls Track/Untrack as clients
// open and close slot views.
type Tracker struct {
	mu      sync.RWMutex
	viewers map[string]map[string]struct{} // slot key -> session ids
}

func NewTracker() *Tracker {
	return &Tracker{viewers: make(map[string]map[string]struct{})}
}

func (t *Tracker) Track(sessionID string, datetime time.Time, serviceType string) {
	slot := keys.Slot(datetime, serviceType)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.viewers[slot] == nil {
		t.viewers[slot] = make(map[string]struct{})
	}
	t.viewers[slot][sessionID] = struct{}{}
}

func (t *Tracker) Untrack(sessionID string, datetime time.Time, serviceType string) {
	slot := keys.Slot(datetime, serviceType)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.viewers[slot], sessionID)
	if len(t.viewers[slot]) == 0 {
		delete(t.viewers, slot)
	}
}

func (t *Tracker) ViewerCount(datetime time.Time, serviceType string) int {
	slot := keys.Slot(datetime, serviceType)

	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.viewers[slot])
}
