package activity

import (
	"context"
	"sync"
)

// CaptureHook records normalized events for assertions in tests. Err, when
// set, is returned from every Notify.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, event.Normalize())
	return h.Err
}

// Verbs lists the captured verbs in arrival order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.Events))
	for i, event := range h.Events {
		verbs[i] = event.Verb
	}
	return verbs
}

// Find returns the first captured event with verb.
func (h *CaptureHook) Find(verb string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, event := range h.Events {
		if event.Verb == verb {
			return event, true
		}
	}
	return Event{}, false
}

// Reset drops captured events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	h.Events = nil
	h.mu.Unlock()
}
