package collection

import "sync"

// History is an in-process navigation stack, the equivalent of the browser's
// history for surfaces that have no address bar (the CLI, tests).
//
// Listeners run synchronously on every location change, in registration order.
type History struct {
	mu        sync.Mutex
	entries   []string
	index     int
	listeners []func(location string)
}

func NewHistory(initial string) *History {
	return &History{entries: []string{initial}}
}

// Location returns the current location.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Listen registers fn for future location changes.
func (h *History) Listen(fn func(location string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Push navigates to location, dropping any forward entries.
func (h *History) Push(location string) {
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], location)
	h.index++
	h.mu.Unlock()

	h.emit(location)
}

// Back moves one entry back. It reports false at the oldest entry.
func (h *History) Back() bool {
	h.mu.Lock()
	if h.index == 0 {
		h.mu.Unlock()
		return false
	}
	h.index--
	loc := h.entries[h.index]
	h.mu.Unlock()

	h.emit(loc)
	return true
}

// Forward moves one entry forward. It reports false at the newest entry.
func (h *History) Forward() bool {
	h.mu.Lock()
	if h.index == len(h.entries)-1 {
		h.mu.Unlock()
		return false
	}
	h.index++
	loc := h.entries[h.index]
	h.mu.Unlock()

	h.emit(loc)
	return true
}

func (h *History) emit(location string) {
	h.mu.Lock()
	listeners := append([]func(string){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(location)
	}
}
