// Package lifecycle provides the shutdown notifier binding libraries subscribe
// to when they must be saved at application termination.
package lifecycle

import (
	"log/slog"
	"sort"
	"sync"
)

// Hook is a single event fired when the application terminates. Handlers are
// subscribed and cancelled individually; Fire runs each live handler once.
//
// The zero value is ready to use.
type Hook struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]func()
	logger   *slog.Logger
}

// Subscription is the handle of a handler registered on a Hook.
type Subscription struct {
	hook *Hook
	id   uint64
}

// NewHook returns a Hook logging handler panics to logger. A nil logger means slog.Default().
func NewHook(logger *slog.Logger) *Hook {
	return &Hook{logger: logger}
}

// Subscribe registers fn to be run by the next Fire.
func (h *Hook) Subscribe(fn func()) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[uint64]func())
	}
	h.next++
	h.handlers[h.next] = fn
	return &Subscription{hook: h, id: h.next}
}

// Cancel removes the handler from its hook. Cancelling twice, or after the
// hook fired, does nothing.
func (s *Subscription) Cancel() {
	if s == nil || s.hook == nil {
		return
	}
	s.hook.mu.Lock()
	defer s.hook.mu.Unlock()
	delete(s.hook.handlers, s.id)
}

// Len returns the number of live subscriptions.
func (h *Hook) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// Fire runs every subscribed handler in subscription order and drops all
// subscriptions. A panicking handler is logged and does not prevent the
// remaining ones from running. It returns the number of handlers run.
func (h *Hook) Fire() int {
	h.mu.Lock()
	handlers := h.handlers
	h.handlers = nil
	h.mu.Unlock()

	ids := make([]uint64, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		h.run(handlers[id])
	}
	return len(ids)
}

func (h *Hook) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log().Error("shutdown handler panicked", "panic", r)
		}
	}()
	fn()
}

func (h *Hook) log() *slog.Logger {
	if h.logger == nil {
		return slog.Default()
	}
	return h.logger
}
