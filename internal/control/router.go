package control

import (
	"log/slog"
	"sync"
)

// Handler processes one control message of a registered category.
// Handlers run synchronously on the session's inbound event loop and must
// not block.
type Handler func(Envelope)

// Router dispatches parsed control messages to registered handlers by
// category. All methods are safe for concurrent use.
//
// Per the backend contract, routing fails soft everywhere: malformed JSON
// and unknown categories are logged and dropped, and validation findings
// are advisory.
type Router struct {
	mu          sync.RWMutex
	handlers    map[Category][]Handler
	balanceHook func()
	validate    bool
}

// RouterOption configures a [Router].
type RouterOption func(*Router)

// WithValidation enables advisory JSON-schema validation of every inbound
// envelope. Findings are logged; the message is still dispatched.
func WithValidation() RouterOption {
	return func(r *Router) { r.validate = true }
}

// NewRouter creates an empty router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{handlers: make(map[Category][]Handler)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle registers h for category c. Multiple handlers per category run in
// registration order.
func (r *Router) Handle(c Category, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[c] = append(r.handlers[c], h)
}

// OnBalanceInvalidated registers fn to run whenever a message arrives whose
// category implies the cash balance may have changed (trade_response,
// user_portfolio). Only one hook may be registered; later calls replace it.
func (r *Router) OnBalanceInvalidated(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balanceHook = fn
}

// Dispatch parses one raw text message and routes it.
func (r *Router) Dispatch(data []byte) {
	env, err := Parse(data)
	if err != nil {
		slog.Warn("control: dropping unparseable message", "err", err)
		return
	}

	cat := env.Category()
	if cat == "" {
		slog.Warn("control: dropping message without discriminator")
		return
	}

	if r.validate {
		if err := ValidateEnvelope(env.Raw); err != nil {
			slog.Warn("control: envelope failed schema validation", "category", cat, "err", err)
		}
	}

	r.mu.RLock()
	hook := r.balanceHook
	handlers := r.handlers[cat]
	r.mu.RUnlock()

	if cat.invalidatesBalance() && hook != nil {
		hook()
	}

	if len(handlers) == 0 {
		slog.Debug("control: no handler for category", "category", cat)
		return
	}
	for _, h := range handlers {
		h(env)
	}
}
