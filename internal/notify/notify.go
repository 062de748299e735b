// Package notify is an in-process notification center for key events.
package notify

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies an event
type Kind string

const (
	// KeyUpdated is posted after a delegate was attached to an owner key
	KeyUpdated Kind = "key_updated"

	// PushRegistrationNeeded asks the push registrar to register the device
	// again with the current delegate keys
	PushRegistrationNeeded Kind = "push_registration_needed"
)

// Event is a posted notification
type Event struct {
	Kind     Kind
	Owner    common.Address
	Delegate common.Address
}

// Handler receives events
type Handler func(ctx context.Context, ev Event)

// Center delivers posted events to the handlers subscribed to their kind.
// Handlers run synchronously in subscription order.
type Center struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// NewCenter creates an empty center
func NewCenter() *Center {
	return &Center{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for events of kind k
func (c *Center) Subscribe(k Kind, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[k] = append(c.handlers[k], h)
}

// Post delivers ev to its subscribers
func (c *Center) Post(ctx context.Context, ev Event) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[ev.Kind]...)
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
