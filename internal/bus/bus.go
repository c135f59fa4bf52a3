// internal/bus/bus.go
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"go.uber.org/zap"
)

// Handler consumes messages pulled from a role's mailbox by Serve.
type Handler func(ctx context.Context, msg schemas.Message)

// mailbox is an unbounded FIFO. ready holds at most one wake-up token; a
// receiver that finds the queue non-empty after popping re-arms it.
type mailbox struct {
	items []schemas.Message
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (mb *mailbox) signal() {
	select {
	case mb.ready <- struct{}{}:
	default:
	}
}

// MessageBus routes messages between pipeline roles. Every declared role owns
// one mailbox for the lifetime of the bus, and every sent message is appended
// to a shared history log.
type MessageBus struct {
	logger *zap.Logger

	// mu guards mailboxes, history and handlers.
	mu        sync.Mutex
	roles     []schemas.Role
	mailboxes map[schemas.Role]*mailbox
	history   []schemas.Message
	handlers  map[schemas.Role]Handler
}

// NewMessageBus creates a bus with one empty mailbox per role. With no roles
// given, every role in schemas.Roles is declared. Invalid or duplicate roles
// are ignored.
func NewMessageBus(logger *zap.Logger, roles ...schemas.Role) *MessageBus {
	if len(roles) == 0 {
		roles = schemas.Roles()
	}
	declared := make([]schemas.Role, 0, len(roles))
	mailboxes := make(map[schemas.Role]*mailbox, len(roles))
	for _, role := range roles {
		if _, dup := mailboxes[role]; dup || !role.Valid() {
			continue
		}
		declared = append(declared, role)
		mailboxes[role] = newMailbox()
	}
	return &MessageBus{
		logger:    logger.Named("message_bus"),
		roles:     declared,
		mailboxes: mailboxes,
		handlers:  make(map[schemas.Role]Handler),
	}
}

// RegisterHandler associates a handler with a role. The last registration wins.
func (b *MessageBus) RegisterHandler(role schemas.Role, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.mailboxes[role]; !ok {
		return &schemas.RoutingError{Receiver: role}
	}
	b.handlers[role] = h
	return nil
}

// Send appends msg to the history and enqueues it. A directed message lands in
// the receiver's mailbox only; a broadcast lands in every mailbox. Send returns
// once enqueueing is done and never invokes handlers itself.
func (b *MessageBus) Send(msg schemas.Message) error {
	if !msg.Sender().Valid() {
		return &schemas.ValidationError{Field: "sender", Reason: "message was not built with NewMessage"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var targets []*mailbox
	if msg.IsBroadcast() {
		targets = make([]*mailbox, 0, len(b.roles))
		for _, role := range b.roles {
			targets = append(targets, b.mailboxes[role])
		}
	} else {
		mb, ok := b.mailboxes[msg.Receiver()]
		if !ok {
			return &schemas.RoutingError{Receiver: msg.Receiver()}
		}
		targets = []*mailbox{mb}
	}

	b.history = append(b.history, msg)
	for _, mb := range targets {
		mb.items = append(mb.items, msg)
		mb.signal()
	}

	b.logger.Debug("Message routed",
		zap.String("id", msg.ID()),
		zap.String("kind", msg.Kind().String()),
		zap.String("sender", msg.Sender().String()),
		zap.String("receiver", msg.Receiver().String()),
		zap.String("event", msg.Payload().EventName()),
		zap.Int("deliveries", len(targets)),
	)
	return nil
}

// Receive waits for the next message in role's mailbox. A timeout of zero or
// less waits until ctx is done. It reports false on timeout, cancellation or an
// undeclared role; none of these are errors.
func (b *MessageBus) Receive(ctx context.Context, role schemas.Role, timeout time.Duration) (schemas.Message, bool) {
	b.mu.Lock()
	mb, ok := b.mailboxes[role]
	b.mu.Unlock()
	if !ok {
		return schemas.Message{}, false
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if msg, ok := b.pop(mb); ok {
			return msg, true
		}
		select {
		case <-mb.ready:
		case <-deadline:
			// A message may have arrived alongside the deadline.
			return b.pop(mb)
		case <-ctx.Done():
			return schemas.Message{}, false
		}
	}
}

func (b *MessageBus) pop(mb *mailbox) (schemas.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(mb.items) == 0 {
		return schemas.Message{}, false
	}
	msg := mb.items[0]
	mb.items[0] = schemas.Message{}
	mb.items = mb.items[1:]
	if len(mb.items) > 0 {
		mb.signal()
	}
	return msg, true
}

// Serve pulls messages for role and hands each one to the handler registered
// at the time of delivery. Messages that arrive while no handler is registered
// are dropped with a debug log. Serve returns when ctx is done.
func (b *MessageBus) Serve(ctx context.Context, role schemas.Role) error {
	if !b.declared(role) {
		return &schemas.RoutingError{Receiver: role}
	}
	for {
		msg, ok := b.Receive(ctx, role, 0)
		if !ok {
			return ctx.Err()
		}
		b.mu.Lock()
		h := b.handlers[role]
		b.mu.Unlock()
		if h == nil {
			b.logger.Debug("No handler registered; message dropped", zap.String("role", role.String()), zap.String("id", msg.ID()))
			continue
		}
		h(ctx, msg)
	}
}

// History returns a snapshot of every message sent, in send order.
func (b *MessageBus) History() []schemas.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]schemas.Message, len(b.history))
	copy(out, b.history)
	return out
}

// ClearHistory empties the history log. Mailboxes are untouched.
func (b *MessageBus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// Roles returns the roles this bus has mailboxes for.
func (b *MessageBus) Roles() []schemas.Role {
	out := make([]schemas.Role, len(b.roles))
	copy(out, b.roles)
	return out
}

func (b *MessageBus) declared(role schemas.Role) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.mailboxes[role]
	return ok
}

// Pending reports how many messages are waiting in role's mailbox.
func (b *MessageBus) Pending(role schemas.Role) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.mailboxes[role]; ok {
		return len(mb.items)
	}
	return 0
}

// Drain empties role's mailbox and returns the discarded messages in order.
func (b *MessageBus) Drain(role schemas.Role) []schemas.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, ok := b.mailboxes[role]
	if !ok || len(mb.items) == 0 {
		return nil
	}
	out := mb.items
	mb.items = nil
	return out
}
