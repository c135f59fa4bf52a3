// internal/bus/client.go
package bus

import (
	"context"
	"time"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// Client is a role-bound handle on a MessageBus. Every message it sends carries
// its role as the sender. A nil *Client is usable: sends become no-ops and
// receives report no message, so components can run detached from a bus.
type Client struct {
	bus  *MessageBus
	role schemas.Role
}

// NewClient binds role to bus. The role must have a mailbox on the bus.
func NewClient(bus *MessageBus, role schemas.Role) (*Client, error) {
	if !bus.declared(role) {
		return nil, &schemas.RoutingError{Receiver: role}
	}
	return &Client{bus: bus, role: role}, nil
}

// Role returns the identity this client sends as.
func (c *Client) Role() schemas.Role {
	if c == nil {
		return ""
	}
	return c.role
}

// SendRequest sends a request to a single role.
func (c *Client) SendRequest(to schemas.Role, payload schemas.Request) error {
	return c.send(schemas.KindRequest, to, payload, nil)
}

// SendResponse answers a request from another role.
func (c *Client) SendResponse(to schemas.Role, payload schemas.Response) error {
	return c.send(schemas.KindResponse, to, payload, nil)
}

// SendError reports a failure to a role. Stages address their own role so the
// failure is recorded against the component that observed it.
func (c *Client) SendError(to schemas.Role, message string) error {
	if c == nil {
		return nil
	}
	return c.send(schemas.KindError, to, schemas.ErrorEvent{Source: c.role, Message: message}, nil)
}

// Notify broadcasts an event to every mailbox.
func (c *Client) Notify(payload schemas.Event) error {
	return c.send(schemas.KindNotification, schemas.Broadcast, payload, nil)
}

// NotifyWithMetadata broadcasts an event carrying metadata such as a run ID.
func (c *Client) NotifyWithMetadata(payload schemas.Event, metadata map[string]string) error {
	return c.send(schemas.KindNotification, schemas.Broadcast, payload, metadata)
}

// Receive waits for the next message addressed to this client's role.
func (c *Client) Receive(ctx context.Context, timeout time.Duration) (schemas.Message, bool) {
	if c == nil {
		return schemas.Message{}, false
	}
	return c.bus.Receive(ctx, c.role, timeout)
}

func (c *Client) send(kind schemas.MessageKind, to schemas.Role, payload schemas.Event, metadata map[string]string) error {
	if c == nil {
		return nil
	}
	msg, err := schemas.NewMessage(kind, c.role, to, payload, metadata)
	if err != nil {
		return err
	}
	return c.bus.Send(msg)
}
