package schemas

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageKind classifies a message on the bus.
type MessageKind string

const (
	KindRequest      MessageKind = "request"
	KindResponse     MessageKind = "response"
	KindError        MessageKind = "error"
	KindNotification MessageKind = "notification"
)

// String implements fmt.Stringer.
func (k MessageKind) String() string { return string(k) }

// Valid reports whether k is one of the four declared kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindRequest, KindResponse, KindError, KindNotification:
		return true
	}
	return false
}

// Role identifies a pipeline participant. It doubles as a mailbox address.
type Role string

const (
	RoleParser   Role = "parser"
	RoleDesign   Role = "design"
	RoleCodeGen  Role = "code_gen"
	RoleTestGen  Role = "test_gen"
	RoleUIGen    Role = "ui_gen"
	RoleTracking Role = "tracking"

	// Broadcast is the absent receiver. Messages addressed to it fan out to every mailbox.
	Broadcast Role = ""
)

// Roles returns the closed set of declared roles in a stable order.
func Roles() []Role {
	return []Role{RoleParser, RoleDesign, RoleCodeGen, RoleTestGen, RoleUIGen, RoleTracking}
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// Valid reports whether r is a declared role. Broadcast is not a role.
func (r Role) Valid() bool {
	switch r {
	case RoleParser, RoleDesign, RoleCodeGen, RoleTestGen, RoleUIGen, RoleTracking:
		return true
	}
	return false
}

// Message is the envelope exchanged on the bus. The zero value is not a valid
// message; build one with NewMessage. Fields are unexported so a Message cannot
// be changed once created.
type Message struct {
	id        string
	timestamp time.Time
	kind      MessageKind
	sender    Role
	receiver  Role
	payload   Event
	metadata  map[string]string
}

// NewMessage validates its arguments and returns an immutable message.
// receiver may be Broadcast. metadata is copied; nil yields an empty map.
func NewMessage(kind MessageKind, sender, receiver Role, payload Event, metadata map[string]string) (Message, error) {
	if !kind.Valid() {
		return Message{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown message kind %q", kind)}
	}
	if !sender.Valid() {
		return Message{}, &ValidationError{Field: "sender", Reason: fmt.Sprintf("unknown role %q", sender)}
	}
	if receiver != Broadcast && !receiver.Valid() {
		return Message{}, &ValidationError{Field: "receiver", Reason: fmt.Sprintf("unknown role %q", receiver)}
	}
	if payload == nil {
		return Message{}, &ValidationError{Field: "payload", Reason: "payload is required"}
	}

	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	return Message{
		id:        uuid.New().String(),
		timestamp: time.Now().UTC(),
		kind:      kind,
		sender:    sender,
		receiver:  receiver,
		payload:   payload,
		metadata:  md,
	}, nil
}

func (m Message) ID() string           { return m.id }
func (m Message) Timestamp() time.Time { return m.timestamp }
func (m Message) Kind() MessageKind    { return m.kind }
func (m Message) Sender() Role         { return m.sender }
func (m Message) Receiver() Role       { return m.receiver }
func (m Message) Payload() Event       { return m.payload }

// IsBroadcast reports whether the message has no receiver.
func (m Message) IsBroadcast() bool { return m.receiver == Broadcast }

// Metadata returns a copy of the message metadata.
func (m Message) Metadata() map[string]string {
	md := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		md[k] = v
	}
	return md
}

// wireMessage is the JSON form of a Message.
type wireMessage struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Kind      MessageKind         `json:"kind"`
	Sender    Role                `json:"sender"`
	Receiver  *Role               `json:"receiver"`
	Payload   jsoniter.RawMessage `json:"payload"`
	Metadata  map[string]string   `json:"metadata"`
}

// MarshalJSON renders the message with the payload flattened into
// {"event": name, ...fields}.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:        m.id,
		Timestamp: m.timestamp,
		Kind:      m.kind,
		Sender:    m.sender,
		Metadata:  m.metadata,
	}
	if m.payload != nil {
		raw, err := EncodeEvent(m.payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		w.Payload = raw
	}
	if m.receiver != Broadcast {
		r := m.receiver
		w.Receiver = &r
	}
	return json.Marshal(w)
}
