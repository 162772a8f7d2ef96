package domain

import (
	"errors"
	"time"
)

// Pre-defined errors for envelope validation.
var (
	ErrUnsupportedEventKind = errors.New("unsupported event kind")
	ErrMissingTarget        = errors.New("envelope target id is required")
)

// EventKind defines the type of real-time event the relay forwards.
type EventKind string

const (
	EventNotification       EventKind = "getNotification"
	EventNewOrder           EventKind = "newOrder"
	EventOrderStatusUpdated EventKind = "orderStatusUpdated"
	EventChatMessage        EventKind = "chatMessage"
)

// Valid reports whether the kind is one the router forwards.
func (k EventKind) Valid() bool {
	switch k {
	case EventNotification, EventNewOrder, EventOrderStatusUpdated, EventChatMessage:
		return true
	}
	return false
}

// Envelope is one addressed event handed to the router. It exists only for the
// duration of a single forwarding operation; the relay never stores it.
type Envelope struct {
	Kind      EventKind   `json:"kind"`
	Target    Identity    `json:"target"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Validate rejects malformed envelopes at the boundary.
func (e Envelope) Validate() error {
	if !e.Kind.Valid() {
		return ErrUnsupportedEventKind
	}
	if e.Target.SubjectID == "" {
		return ErrMissingTarget
	}
	return e.Target.Validate()
}

// Delivery is the frame pushed to a client connection: the envelope stripped
// of its routing target.
type Delivery struct {
	Kind      EventKind   `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// DeliveryOf builds the wire frame for an envelope.
func DeliveryOf(e Envelope) Delivery {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Delivery{Kind: e.Kind, Payload: e.Payload, Timestamp: ts}
}
