package chat

// EventKind is the kind of row change carried on the push channel.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventDeleted EventKind = "deleted"
)

// RowEvent is a single change to the messages relation of one room.
// Created events carry the full row; deleted events carry at least ID and RoomID.
type RowEvent struct {
	Kind    EventKind `json:"kind"`
	Message Message   `json:"row"`
	// Author is filled in by the receiver. The push payload never carries it.
	Author *Author `json:"-"`
}

// Subscription is a live, room-scoped stream of row events.
// Unsubscribe is idempotent; once it returns no further events are delivered.
type Subscription interface {
	Events() <-chan RowEvent
	Unsubscribe()
	// Err reports why the stream ended when it was closed by the publisher.
	Err() error
}
