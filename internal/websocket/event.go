package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated  EventType = "created"
	EventTypeUpdated  EventType = "updated"
	EventTypeDeleted  EventType = "deleted"
	EventTypeImported EventType = "imported"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeAccount     EntityType = "account"
	EntityTypeCategory    EntityType = "category"
	EntityTypeTransaction EntityType = "transaction"
)

// Event is the message sent to clients: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // e.g. "transaction.created"
	Entity    EntityType  `json:"entity"`    // e.g. "transaction"
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// DeletedPayload identifies a removed entity
type DeletedPayload struct {
	ID int32 `json:"id"`
}

// ImportedPayload summarizes a completed import
type ImportedPayload struct {
	Count int `json:"count"`
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func AccountCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeAccount, payload)
}

func AccountUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeAccount, payload)
}

func AccountDeleted(id int32) Event {
	return NewEvent(EventTypeDeleted, EntityTypeAccount, DeletedPayload{ID: id})
}

func CategoryCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeCategory, payload)
}

func CategoryUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeCategory, payload)
}

func CategoryDeleted(id int32) Event {
	return NewEvent(EventTypeDeleted, EntityTypeCategory, DeletedPayload{ID: id})
}

// TransactionCreated creates a transaction.created event
func TransactionCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
}

// TransactionUpdated creates a transaction.updated event
func TransactionUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeTransaction, payload)
}

// TransactionDeleted creates a transaction.deleted event
func TransactionDeleted(id int32) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTransaction, DeletedPayload{ID: id})
}

// TransactionsImported creates a transaction.imported event carrying the row count
func TransactionsImported(count int) Event {
	return NewEvent(EventTypeImported, EntityTypeTransaction, ImportedPayload{Count: count})
}
