package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to an expense.
type EventType string

const (
	EventExpenseCreated     EventType = "expense.created"
	EventExpenseDeleted     EventType = "expense.deleted"
	EventExpenseTagsUpdated EventType = "expense.tags_updated"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseDeleted, EventExpenseTagsUpdated:
		return true
	}
	return false
}

// ExpenseEvent is a lightweight notification. It carries only the expense id;
// consumers read the current row from the database.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(t EventType, id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      t,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and checks an event body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", ev.ID)
	}
	return &ev, nil
}
