package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prorata/internal/core"
)

// EventType names what happened to an expense.
type EventType string

const (
	EventExpenseTracked EventType = "expense.tracked"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent carries the time-span of a tracked or deleted expense, which is
// everything a consumer needs to work out which months changed.
type ExpenseEvent struct {
	EventID      uuid.UUID  `json:"event_id"`
	Type         EventType  `json:"type"`
	ExpenseID    int64      `json:"expense_id"`
	Issued       time.Time  `json:"issued"`
	End          *time.Time `json:"end,omitempty"`
	RepeatMonths int        `json:"repeat_months,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// NewExpenseEvent creates an event for e with a fresh ID
func NewExpenseEvent(typ EventType, e core.Expense) *ExpenseEvent {
	ev := &ExpenseEvent{
		EventID:      uuid.New(),
		Type:         typ,
		ExpenseID:    e.ID,
		Issued:       e.Issued,
		RepeatMonths: e.RepeatMonths,
		Timestamp:    time.Now(),
	}
	if e.HasEnd() {
		end := e.End
		ev.End = &end
	}
	return ev
}

// Span rebuilds the expense shape from the event. Amounts and category are not
// carried and stay zero.
func (m *ExpenseEvent) Span() core.Expense {
	e := core.Expense{
		ID:           m.ExpenseID,
		Issued:       m.Issued,
		RepeatMonths: m.RepeatMonths,
	}
	if m.End != nil {
		e.End = *m.End
	}
	return e
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON creates an event from JSON bytes
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventExpenseTracked, EventExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.Issued.IsZero() {
		return nil, fmt.Errorf("event %s: %w", msg.EventID, core.ErrMissingIssueDate)
	}
	return &msg, nil
}
