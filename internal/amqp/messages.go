package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"registros/internal/core"
)

type EventType string

const (
	RecordCreated EventType = "created"
	RecordUpdated EventType = "updated"
	RecordDeleted EventType = "deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case RecordCreated, RecordUpdated, RecordDeleted:
		return true
	}
	return false
}

// RecordEvent is published after every successful write. Record is nil for
// deletes.
type RecordEvent struct {
	Type      EventType    `json:"type"`
	ID        int64        `json:"id"`
	Record    *core.Record `json:"record,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewRecordEvent(t EventType, r core.Record) *RecordEvent {
	ev := &RecordEvent{Type: t, ID: r.ID, Timestamp: time.Now()}
	if t != RecordDeleted {
		rec := r.Clone()
		ev.Record = &rec
	}
	return ev
}

func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var ev RecordEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.Type != RecordDeleted && ev.Record == nil {
		return nil, fmt.Errorf("%s event for %d has no record", ev.Type, ev.ID)
	}
	return &ev, nil
}

// PasswordResetEvent asks an external mailer to deliver a reset link.
type PasswordResetEvent struct {
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	Timestamp time.Time `json:"timestamp"`
}
