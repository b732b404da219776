package models

import (
	"time"

	"github.com/google/uuid"
)

type EventBuilder struct {
	event *Event
}

func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		event: &Event{
			Data:     make(map[string]interface{}),
			Metadata: make(map[string]interface{}),
		},
	}
}

func (b *EventBuilder) WithID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

func (b *EventBuilder) WithType(eventType string) *EventBuilder {
	b.event.Type = eventType
	return b
}

func (b *EventBuilder) WithScope(organizationID, moduleName string) *EventBuilder {
	b.event.OrganizationID = organizationID
	b.event.ModuleName = moduleName
	return b
}

func (b *EventBuilder) WithUserID(userID string) *EventBuilder {
	b.event.UserID = userID
	return b
}

func (b *EventBuilder) WithTimestamp(timestamp time.Time) *EventBuilder {
	b.event.Timestamp = timestamp
	return b
}

func (b *EventBuilder) WithData(data map[string]interface{}) *EventBuilder {
	b.event.Data = data
	return b
}

func (b *EventBuilder) WithMetadata(key string, value interface{}) *EventBuilder {
	b.event.Metadata[key] = value
	return b
}

// Build fills in a random id and the current time when they were not set.
func (b *EventBuilder) Build() *Event {
	if b.event.ID == "" {
		b.event.ID = uuid.NewString()
	}
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now().UTC()
	}
	return b.event
}
