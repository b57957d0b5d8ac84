package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// OutboxEvent stores a change event written in the same transaction as the
// mutation that produced it, waiting to be published.
type OutboxEvent struct {
	Seq           int64
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Status        Status
	RetryCount    int
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

// OrderingKey groups events whose relative order must be preserved.
func (e OutboxEvent) OrderingKey() string {
	return e.AggregateType + ":" + e.AggregateID
}

// TableName returns the database table name
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
