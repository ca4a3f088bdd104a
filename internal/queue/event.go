// Package queue defines the lending events exchanged over the message
// broker and the consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// LendingQueueName is the durable queue every lending event is routed to.
const LendingQueueName = "library.lending"

// EventType names what happened.
type EventType string

const (
	BorrowingRequested      EventType = "borrowing.requested"
	BorrowingApproved       EventType = "borrowing.approved"
	BorrowingRejected       EventType = "borrowing.rejected"
	BorrowingReturned       EventType = "borrowing.returned"
	BorrowingOverdue        EventType = "borrowing.overdue"
	ReservationCreated      EventType = "reservation.created"
	ReservationApproved     EventType = "reservation.approved"
	ReservationRejected     EventType = "reservation.rejected"
	ReservationCancelled    EventType = "reservation.cancelled"
	ReservationCopyAssigned EventType = "reservation.copy_assigned"
)

// LendingEvent is published after a lending transaction commits.  It
// carries enough identifiers for consumers to log, notify or trigger
// analytics without querying the primary database.  Fields that do not
// apply to an event type are omitted.
type LendingEvent struct {
	EventID       string    `json:"event_id"`
	Type          EventType `json:"type"`
	MemberID      uint64    `json:"member_id,omitempty"`
	BookID        uint64    `json:"book_id,omitempty"`
	BookCopyID    uint64    `json:"book_copy_id,omitempty"`
	BorrowingID   uint64    `json:"borrowing_id,omitempty"`
	ReservationID uint64    `json:"reservation_id,omitempty"`
	QueuePosition uint32    `json:"queue_position,omitempty"`
	Count         int64     `json:"count,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh event id and the current UTC time.
func NewEvent(t EventType) LendingEvent {
	return LendingEvent{EventID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}
