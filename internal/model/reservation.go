package model

import "time"

// Reservation places a member in the FIFO queue of a book (not of a
// specific copy).  QueuePosition is 1-based and, among the book's open
// reservations, contiguous in arrival order.
//
// Fields:
//
//	ID            – primary key identifier.
//	MemberID      – member who queued.
//	BookID        – book being waited for.
//	Status        – PENDING, ACTIVE, CANCELLED or COMPLETED.
//	QueuePosition – rank among the book's open reservations.
//	AssignedCopyID – copy held for the member, set when approval claims a
//	                 free copy or a return hands one over (nullable).
//	CreatedAt     – arrival time.
//	UpdatedAt     – last update timestamp.
type Reservation struct {
	ID             uint64            `json:"id"`
	MemberID       uint64            `json:"memberId"`
	BookID         uint64            `json:"bookId"`
	Status         ReservationStatus `json:"status"`
	QueuePosition  uint32            `json:"queuePosition"`
	AssignedCopyID *uint64           `json:"assignedCopyId"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ReservationDetail is a reservation joined with its book and, for
// librarian views, the member who made it.
type ReservationDetail struct {
	Reservation
	Book   BookSummary     `json:"book"`
	Member *AccountSummary `json:"member,omitempty"`
}
