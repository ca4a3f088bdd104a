package model

// The lending state machines are expressed as tables keyed by the event
// being applied.  An event is legal only from the listed source states;
// anything else is rejected by the caller as an invalid state.

// CopyStatus is the availability of a single book copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyReserved  CopyStatus = "RESERVED"
	CopyBorrowed  CopyStatus = "BORROWED"
)

// CopyEvent names a change applied to a copy by the lending lifecycle.
type CopyEvent string

const (
	CopyRequest CopyEvent = "request" // member asks to borrow the copy
	CopyClaim   CopyEvent = "claim"   // approved reservation takes a free copy
	CopyLend    CopyEvent = "lend"    // librarian approves the borrowing
	CopyRelease CopyEvent = "release" // librarian rejects the borrowing
	CopyShelve  CopyEvent = "shelve"  // returned with nobody waiting
	CopyHandoff CopyEvent = "handoff" // returned and passed to the queue head
)

var copyTransitions = map[CopyEvent]map[CopyStatus]CopyStatus{
	CopyRequest: {CopyAvailable: CopyReserved},
	CopyClaim:   {CopyAvailable: CopyReserved},
	CopyLend:    {CopyReserved: CopyBorrowed},
	CopyRelease: {CopyReserved: CopyAvailable},
	CopyShelve:  {CopyBorrowed: CopyAvailable},
	CopyHandoff: {CopyBorrowed: CopyReserved},
}

// Apply returns the status reached by ev, or false when ev is not
// permitted from s.
func (s CopyStatus) Apply(ev CopyEvent) (CopyStatus, bool) {
	next, ok := copyTransitions[ev][s]
	return next, ok
}

// BorrowingStatus is the state of a borrowing request.
type BorrowingStatus string

const (
	BorrowingPending  BorrowingStatus = "PENDING"
	BorrowingApproved BorrowingStatus = "APPROVED"
	BorrowingRejected BorrowingStatus = "REJECTED"
	BorrowingReturned BorrowingStatus = "RETURNED"
	BorrowingOverdue  BorrowingStatus = "OVERDUE"
)

// Open reports whether the borrowing still holds a claim on its copy.
func (s BorrowingStatus) Open() bool {
	return s == BorrowingPending || s == BorrowingApproved
}

// BorrowingEvent names a transition of a borrowing.
type BorrowingEvent string

const (
	BorrowApprove BorrowingEvent = "approve"
	BorrowReject  BorrowingEvent = "reject"
	BorrowReturn  BorrowingEvent = "return"
	BorrowExpire  BorrowingEvent = "expire"
)

var borrowingTransitions = map[BorrowingEvent]map[BorrowingStatus]BorrowingStatus{
	BorrowApprove: {BorrowingPending: BorrowingApproved},
	BorrowReject:  {BorrowingPending: BorrowingRejected},
	BorrowReturn:  {BorrowingApproved: BorrowingReturned},
	BorrowExpire:  {BorrowingApproved: BorrowingOverdue},
}

// Apply returns the status reached by ev, or false when ev is not
// permitted from s.
func (s BorrowingStatus) Apply(ev BorrowingEvent) (BorrowingStatus, bool) {
	next, ok := borrowingTransitions[ev][s]
	return next, ok
}

// ReservationStatus is the state of a reservation in a book's queue.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationCompleted ReservationStatus = "COMPLETED"
)

// Open reports whether the reservation still occupies a queue slot.
func (s ReservationStatus) Open() bool {
	return s == ReservationPending || s == ReservationActive
}

// ReservationEvent names a transition of a reservation.
type ReservationEvent string

const (
	ReserveApprove ReservationEvent = "approve"
	ReserveReject  ReservationEvent = "reject"
	ReserveCancel  ReservationEvent = "cancel"
)

var reservationTransitions = map[ReservationEvent]map[ReservationStatus]ReservationStatus{
	ReserveApprove: {ReservationPending: ReservationActive},
	ReserveReject:  {ReservationPending: ReservationCancelled},
	ReserveCancel: {
		ReservationPending: ReservationCancelled,
		ReservationActive:  ReservationCancelled,
	},
}

// Apply returns the status reached by ev, or false when ev is not
// permitted from s.
func (s ReservationStatus) Apply(ev ReservationEvent) (ReservationStatus, bool) {
	next, ok := reservationTransitions[ev][s]
	return next, ok
}
