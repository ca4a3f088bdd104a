package model

import "time"

// Borrowing is a member's request for a specific copy.  DueDate is set
// when the request is made and BorrowDate is refreshed on approval.
//
// Fields:
//
//	ID         – primary key identifier.
//	MemberID   – requesting member.
//	BookCopyID – requested copy.
//	Status     – PENDING, APPROVED, REJECTED, RETURNED or OVERDUE.
//	BorrowDate – request time, replaced by the approval time.
//	DueDate    – BorrowDate at request time plus the loan period.
//	ReturnDate – set when the copy comes back (nullable).
type Borrowing struct {
	ID         uint64          `json:"id"`
	MemberID   uint64          `json:"memberId"`
	BookCopyID uint64          `json:"bookCopyId"`
	Status     BorrowingStatus `json:"status"`
	BorrowDate time.Time       `json:"borrowDate"`
	DueDate    time.Time       `json:"dueDate"`
	ReturnDate *time.Time      `json:"returnDate"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// PastDue reports whether an approved borrowing is past its due date at now.
func (b Borrowing) PastDue(now time.Time) bool {
	return b.Status == BorrowingApproved && b.DueDate.Before(now)
}

// BorrowingDetail is a borrowing joined with its copy, book and member.
type BorrowingDetail struct {
	Borrowing
	CopyNumber uint32          `json:"copyNumber"`
	Book       BookSummary     `json:"book"`
	Member     *AccountSummary `json:"member,omitempty"`
	IsOverdue  bool            `json:"isOverdue"`
}
