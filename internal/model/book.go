package model

import "time"

// Category groups books.  Names are unique.
type Category struct {
	ID          uint64    `json:"id"`                    // categories.id
	Name        string    `json:"name"`                  // categories.name
	Description *string   `json:"description,omitempty"` // categories.description (nullable)
	CreatedAt   time.Time `json:"createdAt"`             // categories.created_at
	UpdatedAt   time.Time `json:"updatedAt"`             // categories.updated_at
}

// Book is a catalog title.  The physical units that are lent out are
// BookCopy rows; a book with zero copies can still be reserved.
//
// Fields:
//
//	ID             – primary key identifier.
//	Title, Author  – bibliographic data.
//	ISBN           – unique across the catalog.
//	Description    – optional free text.
//	CategoryID     – required reference to categories.id.
//	LastCopyNumber – highest copy number ever assigned for this book.
type Book struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	ISBN           string    `json:"isbn"`
	Description    *string   `json:"description,omitempty"`
	CategoryID     uint64    `json:"categoryId"`
	LastCopyNumber uint32    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// BookCopy is one lendable unit of a book.  Its status mirrors the
// single in-flight claim on it: a pending borrowing or a reservation
// hand-off keeps it RESERVED, an approved borrowing keeps it BORROWED.
type BookCopy struct {
	ID         uint64     `json:"id"`         // book_copies.id
	BookID     uint64     `json:"bookId"`     // book_copies.book_id
	CopyNumber uint32     `json:"copyNumber"` // book_copies.copy_number
	Status     CopyStatus `json:"status"`     // book_copies.status
	CreatedAt  time.Time  `json:"createdAt"`  // book_copies.created_at
	UpdatedAt  time.Time  `json:"updatedAt"`  // book_copies.updated_at
}

// BookDetail is a book together with its category and copies, plus the
// per-status copy counts shown on the catalog pages.
type BookDetail struct {
	Book
	Category        *Category  `json:"category,omitempty"`
	Copies          []BookCopy `json:"bookCopies"`
	AvailableCopies int        `json:"availableCopies"`
	ReservedCopies  int        `json:"reservedCopies"`
	BorrowedCopies  int        `json:"borrowedCopies"`
	TotalCopies     int        `json:"totalCopies"`
}

// Tally fills the per-status counters from Copies.
func (d *BookDetail) Tally() {
	d.AvailableCopies, d.ReservedCopies, d.BorrowedCopies = 0, 0, 0
	for _, c := range d.Copies {
		switch c.Status {
		case CopyAvailable:
			d.AvailableCopies++
		case CopyReserved:
			d.ReservedCopies++
		case CopyBorrowed:
			d.BorrowedCopies++
		}
	}
	d.TotalCopies = len(d.Copies)
}

// BookSummary is the slice of a book embedded in borrowing and
// reservation listings.
type BookSummary struct {
	ID           uint64 `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	ISBN         string `json:"isbn"`
	CategoryID   uint64 `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

// AccountSummary identifies the member behind a request in librarian
// listings.
type AccountSummary struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
