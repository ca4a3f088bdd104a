package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/queue"
	"github.com/iliyamo/library-reservation/internal/repository"
)

// memLending is an in-memory LendingStore.  A failed transaction
// restores the state it started from.
type memLending struct {
	mu           sync.Mutex
	books        map[uint64]model.Book
	copies       map[uint64]model.BookCopy
	borrowings   map[uint64]model.Borrowing
	reservations map[uint64]model.Reservation
	nextID       uint64
}

func newMemLending() *memLending {
	return &memLending{
		books:        map[uint64]model.Book{},
		copies:       map[uint64]model.BookCopy{},
		borrowings:   map[uint64]model.Borrowing{},
		reservations: map[uint64]model.Reservation{},
		nextID:       100,
	}
}

func (m *memLending) addBook(id uint64, copies ...model.CopyStatus) []uint64 {
	m.books[id] = model.Book{ID: id, Title: "book", ISBN: "isbn", LastCopyNumber: uint32(len(copies))}
	ids := make([]uint64, 0, len(copies))
	for i, st := range copies {
		m.nextID++
		m.copies[m.nextID] = model.BookCopy{ID: m.nextID, BookID: id, CopyNumber: uint32(i + 1), Status: st}
		ids = append(ids, m.nextID)
	}
	return ids
}

func (m *memLending) snapshot() *memLending {
	c := newMemLending()
	c.nextID = m.nextID
	for k, v := range m.books {
		c.books[k] = v
	}
	for k, v := range m.copies {
		c.copies[k] = v
	}
	for k, v := range m.borrowings {
		c.borrowings[k] = v
	}
	for k, v := range m.reservations {
		c.reservations[k] = v
	}
	return c
}

func (m *memLending) InTx(ctx context.Context, fn func(tx LendingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.books, m.copies, m.borrowings, m.reservations, m.nextID =
			before.books, before.copies, before.borrowings, before.reservations, before.nextID
		return err
	}
	return nil
}

func (m *memLending) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.borrowings {
		if b.Status == model.BorrowingApproved && b.DueDate.Before(now) {
			b.Status = model.BorrowingOverdue
			m.borrowings[id] = b
			n++
		}
	}
	return n, nil
}

func (m *memLending) ListBorrowings(ctx context.Context, q repository.BorrowingQuery) ([]model.BorrowingDetail, error) {
	out := []model.BorrowingDetail{}
	for _, b := range m.borrowings {
		if q.MemberID != 0 && b.MemberID != q.MemberID {
			continue
		}
		for _, st := range q.Statuses {
			if b.Status == st {
				out = append(out, model.BorrowingDetail{Borrowing: b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLending) ListReservations(ctx context.Context, q repository.ReservationQuery) ([]model.ReservationDetail, error) {
	out := []model.ReservationDetail{}
	for _, r := range m.reservations {
		if q.MemberID != 0 && r.MemberID != q.MemberID {
			continue
		}
		for _, st := range q.Statuses {
			if r.Status == st {
				out = append(out, model.ReservationDetail{Reservation: r})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out, nil
}

// openPositions returns the queue positions of a book's open
// reservations in ascending order.
func (m *memLending) openPositions(bookID uint64) []uint32 {
	var out []uint32
	for _, r := range m.reservations {
		if r.BookID == bookID && r.Status.Open() {
			out = append(out, r.QueuePosition)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type memTx struct{ m *memLending }

func (t memTx) LockBook(ctx context.Context, id uint64) (*model.Book, error) {
	b, ok := t.m.books[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (t memTx) FindCopy(ctx context.Context, id uint64) (*model.BookCopy, error) {
	c, ok := t.m.copies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (t memTx) LockCopy(ctx context.Context, id uint64) (*model.BookCopy, error) {
	return t.FindCopy(ctx, id)
}

func (t memTx) LockFirstAvailableCopy(ctx context.Context, bookID uint64) (*model.BookCopy, error) {
	var best *model.BookCopy
	for _, c := range t.m.copies {
		if c.BookID == bookID && c.Status == model.CopyAvailable && (best == nil || c.CopyNumber < best.CopyNumber) {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

func (t memTx) SetCopyStatus(ctx context.Context, id uint64, s model.CopyStatus) error {
	c := t.m.copies[id]
	c.Status = s
	t.m.copies[id] = c
	return nil
}

func (t memTx) HasOpenBorrowing(ctx context.Context, memberID, copyID uint64) (bool, error) {
	for _, b := range t.m.borrowings {
		if b.MemberID == memberID && b.BookCopyID == copyID && b.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) CreateBorrowing(ctx context.Context, b *model.Borrowing) error {
	t.m.nextID++
	b.ID = t.m.nextID
	t.m.borrowings[b.ID] = *b
	return nil
}

func (t memTx) LockBorrowing(ctx context.Context, id uint64) (*model.Borrowing, error) {
	b, ok := t.m.borrowings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (t memTx) SaveBorrowing(ctx context.Context, b *model.Borrowing) error {
	t.m.borrowings[b.ID] = *b
	return nil
}

func (t memTx) HasOpenReservation(ctx context.Context, memberID, bookID uint64) (bool, error) {
	for _, r := range t.m.reservations {
		if r.MemberID == memberID && r.BookID == bookID && r.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) MaxQueuePosition(ctx context.Context, bookID uint64) (uint32, error) {
	var top uint32
	for _, p := range t.m.openPositions(bookID) {
		if p > top {
			top = p
		}
	}
	return top, nil
}

func (t memTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	t.m.nextID++
	r.ID = t.m.nextID
	t.m.reservations[r.ID] = *r
	return nil
}

func (t memTx) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (t memTx) LockReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.FindReservation(ctx, id)
}

func (t memTx) LockNextActiveReservation(ctx context.Context, bookID uint64) (*model.Reservation, error) {
	var best *model.Reservation
	for _, r := range t.m.reservations {
		if r.BookID == bookID && r.Status == model.ReservationActive && r.AssignedCopyID == nil &&
			(best == nil || r.QueuePosition < best.QueuePosition) {
			rr := r
			best = &rr
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

func (t memTx) SetReservationStatus(ctx context.Context, id uint64, s model.ReservationStatus) error {
	r := t.m.reservations[id]
	r.Status = s
	t.m.reservations[id] = r
	return nil
}

func (t memTx) AssignCopy(ctx context.Context, reservationID, copyID uint64) error {
	r := t.m.reservations[reservationID]
	r.AssignedCopyID = &copyID
	t.m.reservations[reservationID] = r
	return nil
}

func (t memTx) CompactQueue(ctx context.Context, bookID uint64, after uint32) (int64, error) {
	var n int64
	for id, r := range t.m.reservations {
		if r.BookID == bookID && r.Status.Open() && r.QueuePosition > after {
			r.QueuePosition--
			t.m.reservations[id] = r
			n++
		}
	}
	return n, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.LendingEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.LendingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
