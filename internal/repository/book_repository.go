package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-reservation/internal/model"
)

// BookRepo provides CRUD and search operations for books.  Copies are
// managed by CopyRepo but loaded here for the detail views.
type BookRepo struct {
	db     *sql.DB
	copies *CopyRepo
}

// NewBookRepo returns a new BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db, copies: NewCopyRepo(db)} }

const bookColumns = "id, title, author, isbn, description, category_id, last_copy_number, created_at, updated_at"

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	var (
		b    model.Book
		desc sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &desc, &b.CategoryID,
		&b.LastCopyNumber, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Description = nullString(desc)
	return &b, nil
}

// Create inserts a book and fills in its generated fields.
// ErrDuplicate when the ISBN is taken.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO books (title, author, isbn, description, category_id) VALUES (?, ?, ?, ?, ?)",
		b.Title, b.Author, b.ISBN, b.Description, b.CategoryID)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = *got
	return nil
}

// GetByID returns a book or sql.ErrNoRows.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ?", id))
}

// GetByISBN returns a book or sql.ErrNoRows.
func (r *BookRepo) GetByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE isbn = ?", isbn))
}

// LockTx reads a book row with an exclusive lock held until tx ends.
// Lending operations that touch a book's reservation queue or copy
// numbering take this lock first so they serialise per book.
func (r *BookRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Book, error) {
	return scanBook(tx.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ? FOR UPDATE", id))
}

// SetLastCopyNumberTx records the copy-number high-water mark.
func (r *BookRepo) SetLastCopyNumberTx(ctx context.Context, tx *sql.Tx, id uint64, n uint32) error {
	_, err := tx.ExecContext(ctx, "UPDATE books SET last_copy_number = ? WHERE id = ?", n, id)
	return err
}

// Update overwrites the editable columns of b.  ErrDuplicate when the
// ISBN is taken.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE books SET title = ?, author = ?, isbn = ?, description = ?, category_id = ? WHERE id = ?",
		b.Title, b.Author, b.ISBN, b.Description, b.CategoryID, b.ID)
	return translate(err)
}

// CountOpenLendingTx counts open borrowings on the book's copies and
// open reservations on the book.
func (r *BookRepo) CountOpenLendingTx(ctx context.Context, tx *sql.Tx, id uint64) (borrowings, reservations int, err error) {
	const bq = `SELECT COUNT(*) FROM borrowings br
                JOIN book_copies bc ON bc.id = br.book_copy_id
                WHERE bc.book_id = ? AND br.status IN ('PENDING','APPROVED')`
	if err = tx.QueryRowContext(ctx, bq, id).Scan(&borrowings); err != nil {
		return 0, 0, err
	}
	const rq = `SELECT COUNT(*) FROM reservations WHERE book_id = ? AND status IN ('PENDING','ACTIVE')`
	if err = tx.QueryRowContext(ctx, rq, id).Scan(&reservations); err != nil {
		return 0, 0, err
	}
	return borrowings, reservations, nil
}

// DeleteTx removes a book.  Its copies, and the closed borrowings and
// reservations that reference them, go with it through ON DELETE CASCADE.
func (r *BookRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	return err
}

// BookFilter narrows List.  Zero values mean no filtering.
type BookFilter struct {
	Search     string // case-insensitive substring of title or author
	CategoryID uint64
}

// List returns books with their category and copies, ordered by title.
func (r *BookRepo) List(ctx context.Context, f BookFilter) ([]model.BookDetail, error) {
	q := `SELECT b.id, b.title, b.author, b.isbn, b.description, b.category_id, b.last_copy_number,
                 b.created_at, b.updated_at,
                 c.id, c.name, c.description, c.created_at, c.updated_at
          FROM books b
          JOIN categories c ON c.id = b.category_id`
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		where = append(where, "(LOWER(b.title) LIKE ? OR LOWER(b.author) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if f.CategoryID != 0 {
		where = append(where, "b.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.title ASC, b.id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookDetail, 0)
	ids := make([]uint64, 0)
	for rows.Next() {
		d, err := scanBookDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	copies, err := r.copies.ListByBooks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Copies = copies[out[i].ID]
		if out[i].Copies == nil {
			out[i].Copies = []model.BookCopy{}
		}
		out[i].Tally()
	}
	return out, nil
}

// GetDetail returns one book with category, copies and copy counts.
// sql.ErrNoRows when the book does not exist.
func (r *BookRepo) GetDetail(ctx context.Context, id uint64) (*model.BookDetail, error) {
	const q = `SELECT b.id, b.title, b.author, b.isbn, b.description, b.category_id, b.last_copy_number,
                      b.created_at, b.updated_at,
                      c.id, c.name, c.description, c.created_at, c.updated_at
               FROM books b
               JOIN categories c ON c.id = b.category_id
               WHERE b.id = ?`
	d, err := scanBookDetail(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	copies, err := r.copies.ListByBooks(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	d.Copies = copies[id]
	if d.Copies == nil {
		d.Copies = []model.BookCopy{}
	}
	d.Tally()
	return d, nil
}

func scanBookDetail(row interface{ Scan(...any) error }) (*model.BookDetail, error) {
	var (
		d       model.BookDetail
		c       model.Category
		desc    sql.NullString
		catDesc sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Title, &d.Author, &d.ISBN, &desc, &d.CategoryID, &d.LastCopyNumber,
		&d.CreatedAt, &d.UpdatedAt,
		&c.ID, &c.Name, &catDesc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	d.Description = nullString(desc)
	c.Description = nullString(catDesc)
	d.Category = &c
	return &d, nil
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
