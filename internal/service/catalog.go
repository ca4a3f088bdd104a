package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/library-reservation/internal/database"
	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/repository"
)

// CatalogService manages categories, books and book copies.  Copy
// statuses belong to the lending lifecycle; the catalog only creates
// copies and removes those that are on the shelf.
type CatalogService struct {
	db         *sql.DB
	categories *repository.CategoryRepo
	books      *repository.BookRepo
	copies     *repository.CopyRepo
}

func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{
		db:         db,
		categories: repository.NewCategoryRepo(db),
		books:      repository.NewBookRepo(db),
		copies:     repository.NewCopyRepo(db),
	}
}

// CategoryPatch is a partial category update.  Nil fields are kept.
type CategoryPatch struct {
	Name        *string
	Description *string
}

// BookInput holds the fields of a new book.
type BookInput struct {
	Title       string
	Author      string
	ISBN        string
	Description *string
	CategoryID  uint64
}

// BookPatch is a partial book update.  Nil fields are kept.
type BookPatch struct {
	Title       *string
	Author      *string
	ISBN        *string
	Description *string
	CategoryID  *uint64
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string, description *string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newErr(KindValidation, "Category name is required")
	}
	if _, err := s.categories.GetByName(ctx, name); err == nil {
		return nil, newErr(KindConflict, "Category already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	c, err := s.categories.Create(ctx, name, description)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, newErr(KindConflict, "Category already exists")
	}
	return c, err
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

// UpdateCategory applies p.  Name uniqueness is checked only when the
// name actually changes.
func (s *CatalogService) UpdateCategory(ctx context.Context, id uint64, p CategoryPatch) (*model.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Category not found")
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, newErr(KindValidation, "Category name is required")
		}
		if name != c.Name {
			if _, err := s.categories.GetByName(ctx, name); err == nil {
				return nil, newErr(KindConflict, "Category name already exists")
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			c.Name = name
		}
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if err := s.categories.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newErr(KindConflict, "Category name already exists")
		}
		return nil, err
	}
	return s.categories.GetByID(ctx, id)
}

// DeleteCategory removes a category no book refers to.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint64) error {
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		return notFound(err, "Category not found")
	}
	n, err := s.categories.CountBooks(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return newErr(KindConflict, "Cannot delete category with associated books")
	}
	return notFound(s.categories.Delete(ctx, id), "Category not found")
}

func (s *CatalogService) CreateBook(ctx context.Context, in BookInput) (*model.BookDetail, error) {
	in.Title, in.Author, in.ISBN = strings.TrimSpace(in.Title), strings.TrimSpace(in.Author), strings.TrimSpace(in.ISBN)
	if in.Title == "" || in.Author == "" || in.ISBN == "" || in.CategoryID == 0 {
		return nil, newErr(KindValidation, "Title, author, ISBN and category are required")
	}
	if _, err := s.books.GetByISBN(ctx, in.ISBN); err == nil {
		return nil, newErr(KindConflict, "Book with this ISBN already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, notFound(err, "Category not found")
	}
	b := &model.Book{Title: in.Title, Author: in.Author, ISBN: in.ISBN, Description: in.Description, CategoryID: in.CategoryID}
	if err := s.books.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newErr(KindConflict, "Book with this ISBN already exists")
		}
		return nil, err
	}
	slog.Info("book created", "book_id", b.ID, "isbn", b.ISBN)
	return s.books.GetDetail(ctx, b.ID)
}

func (s *CatalogService) ListBooks(ctx context.Context) ([]model.BookDetail, error) {
	return s.books.List(ctx, repository.BookFilter{})
}

// GetBook returns a book with its category and copies.
func (s *CatalogService) GetBook(ctx context.Context, id uint64) (*model.BookDetail, error) {
	d, err := s.books.GetDetail(ctx, id)
	if err != nil {
		return nil, notFound(err, "Book not found")
	}
	return d, nil
}

// SearchBooks matches title or author case-insensitively, optionally
// within one category.
func (s *CatalogService) SearchBooks(ctx context.Context, search string, categoryID uint64) ([]model.BookDetail, error) {
	return s.books.List(ctx, repository.BookFilter{Search: search, CategoryID: categoryID})
}

// UpdateBook applies p.  ISBN uniqueness and category existence are
// checked only for values that change.
func (s *CatalogService) UpdateBook(ctx context.Context, id uint64, p BookPatch) (*model.BookDetail, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Book not found")
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, newErr(KindValidation, "Title must not be empty")
		}
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		if strings.TrimSpace(*p.Author) == "" {
			return nil, newErr(KindValidation, "Author must not be empty")
		}
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.ISBN != nil {
		isbn := strings.TrimSpace(*p.ISBN)
		if isbn == "" {
			return nil, newErr(KindValidation, "ISBN must not be empty")
		}
		if isbn != b.ISBN {
			if _, err := s.books.GetByISBN(ctx, isbn); err == nil {
				return nil, newErr(KindConflict, "Book with this ISBN already exists")
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			b.ISBN = isbn
		}
	}
	if p.CategoryID != nil && *p.CategoryID != b.CategoryID {
		if _, err := s.categories.GetByID(ctx, *p.CategoryID); err != nil {
			return nil, notFound(err, "Category not found")
		}
		b.CategoryID = *p.CategoryID
	}
	if p.Description != nil {
		b.Description = p.Description
	}
	if err := s.books.Update(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newErr(KindConflict, "Book with this ISBN already exists")
		}
		return nil, err
	}
	return s.books.GetDetail(ctx, id)
}

// DeleteBook removes a book and its copies.  It is refused while any
// copy has an open borrowing or the book has open reservations.
func (s *CatalogService) DeleteBook(ctx context.Context, id uint64) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.books.LockTx(ctx, tx, id); err != nil {
			return notFound(err, "Book not found")
		}
		borrowings, reservations, err := s.books.CountOpenLendingTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if borrowings > 0 {
			return newErr(KindConflict, "Cannot delete book with active borrowings")
		}
		if reservations > 0 {
			return newErr(KindConflict, "Cannot delete book with active reservations")
		}
		return s.books.DeleteTx(ctx, tx, id)
	})
}

// AddCopy creates the next AVAILABLE copy of a book.  Copy numbers
// continue from the highest number ever assigned, so a removed copy's
// number is never handed out again.
func (s *CatalogService) AddCopy(ctx context.Context, bookID uint64) (*model.BookCopy, error) {
	var out *model.BookCopy
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := s.books.LockTx(ctx, tx, bookID)
		if err != nil {
			return notFound(err, "Book not found")
		}
		next := b.LastCopyNumber + 1
		c, err := s.copies.CreateTx(ctx, tx, bookID, next)
		if err != nil {
			return err
		}
		if err := s.books.SetLastCopyNumberTx(ctx, tx, bookID, next); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("book copy added", "book_id", bookID, "copy_id", out.ID, "copy_number", out.CopyNumber)
	return out, nil
}

// RemoveCopy deletes a copy that is currently on the shelf.
func (s *CatalogService) RemoveCopy(ctx context.Context, copyID uint64) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.copies.GetForUpdateTx(ctx, tx, copyID)
		if err != nil {
			return notFound(err, "Book copy not found")
		}
		if c.Status != model.CopyAvailable {
			return newErr(KindInvalidState, "Cannot remove book copy that is not available")
		}
		return s.copies.DeleteTx(ctx, tx, copyID)
	})
}
