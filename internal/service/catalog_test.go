package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogMock(t *testing.T) (*CatalogService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalogService(db), mock
}

var categoryCols = []string{"id", "name", "description", "created_at", "updated_at"}

func TestAddCopyContinuesFromHighWaterMark(t *testing.T) {
	svc, mock := newCatalogMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM books WHERE id = \? FOR UPDATE`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(3, "T", "A", "I", nil, 1, 4, now, now))
	mock.ExpectExec(`INSERT INTO book_copies`).WithArgs(3, 5, "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectQuery(`FROM book_copies WHERE id = \?`).WithArgs(12).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(12, 3, 5, "AVAILABLE", now, now))
	mock.ExpectExec(`UPDATE books SET last_copy_number = \?`).WithArgs(5, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := svc.AddCopy(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), c.CopyNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCopyUnknownBook(t *testing.T) {
	svc, mock := newCatalogMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM books WHERE id = \? FOR UPDATE`).WithArgs(3).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.AddCopy(context.Background(), 3)
	assert.True(t, IsKind(err, KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveCopyOnlyWhenAvailable(t *testing.T) {
	svc, mock := newCatalogMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM book_copies WHERE id = \? FOR UPDATE`).WithArgs(12).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(12, 3, 5, "BORROWED", now, now))
	mock.ExpectRollback()
	err := svc.RemoveCopy(context.Background(), 12)
	assert.True(t, IsKind(err, KindInvalidState))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM book_copies WHERE id = \? FOR UPDATE`).WithArgs(12).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(12, 3, 5, "AVAILABLE", now, now))
	mock.ExpectExec(`DELETE FROM book_copies WHERE id = \?`).WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, svc.RemoveCopy(context.Background(), 12))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBookBlockedByOpenLending(t *testing.T) {
	svc, mock := newCatalogMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM books WHERE id = \? FOR UPDATE`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(3, "T", "A", "I", nil, 1, 2, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM borrowings br`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reservations`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectRollback()

	err := svc.DeleteBook(context.Background(), 3)
	assert.True(t, IsKind(err, KindConflict))
	assert.EqualError(t, err, "Cannot delete book with active reservations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	svc, mock := newCatalogMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM categories WHERE name = \?`).WithArgs("Fiction").
		WillReturnRows(sqlmock.NewRows(categoryCols).AddRow(1, "Fiction", nil, now, now))

	_, err := svc.CreateCategory(context.Background(), "  Fiction ", nil)
	assert.True(t, IsKind(err, KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCategoryWithBooks(t *testing.T) {
	svc, mock := newCatalogMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM categories WHERE id = \?`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(categoryCols).AddRow(1, "Fiction", nil, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books WHERE category_id = \?`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))

	err := svc.DeleteCategory(context.Background(), 1)
	assert.EqualError(t, err, "Cannot delete category with associated books")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookSkipsUnchangedISBNCheck(t *testing.T) {
	svc, mock := newCatalogMock(t)
	now := time.Now()
	title := "New title"
	isbn := "978-1"

	mock.ExpectQuery(`FROM books WHERE id = \?`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(3, "Old", "A", "978-1", nil, 1, 0, now, now))
	mock.ExpectExec(`UPDATE books SET title = \?`).WithArgs("New title", "A", "978-1", nil, 1, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM books b\s+JOIN categories c ON c.id = b.category_id\s+WHERE b.id = \?`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, bookCols...), categoryCols...)).
			AddRow(3, "New title", "A", "978-1", nil, 1, 0, now, now, 1, "Fiction", nil, now, now))
	mock.ExpectQuery(`FROM book_copies WHERE book_id IN \(\?\)`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(7, 3, 1, "AVAILABLE", now, now).AddRow(8, 3, 2, "BORROWED", now, now))

	d, err := svc.UpdateBook(context.Background(), 3, BookPatch{Title: &title, ISBN: &isbn})
	require.NoError(t, err)
	assert.Equal(t, "New title", d.Title)
	assert.Equal(t, 2, d.TotalCopies)
	assert.Equal(t, 1, d.AvailableCopies)
	assert.Equal(t, 1, d.BorrowedCopies)
	assert.NoError(t, mock.ExpectationsWereMet())
}
