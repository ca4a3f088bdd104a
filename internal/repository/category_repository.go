package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-reservation/internal/model"
)

// CategoryRepo provides CRUD operations for categories.
type CategoryRepo struct{ db *sql.DB }

// NewCategoryRepo returns a new CategoryRepo bound to the given database.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryColumns = "id, name, description, created_at, updated_at"

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	var (
		c    model.Category
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = nullString(desc)
	return &c, nil
}

// Create inserts a category.  ErrDuplicate when the name is taken.
func (r *CategoryRepo) Create(ctx context.Context, name string, description *string) (*model.Category, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, description) VALUES (?, ?)", strings.TrimSpace(name), description)
	if err != nil {
		return nil, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a category or sql.ErrNoRows.
func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (*model.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
}

// GetByName returns a category or sql.ErrNoRows.
func (r *CategoryRepo) GetByName(ctx context.Context, name string) (*model.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE name = ?", strings.TrimSpace(name)))
}

// List returns all categories ordered by name.
func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update overwrites name and description.  ErrDuplicate when the new
// name is taken.
func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, description = ? WHERE id = ?", c.Name, c.Description, c.ID)
	return translate(err)
}

// CountBooks returns how many books reference the category.
func (r *CategoryRepo) CountBooks(ctx context.Context, id uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books WHERE category_id = ?", id).Scan(&n)
	return n, err
}

// Delete removes a category.  Returns sql.ErrNoRows when nothing was deleted.
func (r *CategoryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
