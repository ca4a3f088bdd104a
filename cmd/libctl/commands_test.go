package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/service"
)

type fakeCatalog struct {
	categories []model.Category
	isbns      map[string]bool
	copies     map[uint64]int
	nextID     uint64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{isbns: map[string]bool{}, copies: map[uint64]int{}}
}

func (f *fakeCatalog) CreateCategory(_ context.Context, name string, _ *string) (*model.Category, error) {
	for _, c := range f.categories {
		if c.Name == name {
			return nil, &service.Error{Kind: service.KindConflict, Msg: "Category already exists"}
		}
	}
	f.nextID++
	c := model.Category{ID: f.nextID, Name: name}
	f.categories = append(f.categories, c)
	return &c, nil
}

func (f *fakeCatalog) ListCategories(context.Context) ([]model.Category, error) {
	return f.categories, nil
}

func (f *fakeCatalog) CreateBook(_ context.Context, in service.BookInput) (*model.BookDetail, error) {
	if f.isbns[in.ISBN] {
		return nil, &service.Error{Kind: service.KindConflict, Msg: "Book with this ISBN already exists"}
	}
	f.isbns[in.ISBN] = true
	f.nextID++
	d := &model.BookDetail{}
	d.ID = f.nextID
	return d, nil
}

func (f *fakeCatalog) AddCopy(_ context.Context, bookID uint64) (*model.BookCopy, error) {
	f.copies[bookID]++
	return &model.BookCopy{BookID: bookID, CopyNumber: uint32(f.copies[bookID])}, nil
}

func TestSeedIsIdempotent(t *testing.T) {
	cat := newFakeCatalog()
	var out bytes.Buffer
	require.NoError(t, seed(context.Background(), cat, &out))
	require.NoError(t, seed(context.Background(), cat, &out))

	assert.Len(t, cat.categories, len(seedCategories))
	assert.Len(t, cat.isbns, len(seedBooks))
	total := 0
	for _, n := range cat.copies {
		total += n
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, len(seedBooks), strings.Count(out.String(), "skip "))
}

func TestReadPasswordFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	pw, err := readPassword(strings.NewReader("  s3cret \nignored\n"), &prompt, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Empty(t, prompt.String())

	pw, err = readPassword(strings.NewReader("no-newline"), &prompt, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"migrate", "seed", "create-admin", "sweep-overdue", "consume-events"} {
		assert.Contains(t, names, want)
	}
}
