package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-storefront/apiclient"
	"library-storefront/apitest"
	"library-storefront/cart"
	"library-storefront/gateway"
	"library-storefront/library"
	"library-storefront/query"
	"library-storefront/session"
	"library-storefront/storage"
	"library-storefront/storefront"
	"library-storefront/validation"
)

const sampleCSV = `title,author,category,year,stock
Dune,Frank Herbert,Science Fiction,1965,3
Emma, Jane Austen ,,1815,
Dune Messiah,frank herbert,science fiction,1969,1
`

func TestReadCSV(t *testing.T) {
	records, err := readCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, record{Title: "Dune", Author: "Frank Herbert", Category: "Science Fiction", PublishedYear: 1965, Stock: 3}, records[0])
	assert.Equal(t, "Jane Austen", records[1].Author)
	assert.Equal(t, 1, records[1].Stock, "stock defaults to one copy")
}

func TestReadCSVErrors(t *testing.T) {
	_, err := readCSV(strings.NewReader("title,category\nDune,Fiction\n"))
	assert.ErrorContains(t, err, `missing "author" column`)

	_, err = readCSV(strings.NewReader("title,author,year\nDune,Frank Herbert,soon\n"))
	assert.ErrorContains(t, err, "line 2: invalid year")
}

func TestReadRecordsByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"title":"Dune","author":"Frank Herbert","stock":2}]`), 0o600))

	records, err := readRecords(jsonPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Stock)

	txtPath := filepath.Join(dir, "books.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("Dune"), 0o600))
	_, err = readRecords(txtPath)
	assert.ErrorContains(t, err, "unsupported file type")
}

func newManager(t *testing.T) (*storefront.Manager, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	store := storage.NewMemory()
	key, err := session.LoadOrCreateKey(t.TempDir())
	require.NoError(t, err)
	sess := session.New(store, key, nil)
	client, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, RPS: 1000, Burst: 1000, Tokens: sess})
	require.NoError(t, err)
	cache := query.New()
	t.Cleanup(func() { _ = cache.Close() })
	return storefront.New(gateway.New(client, validation.New()), cache, cart.New(store, nil), sess, nil), srv
}

func TestImporterReusesAuthorsAndCategories(t *testing.T) {
	mgr, srv := newManager(t)
	ctx := context.Background()
	herbert := srv.AddAuthor(library.Author{Name: "Frank Herbert"})
	srv.AddBook(library.Book{Title: "Dune Messiah", Author: herbert.Name, AuthorID: herbert.ID, Stock: 1})

	records, err := readCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	im, err := newImporter(ctx, mgr, "General")
	require.NoError(t, err)
	sum := im.run(ctx, records)

	assert.Equal(t, summary{imported: 2, skipped: 1}, sum)
	assert.Equal(t, 1, srv.Calls("POST /admin/authors"), "only Jane Austen is new")
	assert.Equal(t, 2, srv.Calls("POST /admin/categories"), "Science Fiction and General")
	assert.Equal(t, herbert.ID, im.authors["frank herbert"])
}
