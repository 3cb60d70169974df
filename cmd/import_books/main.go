// Command import_books bulk-loads a catalog file into the library through the
// admin API. Authors and categories that do not exist yet are created first.
//
// Usage:
//
//	library login
//	go run ./cmd/import_books --file books.csv
//
// CSV files need a header row with at least title and author. JSON files hold
// an array of objects with the same field names.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/pflag"

	"library-storefront/apiclient"
	"library-storefront/config"
	"library-storefront/di"
	"library-storefront/gateway"
	"library-storefront/storefront"
)

const pageSize = 100

// record is one book in the import file.
type record struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Category      string `json:"category"`
	ISBN          string `json:"isbn"`
	PublishedYear int    `json:"publishedYear"`
	Stock         int    `json:"stock"`
	Description   string `json:"description"`
	CoverURL      string `json:"coverImage"`
}

func main() {
	fs := pflag.NewFlagSet("import_books", pflag.ExitOnError)
	config.RegisterFlags(fs)
	file := fs.String("file", "", "CSV or JSON file to import")
	category := fs.String("default-category", "General", "Category for rows without one")
	_ = fs.Parse(os.Args[1:])

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: import_books --file books.csv")
		os.Exit(2)
	}

	records, err := readRecords(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *file, err)
		os.Exit(1)
	}

	injector := di.NewContainer(fs)
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	mgr, err := do.Invoke[*storefront.Manager](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting: %v\n", err)
		os.Exit(1)
	}
	if !mgr.Authenticated() {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'library login' with an administrator account first.")
		os.Exit(1)
	}

	ctx := context.Background()
	im, err := newImporter(ctx, mgr, *category)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Importing %d book(s) from %s...\n", len(records), *file)
	sum := im.run(ctx, records)

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", sum.imported)
	fmt.Printf("Already present: %d\n", sum.skipped)
	fmt.Printf("Errors: %d\n", sum.failed)
}

// readRecords picks the decoder by file extension.
func readRecords(path string) ([]record, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var records []record
		if err := json.NewDecoder(f).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return records, nil
	case ".csv":
		return readCSV(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q (use .csv or .json)", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"title", "author"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var records []record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(name string) string {
			if i, ok := cols[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		rec := record{
			Title:       get("title"),
			Author:      get("author"),
			Category:    get("category"),
			ISBN:        get("isbn"),
			Description: get("description"),
			CoverURL:    get("cover"),
			Stock:       1,
		}
		if s := get("year"); s != "" {
			if rec.PublishedYear, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d: invalid year %q", line, s)
			}
		}
		if s := get("stock"); s != "" {
			if rec.Stock, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d: invalid stock %q", line, s)
			}
		}
		records = append(records, rec)
	}
}

type summary struct {
	imported, skipped, failed int
}

// importer remembers author and category ids by lower-cased name.
type importer struct {
	mgr             *storefront.Manager
	defaultCategory string
	authors         map[string]int64
	categories      map[string]int64
}

func newImporter(ctx context.Context, mgr *storefront.Manager, defaultCategory string) (*importer, error) {
	im := &importer{
		mgr:             mgr,
		defaultCategory: defaultCategory,
		authors:         make(map[string]int64),
		categories:      make(map[string]int64),
	}

	cats, err := mgr.Categories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cats.Data {
		im.categories[strings.ToLower(c.Name)] = c.ID
	}

	for page := 1; ; page++ {
		res, err := mgr.Authors(ctx, gateway.Paging{Page: page, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		for _, a := range res.Data.Items {
			im.authors[strings.ToLower(a.Name)] = a.ID
		}
		if page >= res.Data.TotalPages {
			break
		}
	}
	return im, nil
}

func (im *importer) run(ctx context.Context, records []record) summary {
	var sum summary
	for _, rec := range records {
		fmt.Printf("Importing: %s by %s... ", rec.Title, rec.Author)

		book, err := im.importOne(ctx, rec)
		switch {
		case apiclient.KindOf(err) == apiclient.KindDuplicate:
			fmt.Println("SKIPPED - already in the catalog")
			sum.skipped++
		case err != nil:
			fmt.Printf("ERROR - %s\n", apiclient.MessageOf(err))
			sum.failed++
		default:
			fmt.Printf("SUCCESS (ID: %d)\n", book)
			sum.imported++
		}
	}
	return sum
}

func (im *importer) importOne(ctx context.Context, rec record) (int64, error) {
	authorID, err := im.authorID(ctx, rec.Author)
	if err != nil {
		return 0, err
	}
	name := rec.Category
	if name == "" {
		name = im.defaultCategory
	}
	categoryID, err := im.categoryID(ctx, name)
	if err != nil {
		return 0, err
	}
	book, err := im.mgr.CreateBook(ctx, gateway.BookInput{
		Title:         rec.Title,
		AuthorID:      authorID,
		CategoryID:    categoryID,
		ISBN:          rec.ISBN,
		PublishedYear: rec.PublishedYear,
		Description:   rec.Description,
		CoverURL:      rec.CoverURL,
		Stock:         rec.Stock,
	})
	if err != nil {
		return 0, err
	}
	return book.ID, nil
}

func (im *importer) authorID(ctx context.Context, name string) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := im.authors[key]; ok {
		return id, nil
	}
	a, err := im.mgr.CreateAuthor(ctx, gateway.AuthorInput{Name: strings.TrimSpace(name)})
	if err != nil {
		return 0, fmt.Errorf("create author %q: %w", name, err)
	}
	im.authors[key] = a.ID
	return a.ID, nil
}

func (im *importer) categoryID(ctx context.Context, name string) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := im.categories[key]; ok {
		return id, nil
	}
	c, err := im.mgr.CreateCategory(ctx, gateway.CategoryInput{Name: strings.TrimSpace(name)})
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}
	im.categories[key] = c.ID
	return c.ID, nil
}
