package gateway

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"library-storefront/apiclient"
	"library-storefront/library"
)

// BookFilter narrows GET /books.
type BookFilter struct {
	Paging
	CategoryID int64
	AuthorID   int64
	Query      string
	Sort       string
}

// Values encodes the filter as query parameters. Unset fields are omitted so that
// equal filters always encode identically.
func (f BookFilter) Values() url.Values {
	q := f.Paging.values()
	if f.CategoryID > 0 {
		q.Set("categoryId", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.AuthorID > 0 {
		q.Set("authorId", strconv.FormatInt(f.AuthorID, 10))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q.Set("q", s)
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	return q
}

// Recommendation orders GET /books/recommend.
type Recommendation string

const (
	ByPopular Recommendation = "popular"
	ByRating  Recommendation = "rating"
)

// Books wraps the public catalog endpoints.
type Books struct {
	c *apiclient.Client
}

func (b *Books) List(ctx context.Context, f BookFilter) (library.Page[library.Book], error) {
	var page library.Page[library.Book]
	err := b.c.Get(ctx, "books.list", "/books", f.Values(), &page)
	return page, err
}

func (b *Books) Get(ctx context.Context, id int64) (library.Book, error) {
	var book library.Book
	err := b.c.Get(ctx, "books.get", idPath("/books", id), nil, &book)
	return book, err
}

// Search runs a free-text query. An empty query returns an empty page without a call.
func (b *Books) Search(ctx context.Context, q string, p Paging) (library.Page[library.Book], error) {
	var page library.Page[library.Book]
	q = strings.TrimSpace(q)
	if q == "" {
		return page, nil
	}
	params := p.values()
	params.Set("q", q)
	err := b.c.Get(ctx, "books.search", "/books/search", params, &page)
	return page, err
}

func (b *Books) Recommend(ctx context.Context, by Recommendation, limit int) ([]library.Book, error) {
	params := url.Values{}
	if by == "" {
		by = ByPopular
	}
	params.Set("by", string(by))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var books []library.Book
	err := b.c.Get(ctx, "books.recommend", "/books/recommend", params, &books)
	return books, err
}

// ByAuthor lists the books of one author.
func (b *Books) ByAuthor(ctx context.Context, authorID int64, p Paging) (library.Page[library.Book], error) {
	var page library.Page[library.Book]
	err := b.c.Get(ctx, "authors.books", idPath("/authors", authorID, "books"), p.values(), &page)
	return page, err
}
