package gateway

import (
	"context"

	"library-storefront/apiclient"
	"library-storefront/library"
)

// Authors wraps GET /authors.
type Authors struct {
	c *apiclient.Client
}

func (a *Authors) List(ctx context.Context, p Paging) (library.Page[library.Author], error) {
	var page library.Page[library.Author]
	err := a.c.Get(ctx, "authors.list", "/authors", p.values(), &page)
	return page, err
}

func (a *Authors) Get(ctx context.Context, id int64) (library.Author, error) {
	var author library.Author
	err := a.c.Get(ctx, "authors.get", idPath("/authors", id), nil, &author)
	return author, err
}

// Categories wraps GET /categories.
type Categories struct {
	c *apiclient.Client
}

func (cs *Categories) List(ctx context.Context) ([]library.Category, error) {
	var categories []library.Category
	err := cs.c.Get(ctx, "categories.list", "/categories", nil, &categories)
	return categories, err
}

func (cs *Categories) Get(ctx context.Context, id int64) (library.Category, error) {
	var category library.Category
	err := cs.c.Get(ctx, "categories.get", idPath("/categories", id), nil, &category)
	return category, err
}
