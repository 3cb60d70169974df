package query

import "context"

// Resource names a kind of server entity that mutations change.
type Resource string

const (
	ResourceBooks      Resource = "books"
	ResourceAuthors    Resource = "authors"
	ResourceCategories Resource = "categories"
	ResourceLoans      Resource = "loans"
	ResourceUsers      Resource = "users"
	ResourceProfile    Resource = "profile"
	ResourceReviews    Resource = "reviews"
)

// Cache key prefixes. Readers build their keys from these so the dependency
// table below can find them.
var (
	BooksKey      = NewKey("books")
	BookListKey   = NewKey("books", "list")
	BookDetailKey = NewKey("books", "detail")
	SearchKey     = NewKey("books", "search")
	RecommendKey  = NewKey("books", "recommend")

	AuthorsKey      = NewKey("authors")
	AuthorListKey   = NewKey("authors", "list")
	AuthorDetailKey = NewKey("authors", "detail")
	AuthorBooksKey  = NewKey("authors", "books")

	CategoriesKey     = NewKey("categories")
	CategoryListKey   = NewKey("categories", "list")
	CategoryDetailKey = NewKey("categories", "detail")

	ProfileKey   = NewKey("me", "profile")
	MyLoansKey   = NewKey("me", "loans")
	MyReviewsKey = NewKey("me", "reviews")

	OverviewKey   = NewKey("admin", "overview")
	AdminLoansKey = NewKey("admin", "loans")
	AdminUsersKey = NewKey("admin", "users")
)

// Dependency lists what a successful mutation of one resource makes stale.
type Dependency struct {
	// Lists are prefixes of list keys, matched with any filter parameters.
	Lists []Key
	// Detail is the prefix of the resource's detail key; the mutated id is appended.
	Detail *Key
	// Aggregates are derived views computed from the resource.
	Aggregates []Key
}

// Dependencies maps each resource to its dependents.
type Dependencies map[Resource]Dependency

func keyRef(k Key) *Key { return &k }

// DefaultDependencies is the invalidation table for the library API.
var DefaultDependencies = Dependencies{
	ResourceBooks: {
		Lists:      []Key{BookListKey, SearchKey, RecommendKey, AuthorBooksKey, CategoriesKey},
		Detail:     keyRef(BookDetailKey),
		Aggregates: []Key{OverviewKey},
	},
	ResourceAuthors: {
		// Book records embed the author name.
		Lists:      []Key{AuthorListKey, BooksKey},
		Detail:     keyRef(AuthorDetailKey),
		Aggregates: []Key{OverviewKey},
	},
	ResourceCategories: {
		Lists:      []Key{CategoryListKey, BookListKey},
		Detail:     keyRef(CategoryDetailKey),
		Aggregates: []Key{OverviewKey},
	},
	ResourceLoans: {
		// Loans change stock, and so book availability everywhere.
		Lists:      []Key{MyLoansKey, AdminLoansKey, BooksKey, AuthorBooksKey},
		Aggregates: []Key{OverviewKey},
	},
	ResourceUsers: {
		Lists:      []Key{AdminUsersKey},
		Aggregates: []Key{OverviewKey, ProfileKey},
	},
	ResourceProfile: {
		Lists: []Key{ProfileKey},
	},
	ResourceReviews: {
		Lists: []Key{MyReviewsKey, BooksKey},
	},
}

// Targets returns the key prefixes a mutation of r invalidates. ids are the
// mutated entities, when known.
func (d Dependencies) Targets(r Resource, ids ...int64) []Key {
	dep, ok := d[r]
	if !ok {
		return nil
	}
	targets := make([]Key, 0, len(dep.Lists)+len(dep.Aggregates)+len(ids))
	targets = append(targets, dep.Lists...)
	if dep.Detail != nil {
		for _, id := range ids {
			targets = append(targets, dep.Detail.ID(id))
		}
	}
	return append(targets, dep.Aggregates...)
}

// Invalidate marks every entry the dependency table lists for r as stale and
// returns how many entries were marked. Readers get the old data once more
// while it is refetched.
func (c *Cache) Invalidate(r Resource, ids ...int64) int {
	return c.InvalidateKeys(c.deps.Targets(r, ids...)...)
}

// InvalidateKeys marks every entry whose key has one of prefixes as stale.
func (c *Cache) InvalidateKeys(prefixes ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		for _, p := range prefixes {
			if e.key.HasPrefix(p) {
				e.generation++
				if !e.invalidated {
					e.invalidated = true
					n++
				}
				break
			}
		}
	}
	return n
}

// Remove drops every entry whose key has one of prefixes, e.g. on logout.
func (c *Cache) Remove(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		for _, p := range prefixes {
			if e.key.HasPrefix(p) {
				delete(c.entries, k)
				break
			}
		}
	}
}

// Mutate runs fn and, only when it succeeds, invalidates the dependents of r
// before returning.
func Mutate[T any](ctx context.Context, c *Cache, r Resource, fn func(context.Context) (T, error), ids ...int64) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	c.Invalidate(r, ids...)
	return v, nil
}
