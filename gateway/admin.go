package gateway

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"library-storefront/apiclient"
	"library-storefront/library"
	"library-storefront/validation"
)

// Capability names an admin endpoint group that a deployment may not implement.
type Capability string

const (
	CapBooks      Capability = "books"
	CapAuthors    Capability = "authors"
	CapCategories Capability = "categories"
	CapLoans      Capability = "loans"
	CapUsers      Capability = "users"
	CapOverview   Capability = "overview"
)

// Capabilities lists every admin capability.
var Capabilities = []Capability{CapBooks, CapAuthors, CapCategories, CapLoans, CapUsers, CapOverview}

// BookInput is the body of POST/PUT /admin/books.
type BookInput struct {
	Title         string `json:"title" validate:"required,max=255"`
	AuthorID      int64  `json:"authorId" validate:"required,gt=0"`
	CategoryID    int64  `json:"categoryId" validate:"required,gt=0"`
	ISBN          string `json:"isbn,omitempty" validate:"omitempty,min=10,max=17"`
	PublishedYear int    `json:"publishedYear,omitempty" validate:"omitempty,gte=1000,lte=9999"`
	Description   string `json:"description,omitempty"`
	CoverURL      string `json:"coverImage,omitempty" validate:"omitempty,url"`
	Stock         int    `json:"stock" validate:"gte=0"`
}

// AuthorInput is the body of POST/PUT /admin/authors.
type AuthorInput struct {
	Name string `json:"name" validate:"required,max=255"`
	Bio  string `json:"bio,omitempty"`
}

// CategoryInput is the body of POST/PUT /admin/categories.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// LoanStatusUpdate is the body of PATCH /admin/loans/{id}.
type LoanStatusUpdate struct {
	Status library.LoanStatus `json:"status" validate:"required,oneof=ACTIVE BORROWED RETURNED OVERDUE"`
}

// UserUpdate is the body of PATCH /admin/users/{id}.
type UserUpdate struct {
	Name string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Role string `json:"role,omitempty" validate:"omitempty,oneof=USER ADMIN"`
}

// LoanFilter narrows GET /admin/loans.
type LoanFilter struct {
	Paging
	Status library.LoanStatus
	UserID int64
}

func (f LoanFilter) Values() url.Values {
	q := f.Paging.values()
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.UserID > 0 {
		q.Set("userId", idString(f.UserID))
	}
	return q
}

// Admin wraps the admin-scoped endpoints. A capability the deployment lacks fails
// with KindNotImplemented before any request is made, so callers can tell
// "unsupported" apart from an empty result.
type Admin struct {
	c *apiclient.Client
	v *validation.Validator

	mu          sync.RWMutex
	unsupported map[Capability]bool
}

func newAdmin(c *apiclient.Client, v *validation.Validator, unsupported []Capability) *Admin {
	a := &Admin{c: c, v: v, unsupported: make(map[Capability]bool)}
	for _, capability := range unsupported {
		a.unsupported[capability] = true
	}
	return a
}

// Supports reports whether capability is believed to be implemented.
func (a *Admin) Supports(capability Capability) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.unsupported[capability]
}

// call guards fn behind capability and records a 501 as unsupported.
func (a *Admin) call(capability Capability, op string, fn func() error) error {
	if !a.Supports(capability) {
		return &apiclient.Error{Op: op, Kind: apiclient.KindNotImplemented, Message: "not supported by this server"}
	}
	err := fn()
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindNotImplemented {
		a.mu.Lock()
		a.unsupported[capability] = true
		a.mu.Unlock()
	}
	return err
}

func (a *Admin) Overview(ctx context.Context) (library.Overview, error) {
	var out library.Overview
	err := a.call(CapOverview, "admin.overview", func() error {
		return a.c.Get(ctx, "admin.overview", "/admin/overview", nil, &out)
	})
	return out, err
}

func (a *Admin) CreateBook(ctx context.Context, in BookInput) (library.Book, error) {
	var out library.Book
	err := a.call(CapBooks, "admin.books.create", func() error {
		if err := a.v.Validate("admin.books.create", in); err != nil {
			return err
		}
		return a.c.Post(ctx, "admin.books.create", "/admin/books", in, &out)
	})
	return out, err
}

func (a *Admin) UpdateBook(ctx context.Context, id int64, in BookInput) (library.Book, error) {
	var out library.Book
	err := a.call(CapBooks, "admin.books.update", func() error {
		if err := a.v.Validate("admin.books.update", in); err != nil {
			return err
		}
		return a.c.Put(ctx, "admin.books.update", idPath("/admin/books", id), in, &out)
	})
	return out, err
}

func (a *Admin) DeleteBook(ctx context.Context, id int64) error {
	return a.call(CapBooks, "admin.books.delete", func() error {
		return a.c.Delete(ctx, "admin.books.delete", idPath("/admin/books", id), nil)
	})
}

func (a *Admin) CreateAuthor(ctx context.Context, in AuthorInput) (library.Author, error) {
	var out library.Author
	err := a.call(CapAuthors, "admin.authors.create", func() error {
		if err := a.v.Validate("admin.authors.create", in); err != nil {
			return err
		}
		return a.c.Post(ctx, "admin.authors.create", "/admin/authors", in, &out)
	})
	return out, err
}

func (a *Admin) UpdateAuthor(ctx context.Context, id int64, in AuthorInput) (library.Author, error) {
	var out library.Author
	err := a.call(CapAuthors, "admin.authors.update", func() error {
		if err := a.v.Validate("admin.authors.update", in); err != nil {
			return err
		}
		return a.c.Put(ctx, "admin.authors.update", idPath("/admin/authors", id), in, &out)
	})
	return out, err
}

func (a *Admin) DeleteAuthor(ctx context.Context, id int64) error {
	return a.call(CapAuthors, "admin.authors.delete", func() error {
		return a.c.Delete(ctx, "admin.authors.delete", idPath("/admin/authors", id), nil)
	})
}

func (a *Admin) CreateCategory(ctx context.Context, in CategoryInput) (library.Category, error) {
	var out library.Category
	err := a.call(CapCategories, "admin.categories.create", func() error {
		if err := a.v.Validate("admin.categories.create", in); err != nil {
			return err
		}
		return a.c.Post(ctx, "admin.categories.create", "/admin/categories", in, &out)
	})
	return out, err
}

func (a *Admin) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (library.Category, error) {
	var out library.Category
	err := a.call(CapCategories, "admin.categories.update", func() error {
		if err := a.v.Validate("admin.categories.update", in); err != nil {
			return err
		}
		return a.c.Put(ctx, "admin.categories.update", idPath("/admin/categories", id), in, &out)
	})
	return out, err
}

func (a *Admin) DeleteCategory(ctx context.Context, id int64) error {
	return a.call(CapCategories, "admin.categories.delete", func() error {
		return a.c.Delete(ctx, "admin.categories.delete", idPath("/admin/categories", id), nil)
	})
}

func (a *Admin) Loans(ctx context.Context, f LoanFilter) (library.Page[library.Loan], error) {
	var out library.Page[library.Loan]
	err := a.call(CapLoans, "admin.loans.list", func() error {
		return a.c.Get(ctx, "admin.loans.list", "/admin/loans", f.Values(), &out)
	})
	return out, err
}

func (a *Admin) UpdateLoan(ctx context.Context, id int64, in LoanStatusUpdate) (library.Loan, error) {
	var out library.Loan
	err := a.call(CapLoans, "admin.loans.update", func() error {
		if err := a.v.Validate("admin.loans.update", in); err != nil {
			return err
		}
		return a.c.Patch(ctx, "admin.loans.update", idPath("/admin/loans", id), in, &out)
	})
	return out, err
}

func (a *Admin) Users(ctx context.Context, p Paging) (library.Page[library.User], error) {
	var out library.Page[library.User]
	err := a.call(CapUsers, "admin.users.list", func() error {
		return a.c.Get(ctx, "admin.users.list", "/admin/users", p.values(), &out)
	})
	return out, err
}

func (a *Admin) UpdateUser(ctx context.Context, id int64, in UserUpdate) (library.User, error) {
	var out library.User
	err := a.call(CapUsers, "admin.users.update", func() error {
		if err := a.v.Validate("admin.users.update", in); err != nil {
			return err
		}
		return a.c.Patch(ctx, "admin.users.update", idPath("/admin/users", id), in, &out)
	})
	return out, err
}

func (a *Admin) DeleteUser(ctx context.Context, id int64) error {
	return a.call(CapUsers, "admin.users.delete", func() error {
		return a.c.Delete(ctx, "admin.users.delete", idPath("/admin/users", id), nil)
	})
}
