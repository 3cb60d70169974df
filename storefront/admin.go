package storefront

import (
	"context"

	"library-storefront/gateway"
	"library-storefront/library"
	"library-storefront/query"
)

// ------------------ Admin reads ------------------

// Supports reports whether the backend implements an admin capability.
func (m *Manager) Supports(c gateway.Capability) bool { return m.gw.Admin.Supports(c) }

func (m *Manager) Overview(ctx context.Context) (query.Result[library.Overview], error) {
	return read(ctx, m, query.OverviewKey, query.Admin, m.Authenticated(), m.gw.Admin.Overview)
}

func (m *Manager) AdminLoans(ctx context.Context, f gateway.LoanFilter) (query.Result[library.Page[library.Loan]], error) {
	return read(ctx, m, query.AdminLoansKey.WithValues(f.Values()), query.Admin, m.Authenticated(),
		func(ctx context.Context) (library.Page[library.Loan], error) { return m.gw.Admin.Loans(ctx, f) })
}

func (m *Manager) AdminUsers(ctx context.Context, p gateway.Paging) (query.Result[library.Page[library.User]], error) {
	key := query.AdminUsersKey.With("page", p.Page).With("limit", p.Limit)
	return read(ctx, m, key, query.Admin, m.Authenticated(),
		func(ctx context.Context) (library.Page[library.User], error) { return m.gw.Admin.Users(ctx, p) })
}

// ------------------ Admin catalog ------------------

func (m *Manager) CreateBook(ctx context.Context, in gateway.BookInput) (library.Book, error) {
	return query.Mutate(ctx, m.cache, query.ResourceBooks, func(ctx context.Context) (library.Book, error) {
		return m.gw.Admin.CreateBook(ctx, in)
	})
}

func (m *Manager) UpdateBook(ctx context.Context, id int64, in gateway.BookInput) (library.Book, error) {
	return query.Mutate(ctx, m.cache, query.ResourceBooks, func(ctx context.Context) (library.Book, error) {
		return m.gw.Admin.UpdateBook(ctx, id, in)
	}, id)
}

func (m *Manager) DeleteBook(ctx context.Context, id int64) error {
	return m.exec(ctx, query.ResourceBooks, func(ctx context.Context) error { return m.gw.Admin.DeleteBook(ctx, id) }, id)
}

func (m *Manager) CreateAuthor(ctx context.Context, in gateway.AuthorInput) (library.Author, error) {
	return query.Mutate(ctx, m.cache, query.ResourceAuthors, func(ctx context.Context) (library.Author, error) {
		return m.gw.Admin.CreateAuthor(ctx, in)
	})
}

func (m *Manager) UpdateAuthor(ctx context.Context, id int64, in gateway.AuthorInput) (library.Author, error) {
	return query.Mutate(ctx, m.cache, query.ResourceAuthors, func(ctx context.Context) (library.Author, error) {
		return m.gw.Admin.UpdateAuthor(ctx, id, in)
	}, id)
}

func (m *Manager) DeleteAuthor(ctx context.Context, id int64) error {
	return m.exec(ctx, query.ResourceAuthors, func(ctx context.Context) error { return m.gw.Admin.DeleteAuthor(ctx, id) }, id)
}

func (m *Manager) CreateCategory(ctx context.Context, in gateway.CategoryInput) (library.Category, error) {
	return query.Mutate(ctx, m.cache, query.ResourceCategories, func(ctx context.Context) (library.Category, error) {
		return m.gw.Admin.CreateCategory(ctx, in)
	})
}

func (m *Manager) UpdateCategory(ctx context.Context, id int64, in gateway.CategoryInput) (library.Category, error) {
	return query.Mutate(ctx, m.cache, query.ResourceCategories, func(ctx context.Context) (library.Category, error) {
		return m.gw.Admin.UpdateCategory(ctx, id, in)
	}, id)
}

func (m *Manager) DeleteCategory(ctx context.Context, id int64) error {
	return m.exec(ctx, query.ResourceCategories, func(ctx context.Context) error { return m.gw.Admin.DeleteCategory(ctx, id) }, id)
}

// ------------------ Admin loans and users ------------------

func (m *Manager) UpdateLoanStatus(ctx context.Context, id int64, status library.LoanStatus) (library.Loan, error) {
	return query.Mutate(ctx, m.cache, query.ResourceLoans, func(ctx context.Context) (library.Loan, error) {
		return m.gw.Admin.UpdateLoan(ctx, id, gateway.LoanStatusUpdate{Status: status})
	}, id)
}

func (m *Manager) UpdateUser(ctx context.Context, id int64, in gateway.UserUpdate) (library.User, error) {
	return query.Mutate(ctx, m.cache, query.ResourceUsers, func(ctx context.Context) (library.User, error) {
		return m.gw.Admin.UpdateUser(ctx, id, in)
	}, id)
}

func (m *Manager) DeleteUser(ctx context.Context, id int64) error {
	return m.exec(ctx, query.ResourceUsers, func(ctx context.Context) error { return m.gw.Admin.DeleteUser(ctx, id) }, id)
}

func (m *Manager) exec(ctx context.Context, r query.Resource, fn func(context.Context) error, ids ...int64) error {
	_, err := query.Mutate(ctx, m.cache, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, ids...)
	return err
}
