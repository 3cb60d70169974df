// Package storefront is the façade the CLI talks to. It reads through the query
// cache, writes through gateways with declared invalidation, and owns the
// process-wide cart, session and checkout.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"library-storefront/apiclient"
	"library-storefront/cart"
	"library-storefront/checkout"
	"library-storefront/gateway"
	"library-storefront/library"
	"library-storefront/query"
	"library-storefront/session"
)

// ErrNotLoggedIn is returned by operations that need a signed-in user.
var ErrNotLoggedIn = errors.New("not logged in")

// Manager is a thin façade over the gateways, cache, cart and session.
type Manager struct {
	gw      *gateway.Gateway
	cache   *query.Cache
	cart    *cart.Cart
	session *session.Session
	logger  *slog.Logger

	mu   sync.Mutex
	flow *checkout.Flow
}

// New wires a Manager. The cart and session are expected to be loaded already.
func New(gw *gateway.Gateway, cache *query.Cache, c *cart.Cart, s *session.Session, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{gw: gw, cache: cache, cart: c, session: s, logger: logger}
}

func read[T any](ctx context.Context, m *Manager, key query.Key, p query.Policy, enabled bool, fn func(context.Context) (T, error)) (query.Result[T], error) {
	return query.Fetch(ctx, m.cache, query.Query[T]{Key: key, Policy: p, Enabled: enabled, Fn: fn})
}

// ------------------ Catalog ------------------

func (m *Manager) Books(ctx context.Context, f gateway.BookFilter) (query.Result[library.Page[library.Book]], error) {
	return read(ctx, m, query.BookListKey.WithValues(f.Values()), query.BookList, true,
		func(ctx context.Context) (library.Page[library.Book], error) { return m.gw.Books.List(ctx, f) })
}

// Book is disabled, and stays idle, without an id.
func (m *Manager) Book(ctx context.Context, id int64) (query.Result[library.Book], error) {
	return read(ctx, m, query.BookDetailKey.ID(id), query.BookDetail, id > 0,
		func(ctx context.Context) (library.Book, error) { return m.gw.Books.Get(ctx, id) })
}

// Search is disabled for a blank query.
func (m *Manager) Search(ctx context.Context, q string, p gateway.Paging) (query.Result[library.Page[library.Book]], error) {
	q = strings.TrimSpace(q)
	key := query.SearchKey.With("q", q).With("page", p.Page).With("limit", p.Limit)
	return read(ctx, m, key, query.Search, q != "",
		func(ctx context.Context) (library.Page[library.Book], error) { return m.gw.Books.Search(ctx, q, p) })
}

func (m *Manager) Recommend(ctx context.Context, by gateway.Recommendation, limit int) (query.Result[[]library.Book], error) {
	key := query.RecommendKey.With("by", string(by)).With("limit", limit)
	return read(ctx, m, key, query.BookList, true,
		func(ctx context.Context) ([]library.Book, error) { return m.gw.Books.Recommend(ctx, by, limit) })
}

func (m *Manager) Authors(ctx context.Context, p gateway.Paging) (query.Result[library.Page[library.Author]], error) {
	key := query.AuthorListKey.With("page", p.Page).With("limit", p.Limit)
	return read(ctx, m, key, query.BookList, true,
		func(ctx context.Context) (library.Page[library.Author], error) { return m.gw.Authors.List(ctx, p) })
}

func (m *Manager) Author(ctx context.Context, id int64) (query.Result[library.Author], error) {
	return read(ctx, m, query.AuthorDetailKey.ID(id), query.BookDetail, id > 0,
		func(ctx context.Context) (library.Author, error) { return m.gw.Authors.Get(ctx, id) })
}

func (m *Manager) AuthorBooks(ctx context.Context, authorID int64, p gateway.Paging) (query.Result[library.Page[library.Book]], error) {
	key := query.AuthorBooksKey.ID(authorID).With("page", p.Page).With("limit", p.Limit)
	return read(ctx, m, key, query.BookList, authorID > 0,
		func(ctx context.Context) (library.Page[library.Book], error) {
			return m.gw.Books.ByAuthor(ctx, authorID, p)
		})
}

func (m *Manager) Categories(ctx context.Context) (query.Result[[]library.Category], error) {
	return read(ctx, m, query.CategoryListKey, query.Categories, true, m.gw.Categories.List)
}

func (m *Manager) Category(ctx context.Context, id int64) (query.Result[library.Category], error) {
	return read(ctx, m, query.CategoryDetailKey.ID(id), query.Categories, id > 0,
		func(ctx context.Context) (library.Category, error) { return m.gw.Categories.Get(ctx, id) })
}

// ------------------ Session ------------------

// Login signs in and stores the token. Cached per-user views are dropped.
func (m *Manager) Login(ctx context.Context, email, password string) (library.User, error) {
	login, err := m.gw.Auth.Login(ctx, gateway.Credentials{Email: email, Password: password})
	if err != nil {
		return library.User{}, err
	}
	if err := m.session.Set(ctx, login.Token, login.ExpiresAt, &login.User); err != nil {
		return library.User{}, fmt.Errorf("save session: %w", err)
	}
	m.cache.Remove(query.NewKey("me"), query.NewKey("admin"))
	m.logger.Info("logged in", "user_id", login.User.ID, "role", login.User.Role)
	return login.User, nil
}

// Logout forgets the token and every cached per-user view.
func (m *Manager) Logout(ctx context.Context) error {
	m.cache.Remove(query.NewKey("me"), query.NewKey("admin"))
	return m.session.Clear(ctx)
}

func (m *Manager) Authenticated() bool { return m.session.Authenticated() }

// CurrentUser returns the user recorded at login, if any.
func (m *Manager) CurrentUser() (library.User, bool) { return m.session.User() }

// ------------------ Me ------------------

// Profile is disabled while signed out.
func (m *Manager) Profile(ctx context.Context) (query.Result[library.User], error) {
	return read(ctx, m, query.ProfileKey, query.Profile, m.Authenticated(), m.gw.Me.Profile)
}

func (m *Manager) MyLoans(ctx context.Context, p gateway.Paging) (query.Result[library.Page[library.Loan]], error) {
	key := query.MyLoansKey.With("page", p.Page).With("limit", p.Limit)
	return read(ctx, m, key, query.MyActivity, m.Authenticated(),
		func(ctx context.Context) (library.Page[library.Loan], error) { return m.gw.Me.Loans(ctx, p) })
}

func (m *Manager) MyReviews(ctx context.Context, p gateway.Paging) (query.Result[library.Page[library.Review]], error) {
	key := query.MyReviewsKey.With("page", p.Page).With("limit", p.Limit)
	return read(ctx, m, key, query.MyActivity, m.Authenticated(),
		func(ctx context.Context) (library.Page[library.Review], error) { return m.gw.Me.Reviews(ctx, p) })
}

func (m *Manager) UpdateProfile(ctx context.Context, in gateway.ProfileUpdate) (library.User, error) {
	if !m.Authenticated() {
		return library.User{}, ErrNotLoggedIn
	}
	return query.Mutate(ctx, m.cache, query.ResourceProfile, func(ctx context.Context) (library.User, error) {
		return m.gw.Me.Update(ctx, in)
	})
}

func (m *Manager) ReturnLoan(ctx context.Context, loanID int64) (library.Loan, error) {
	if !m.Authenticated() {
		return library.Loan{}, ErrNotLoggedIn
	}
	return query.Mutate(ctx, m.cache, query.ResourceLoans, func(ctx context.Context) (library.Loan, error) {
		return m.gw.Loans.Return(ctx, loanID)
	}, loanID)
}

// ------------------ Cart ------------------

func (m *Manager) Cart() *cart.Cart { return m.cart }

// AddToCart adds one copy of a book, looked up through the cache.
func (m *Manager) AddToCart(ctx context.Context, bookID int64) (cart.LineItem, error) {
	book, err := m.bookForCart(ctx, bookID)
	if err != nil {
		return cart.LineItem{}, err
	}
	return m.cart.Add(ctx, book.Snapshot()), nil
}

// BorrowNow puts the book in the cart unless it is already there, ready for
// checkout. Repeating it does not raise the quantity.
func (m *Manager) BorrowNow(ctx context.Context, bookID int64) error {
	if m.cart.Contains(bookID) {
		return nil
	}
	book, err := m.bookForCart(ctx, bookID)
	if err != nil {
		return err
	}
	m.cart.AddIfAbsent(ctx, book.Snapshot())
	return nil
}

func (m *Manager) bookForCart(ctx context.Context, bookID int64) (library.Book, error) {
	if bookID <= 0 {
		return library.Book{}, &apiclient.Error{Op: "cart.add", Kind: apiclient.KindValidation, Message: "book id must be positive"}
	}
	res, err := m.Book(ctx, bookID)
	if err != nil {
		return library.Book{}, err
	}
	return res.Data, nil
}

// ------------------ Checkout ------------------

// Checkout returns the current checkout session, starting one if needed.
func (m *Manager) Checkout() (*checkout.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flow == nil || m.flow.State() == checkout.StateCompleted {
		flow, err := checkout.New(m.cart, m.gw.Loans, m.cache, checkout.WithLogger(m.logger))
		if err != nil {
			return nil, err
		}
		m.flow = flow
	}
	return m.flow, nil
}

// FinishCheckout discards a completed checkout session so the next one starts fresh.
func (m *Manager) FinishCheckout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flow != nil && m.flow.State() == checkout.StateCompleted {
		m.flow = nil
	}
}
