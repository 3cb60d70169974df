package main

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-storefront/apiclient"
	"library-storefront/apitest"
	"library-storefront/cart"
	"library-storefront/gateway"
	"library-storefront/library"
	"library-storefront/notify"
	"library-storefront/query"
	"library-storefront/session"
	"library-storefront/storage"
	"library-storefront/storefront"
	"library-storefront/validation"
)

func newTestApp(t *testing.T) (*app, *apitest.Server, *bytes.Buffer) {
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

	out := &bytes.Buffer{}
	a := &app{
		mgr:      storefront.New(gateway.New(client, validation.New()), cache, cart.New(store, nil), sess, nil),
		notifier: notify.New(out, notify.WithMuted(storefront.ErrNotLoggedIn)),
		out:      out,
	}
	return a, srv, out
}

func runShell(a *app, input string) {
	a.runShell(context.Background(), bufio.NewScanner(strings.NewReader(input)))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "Dune", truncateString("Dune", 10))
	assert.Equal(t, "The Fell...", truncateString("The Fellowship of the Ring", 11))
	assert.Equal(t, "Ab", truncateString("Abcdef", 2))
	assert.Equal(t, "Émi...", truncateString("Émile Zola Œuvres", 6))
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestPrintLoansShowsOverdue(t *testing.T) {
	today := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	loans := []library.Loan{
		{ID: 1, Book: &library.Book{Title: "Dune"}, Status: library.LoanBorrowed,
			BorrowedAt: today.AddDate(0, 0, -8), DueAt: today.AddDate(0, 0, -3)},
		{ID: 2, BookID: 9, Status: library.LoanBorrowed, BorrowedAt: today, DueAt: today.AddDate(0, 0, 5)},
	}
	var buf bytes.Buffer
	printLoans(&buf, loans, today)

	out := buf.String()
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "3 day(s)")
	assert.Contains(t, out, "Book 9")
}

func TestPrintCartEmpty(t *testing.T) {
	var buf bytes.Buffer
	printCart(&buf, nil, 0)
	assert.Equal(t, "Your cart is empty.\n", buf.String())
}

func TestShellBrowseAndCart(t *testing.T) {
	a, srv, out := newTestApp(t)
	dune := srv.AddBook(library.Book{Title: "Dune", Author: "Frank Herbert", Stock: 2, Available: true})

	runShell(a, "list books\nadd to cart\n"+itoa(dune.ID)+"\nadd to cart\n"+itoa(dune.ID)+"\ncart\nexit\n")

	text := out.String()
	assert.Contains(t, text, "Frank Herbert")
	assert.Contains(t, text, "quantity 2")
	assert.Contains(t, text, "2 item(s), 1 book(s)")
	assert.Contains(t, text, "Goodbye!")
	assert.Equal(t, 2, a.mgr.Cart().TotalItems())
}

func TestShellCheckoutRequiresLogin(t *testing.T) {
	a, srv, out := newTestApp(t)
	srv.RequireToken("test-token")

	runShell(a, "checkout\nmy loans\nexit\n")

	assert.Contains(t, out.String(), "not logged in")
	assert.Equal(t, 1, strings.Count(out.String(), "not logged in"), "repeated failure is shown once")
	assert.Zero(t, srv.Calls("POST /loans"))
}

func TestShellCheckout(t *testing.T) {
	a, srv, out := newTestApp(t)
	srv.RequireToken("test-token")
	dune := srv.AddBook(library.Book{Title: "Dune", Stock: 2, Available: true})
	_, err := a.mgr.Login(context.Background(), "reader@example.com", "secret")
	require.NoError(t, err)

	runShell(a, "borrow\n"+itoa(dune.ID)+"\n5\n\ny\ny\nexit\n")

	assert.Contains(t, out.String(), "You borrowed 'Dune'.")
	assert.Zero(t, a.mgr.Cart().Len())
	loans := srv.Loans()
	require.Len(t, loans, 1)
	assert.Equal(t, dune.ID, loans[0].BookID)
}

func TestShellCheckoutWithoutAgreement(t *testing.T) {
	a, srv, out := newTestApp(t)
	srv.RequireToken("test-token")
	dune := srv.AddBook(library.Book{Title: "Dune", Stock: 2, Available: true})
	_, err := a.mgr.Login(context.Background(), "reader@example.com", "secret")
	require.NoError(t, err)

	runShell(a, "borrow\n"+itoa(dune.ID)+"\n\n\ny\nn\nexit\n")

	assert.Contains(t, out.String(), "Both agreements are required")
	assert.Zero(t, srv.Calls("POST /loans"))
	assert.True(t, a.mgr.Cart().Contains(dune.ID))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
