package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-storefront/checkout"
	"library-storefront/gateway"
	"library-storefront/library"
)

const shellHelp = `Available commands:
  Catalog: list books, search book, show book, recommend, list authors, list categories
  Cart: add to cart, borrow, cart, update quantity, remove from cart, clear cart, checkout
  Account: login, logout, profile, my loans, return, my reviews
  System: help, exit`

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.runShell(cmd.Context(), bufio.NewScanner(os.Stdin))
			return nil
		},
	}
}

func (a *app) runShell(ctx context.Context, scanner *bufio.Scanner) {
	fmt.Fprintln(a.out, "Welcome to the Library!")
	if user, ok := a.mgr.CurrentUser(); ok && a.mgr.Authenticated() {
		fmt.Fprintf(a.out, "Signed in as %s.\n", user.Name)
	}
	fmt.Fprintln(a.out, shellHelp)

	for {
		fmt.Fprint(a.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return
		}
		cmd := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch cmd {
		case "":
		case "list books":
			handleListBooks(ctx, a)
		case "search book":
			handleSearchBooks(ctx, scanner, a)
		case "show book":
			handleShowBook(ctx, scanner, a)
		case "recommend":
			handleRecommend(ctx, a)
		case "list authors":
			handleListAuthors(ctx, a)
		case "list categories":
			handleListCategories(ctx, a)
		case "add to cart":
			handleAddToCart(ctx, scanner, a)
		case "borrow":
			handleBorrow(ctx, scanner, a)
		case "cart":
			printCart(a.out, a.mgr.Cart().Items(), a.mgr.Cart().TotalItems())
		case "update quantity":
			handleUpdateQuantity(ctx, scanner, a)
		case "remove from cart":
			handleRemoveFromCart(ctx, scanner, a)
		case "clear cart":
			a.mgr.Cart().Clear(ctx)
			a.notifier.Info("Your cart is empty.")
		case "checkout":
			handleCheckout(ctx, scanner, a)
		case "login":
			handleLogin(ctx, scanner, a)
		case "logout":
			if err := a.mgr.Logout(ctx); err != nil {
				a.notifier.Error(err)
			} else {
				a.notifier.Info("Signed out.")
			}
		case "profile":
			handleProfile(ctx, a)
		case "my loans":
			handleMyLoans(ctx, a)
		case "my reviews":
			handleMyReviews(ctx, a)
		case "return":
			handleReturn(ctx, scanner, a)
		case "help":
			fmt.Fprintln(a.out, shellHelp)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Goodbye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command. Type 'help' to see the available commands.")
		}
	}
}

// prompt prints label and reads one trimmed line. ok is false on end of input.
func prompt(sc *bufio.Scanner, a *app, label string) (string, bool) {
	fmt.Fprint(a.out, label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func promptID(sc *bufio.Scanner, a *app, label string) (int64, bool) {
	s, ok := prompt(sc, a, label)
	if !ok {
		return 0, false
	}
	id, err := parseID(s)
	if err != nil {
		fmt.Fprintf(a.out, "Invalid ID: %s\n", s)
		return 0, false
	}
	return id, true
}

func confirm(sc *bufio.Scanner, a *app, label string) bool {
	s, ok := prompt(sc, a, label+" [y/N]: ")
	if !ok {
		return false
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}

// signedIn reports the login requirement once and returns false when signed out.
func signedIn(a *app) bool {
	if err := a.requireLogin(); err != nil {
		a.notifier.Error(err)
		return false
	}
	return true
}

// ------------------ Catalog handlers ------------------

func handleListBooks(ctx context.Context, a *app) {
	res, err := a.mgr.Books(ctx, gateway.BookFilter{})
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printBooks(a.out, res.Data.Items)
	pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
	staleNote(a.out, res.Stale)
}

func handleSearchBooks(ctx context.Context, sc *bufio.Scanner, a *app) {
	q, ok := prompt(sc, a, "Query: ")
	if !ok {
		return
	}
	if q == "" {
		fmt.Fprintln(a.out, "Type something to search for.")
		return
	}
	res, err := a.mgr.Search(ctx, q, gateway.Paging{})
	if err != nil {
		a.notifier.Error(err)
		return
	}
	if len(res.Data.Items) == 0 {
		fmt.Fprintf(a.out, "No books found matching '%s'.\n", q)
		return
	}
	fmt.Fprintf(a.out, "Found %d book(s) matching '%s':\n", res.Data.Total, q)
	printBooks(a.out, res.Data.Items)
}

func handleShowBook(ctx context.Context, sc *bufio.Scanner, a *app) {
	id, ok := promptID(sc, a, "Book ID: ")
	if !ok {
		return
	}
	res, err := a.mgr.Book(ctx, id)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printBook(a.out, res.Data)
	staleNote(a.out, res.Stale)
}

func handleRecommend(ctx context.Context, a *app) {
	res, err := a.mgr.Recommend(ctx, gateway.ByPopular, 10)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printBooks(a.out, res.Data)
}

func handleListAuthors(ctx context.Context, a *app) {
	res, err := a.mgr.Authors(ctx, gateway.Paging{})
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printAuthors(a.out, res.Data.Items)
	staleNote(a.out, res.Stale)
}

func handleListCategories(ctx context.Context, a *app) {
	res, err := a.mgr.Categories(ctx)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printCategories(a.out, res.Data)
	staleNote(a.out, res.Stale)
}

// ------------------ Cart handlers ------------------

func handleAddToCart(ctx context.Context, sc *bufio.Scanner, a *app) {
	id, ok := promptID(sc, a, "Book ID: ")
	if !ok {
		return
	}
	item, err := a.mgr.AddToCart(ctx, id)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	a.notifier.Success("Added '%s' to your cart (quantity %d)", item.Book.Title, item.Quantity)
}

func handleBorrow(ctx context.Context, sc *bufio.Scanner, a *app) {
	id, ok := promptID(sc, a, "Book ID: ")
	if !ok {
		return
	}
	if err := a.mgr.BorrowNow(ctx, id); err != nil {
		a.notifier.Error(err)
		return
	}
	handleCheckout(ctx, sc, a)
}

func handleUpdateQuantity(ctx context.Context, sc *bufio.Scanner, a *app) {
	id, ok := promptID(sc, a, "Book ID: ")
	if !ok {
		return
	}
	s, ok := prompt(sc, a, "Quantity: ")
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(a.out, "Invalid quantity: %s\n", s)
		return
	}
	a.mgr.Cart().UpdateQuantity(ctx, id, n)
	printCart(a.out, a.mgr.Cart().Items(), a.mgr.Cart().TotalItems())
}

func handleRemoveFromCart(ctx context.Context, sc *bufio.Scanner, a *app) {
	id, ok := promptID(sc, a, "Book ID: ")
	if !ok {
		return
	}
	if !a.mgr.Cart().Contains(id) {
		fmt.Fprintf(a.out, "Book %d is not in your cart.\n", id)
		return
	}
	a.mgr.Cart().Remove(ctx, id)
	a.notifier.Info("Removed book %d from your cart", id)
}

func handleCheckout(ctx context.Context, sc *bufio.Scanner, a *app) {
	if !signedIn(a) {
		return
	}
	if a.mgr.Cart().Len() == 0 {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return
	}
	flow, err := a.mgr.Checkout()
	if err != nil {
		a.notifier.Error(err)
		return
	}

	printCart(a.out, a.mgr.Cart().Items(), a.mgr.Cart().TotalItems())
	s, ok := prompt(sc, a, fmt.Sprintf("Loan length in days %v [%d]: ", gateway.BorrowDurations, flow.Days()))
	if !ok {
		return
	}
	if s != "" {
		days, err := strconv.Atoi(s)
		if err == nil {
			err = flow.SetDays(days)
		}
		if err != nil {
			fmt.Fprintf(a.out, "Invalid loan length: %s\n", s)
			return
		}
	}
	s, ok = prompt(sc, a, fmt.Sprintf("Borrow date YYYY-MM-DD [%s]: ", flow.BorrowDate().Format(dateLayout)))
	if !ok {
		return
	}
	if s != "" {
		d, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err == nil {
			err = flow.SetBorrowDate(d)
		}
		if err != nil {
			fmt.Fprintf(a.out, "Invalid borrow date: %s\n", s)
			return
		}
	}
	printCheckoutSummary(a.out, flow)

	_ = flow.Agree(checkout.AgreementTerms, confirm(sc, a, "I accept the borrowing terms"))
	_ = flow.Agree(checkout.AgreementReturnPolicy, confirm(sc, a, "I will return the books on time"))
	if !flow.AllAgreed() {
		fmt.Fprintln(a.out, "Both agreements are required to borrow books.")
		return
	}

	receipt, err := flow.Submit(ctx)
	if err != nil {
		var submitErr *checkout.SubmitError
		if errors.As(err, &submitErr) {
			for _, f := range submitErr.Failures {
				fmt.Fprintf(a.out, "  %-35s %s\n", truncateString(f.Book.Title, 35), f.Message())
			}
			fmt.Fprintln(a.out, "Run 'checkout' again to retry the books that failed.")
		}
		if errors.Is(err, checkout.ErrBorrowDateInPast) {
			fmt.Fprintln(a.out, "The borrow date has passed. Run 'checkout' again and pick a new date.")
		}
		a.notifier.Error(err)
		return
	}
	a.mgr.FinishCheckout()
	printReceipt(a.out, receipt)
}

// ------------------ Account handlers ------------------

// shellPassword masks input on a terminal and reads through the shell's own
// scanner otherwise, so piped input stays in order.
func shellPassword(sc *bufio.Scanner, a *app) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		return readPassword("Password: ")
	}
	password, ok := prompt(sc, a, "Password: ")
	if !ok {
		return "", io.ErrUnexpectedEOF
	}
	return password, nil
}

func handleLogin(ctx context.Context, sc *bufio.Scanner, a *app) {
	email, ok := prompt(sc, a, "Email: ")
	if !ok {
		return
	}
	password, err := shellPassword(sc, a)
	if err != nil {
		fmt.Fprintf(a.out, "Error reading password: %v\n", err)
		return
	}
	user, err := a.mgr.Login(ctx, email, password)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	a.notifier.Success("Welcome back, %s!", user.Name)
}

func handleProfile(ctx context.Context, a *app) {
	if !signedIn(a) {
		return
	}
	res, err := a.mgr.Profile(ctx)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printUser(a.out, res.Data)
}

func handleMyLoans(ctx context.Context, a *app) {
	if !signedIn(a) {
		return
	}
	res, err := a.mgr.MyLoans(ctx, gateway.Paging{})
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printLoans(a.out, res.Data.Items, time.Now())
	staleNote(a.out, res.Stale)
}

func handleMyReviews(ctx context.Context, a *app) {
	if !signedIn(a) {
		return
	}
	res, err := a.mgr.MyReviews(ctx, gateway.Paging{})
	if err != nil {
		a.notifier.Error(err)
		return
	}
	printReviews(a.out, res.Data.Items)
}

func handleReturn(ctx context.Context, sc *bufio.Scanner, a *app) {
	if !signedIn(a) {
		return
	}
	id, ok := promptID(sc, a, "Loan ID: ")
	if !ok {
		return
	}
	loan, err := a.mgr.ReturnLoan(ctx, id)
	if err != nil {
		a.notifier.Error(err)
		return
	}
	a.notifier.Success("Returned '%s'", loanTitle(loan))
	if loan.Status != library.LoanReturned {
		fmt.Fprintf(a.out, "Loan status is now %s\n", loan.Status)
	}
}
