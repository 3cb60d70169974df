package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"library-storefront/cart"
	"library-storefront/library"
)

const dateLayout = "2006-01-02"

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// staleNote tells the user the listing came from cache and is being refreshed.
func staleNote(w io.Writer, stale bool) {
	if stale {
		fmt.Fprintln(w, "(cached, refreshing in the background)")
	}
}

func pageFooter(w io.Writer, page, totalPages, total int) {
	if totalPages > 1 {
		fmt.Fprintf(w, "Page %d of %d (%d total)\n", page, totalPages, total)
	}
}

func printBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-35s %-25s %-15s %-6s %-10s\n", "ID", "Title", "Author", "Category", "Stock", "Available")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, b := range books {
		fmt.Fprintf(w, "%-5d %-35s %-25s %-15s %-6d %-10s\n",
			b.ID,
			truncateString(b.Title, 35),
			truncateString(b.Author, 25),
			truncateString(b.Category, 15),
			b.Stock,
			yesNo(b.Available))
	}
}

func printBook(w io.Writer, b library.Book) {
	fmt.Fprintf(w, "%s\n", b.Title)
	fmt.Fprintf(w, "  ID:        %d\n", b.ID)
	fmt.Fprintf(w, "  Author:    %s\n", b.Author)
	if b.Category != "" {
		fmt.Fprintf(w, "  Category:  %s\n", b.Category)
	}
	if b.ISBN != "" {
		fmt.Fprintf(w, "  ISBN:      %s\n", b.ISBN)
	}
	if b.PublishedYear > 0 {
		fmt.Fprintf(w, "  Published: %d\n", b.PublishedYear)
	}
	if b.Rating > 0 {
		fmt.Fprintf(w, "  Rating:    %.1f\n", b.Rating)
	}
	fmt.Fprintf(w, "  Stock:     %d (available: %s)\n", b.Stock, yesNo(b.Available))
	if b.Description != "" {
		fmt.Fprintf(w, "\n%s\n", b.Description)
	}
}

func printAuthors(w io.Writer, authors []library.Author) {
	if len(authors) == 0 {
		fmt.Fprintln(w, "No authors found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-35s %-6s\n", "ID", "Name", "Books")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, a := range authors {
		fmt.Fprintf(w, "%-5d %-35s %-6d\n", a.ID, truncateString(a.Name, 35), a.BookCount)
	}
}

func printCategories(w io.Writer, categories []library.Category) {
	if len(categories) == 0 {
		fmt.Fprintln(w, "No categories found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-6s\n", "ID", "Name", "Books")
	fmt.Fprintln(w, strings.Repeat("-", 45))
	for _, c := range categories {
		fmt.Fprintf(w, "%-5d %-30s %-6d\n", c.ID, truncateString(c.Name, 30), c.BookCount)
	}
}

func printCart(w io.Writer, items []cart.LineItem, total int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	fmt.Fprintf(w, "%-5s %-35s %-25s %-4s\n", "ID", "Title", "Author", "Qty")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, it := range items {
		fmt.Fprintf(w, "%-5d %-35s %-25s %-4d\n",
			it.Book.ID,
			truncateString(it.Book.Title, 35),
			truncateString(it.Book.Author, 25),
			it.Quantity)
	}
	fmt.Fprintf(w, "%d item(s), %d book(s)\n", total, len(items))
}

func loanTitle(l library.Loan) string {
	if l.Book != nil {
		return l.Book.Title
	}
	return fmt.Sprintf("Book %d", l.BookID)
}

func printLoans(w io.Writer, loans []library.Loan, today time.Time) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No loans.")
		return
	}
	fmt.Fprintf(w, "%-5s %-35s %-10s %-11s %-11s %s\n", "ID", "Book", "Status", "Borrowed", "Due", "Overdue")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, l := range loans {
		overdue := ""
		if days := l.DaysOverdue(today); days > 0 {
			overdue = fmt.Sprintf("%d day(s)", days)
		}
		fmt.Fprintf(w, "%-5d %-35s %-10s %-11s %-11s %s\n",
			l.ID,
			truncateString(loanTitle(l), 35),
			l.Status,
			l.BorrowedAt.Format(dateLayout),
			l.DueAt.Format(dateLayout),
			overdue)
	}
}

func printReviews(w io.Writer, reviews []library.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, "No reviews yet.")
		return
	}
	for _, r := range reviews {
		title := fmt.Sprintf("Book %d", r.BookID)
		if r.Book != nil {
			title = r.Book.Title
		}
		fmt.Fprintf(w, "%s %s %s\n", strings.Repeat("*", r.Rating), title, r.CreatedAt.Format(dateLayout))
		if r.Comment != "" {
			fmt.Fprintf(w, "    %s\n", r.Comment)
		}
	}
}

func printUser(w io.Writer, u library.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
	fmt.Fprintf(w, "  ID:     %d\n", u.ID)
	fmt.Fprintf(w, "  Role:   %s\n", u.Role)
	if u.Phone != "" {
		fmt.Fprintf(w, "  Phone:  %s\n", u.Phone)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Joined: %s\n", u.CreatedAt.Format(dateLayout))
	}
}

func printUsers(w io.Writer, users []library.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users.")
		return
	}
	fmt.Fprintf(w, "%-5s %-25s %-30s %-6s\n", "ID", "Name", "Email", "Role")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, u := range users {
		fmt.Fprintf(w, "%-5d %-25s %-30s %-6s\n", u.ID, truncateString(u.Name, 25), truncateString(u.Email, 30), u.Role)
	}
}

func printOverview(w io.Writer, o library.Overview) {
	fmt.Fprintf(w, "Books:        %d\n", o.TotalBooks)
	fmt.Fprintf(w, "Authors:      %d\n", o.TotalAuthors)
	fmt.Fprintf(w, "Categories:   %d\n", o.TotalCategories)
	fmt.Fprintf(w, "Users:        %d\n", o.TotalUsers)
	fmt.Fprintf(w, "Active loans: %d\n", o.ActiveLoans)
	fmt.Fprintf(w, "Overdue:      %d\n", o.OverdueLoans)
}
