package library

import (
	"math"
	"time"
)

// Book is the catalog entry as reported by the remote API.
type Book struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	AuthorID      int64   `json:"authorId,omitempty"`
	CategoryID    int64   `json:"categoryId,omitempty"`
	Category      string  `json:"category,omitempty"`
	CoverURL      string  `json:"coverImage,omitempty"`
	ISBN          string  `json:"isbn,omitempty"`
	PublishedYear int     `json:"publishedYear,omitempty"`
	Description   string  `json:"description,omitempty"`
	Stock         int     `json:"stock"`
	Available     bool    `json:"available"`
	Rating        float64 `json:"rating,omitempty"`
}

// BookSnapshot is the copy of a book a cart line item keeps. It is taken when the
// book is added and is never refreshed from the server afterwards.
type BookSnapshot struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	CoverURL  string `json:"coverImage,omitempty"`
	Available bool   `json:"available"`
}

// Snapshot copies the fields of b that a cart line item needs.
func (b Book) Snapshot() BookSnapshot {
	return BookSnapshot{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		CoverURL:  b.CoverURL,
		Available: b.Available,
	}
}

// Author represents a book author.
type Author struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Bio       string `json:"bio,omitempty"`
	BookCount int    `json:"bookCount,omitempty"`
}

// Category groups books for browsing.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"bookCount,omitempty"`
}

// User is a registered library member. Role is "USER" or "ADMIN".
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoanStatus is the server-reported state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanBorrowed LoanStatus = "BORROWED"
	LoanReturned LoanStatus = "RETURNED"
	LoanOverdue  LoanStatus = "OVERDUE"
)

// Loan is owned by the server. The client never moves a loan between states itself.
type Loan struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"userId"`
	BookID     int64      `json:"bookId"`
	Book       *Book      `json:"book,omitempty"`
	User       *User      `json:"user,omitempty"`
	Status     LoanStatus `json:"status"`
	BorrowedAt time.Time  `json:"borrowedAt"`
	DueAt      time.Time  `json:"dueAt"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
}

// DaysOverdue returns how many calendar days today is past the due date, or 0.
// Returned loans are never overdue.
func (l Loan) DaysOverdue(today time.Time) int {
	if l.ReturnedAt != nil || l.DueAt.IsZero() {
		return 0
	}
	days := int(math.Round(Date(today).Sub(Date(l.DueAt)).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// Review is a member's rating of a book.
type Review struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"bookId"`
	Book      *Book     `json:"book,omitempty"`
	Rating    int       `json:"star"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Overview holds the aggregate numbers shown on the admin dashboard.
type Overview struct {
	TotalBooks      int `json:"totalBooks"`
	TotalAuthors    int `json:"totalAuthors"`
	TotalCategories int `json:"totalCategories"`
	TotalUsers      int `json:"totalUsers"`
	ActiveLoans     int `json:"activeLoans"`
	OverdueLoans    int `json:"overdueLoans"`
}

// Date truncates t to midnight in its own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
