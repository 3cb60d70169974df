// Package apitest runs an in-memory fake of the library REST API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"library-storefront/library"
)

// Server is a fake API backed by maps. Exported fields may be changed between
// requests while holding no lock; use the helper methods from concurrent tests.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	books      map[int64]library.Book
	authors    map[int64]library.Author
	categories map[int64]library.Category
	loans      map[int64]library.Loan
	users      map[int64]library.User
	reviews    []library.Review
	nextID     int64

	token         string
	me            library.User
	loanFailures  map[int64]string
	unimplemented map[string]bool
	failures      map[string][]int
	delay         time.Duration
	calls         map[string]int
	headers       map[string][]http.Header
}

// New starts a fake API and stops it when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		books:         make(map[int64]library.Book),
		authors:       make(map[int64]library.Author),
		categories:    make(map[int64]library.Category),
		loans:         make(map[int64]library.Loan),
		users:         make(map[int64]library.User),
		nextID:        100,
		me:            library.User{ID: 1, Name: "Reader", Email: "reader@example.com", Role: "USER"},
		loanFailures:  make(map[int64]string),
		unimplemented: make(map[string]bool),
		failures:      make(map[string][]int),
		calls:         make(map[string]int),
		headers:       make(map[string][]http.Header),
	}
	s.users[s.me.ID] = s.me
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/books", s.listBooks)
	r.Get("/books/search", s.searchBooks)
	r.Get("/books/recommend", s.recommendBooks)
	r.Get("/books/{id}", s.getBook)
	r.Get("/authors", s.listAuthors)
	r.Get("/authors/{id}", s.getAuthor)
	r.Get("/authors/{id}/books", s.authorBooks)
	r.Get("/categories", s.listCategories)
	r.Get("/categories/{id}", s.getCategory)
	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/me", s.getMe)
		r.Patch("/me", s.patchMe)
		r.Get("/me/loans", s.myLoans)
		r.Get("/me/reviews", s.myReviews)
		r.Post("/loans", s.createLoan)
		r.Patch("/loans/{id}/return", s.returnLoan)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/overview", s.overview)
			r.Post("/books", s.createBook)
			r.Put("/books/{id}", s.updateBook)
			r.Delete("/books/{id}", s.deleteBook)
			r.Post("/authors", s.createAuthor)
			r.Put("/authors/{id}", s.updateAuthor)
			r.Delete("/authors/{id}", s.deleteAuthor)
			r.Post("/categories", s.createCategory)
			r.Put("/categories/{id}", s.updateCategory)
			r.Delete("/categories/{id}", s.deleteCategory)
			r.Get("/loans", s.adminLoans)
			r.Patch("/loans/{id}", s.updateLoan)
			r.Get("/users", s.listUsers)
			r.Patch("/users/{id}", s.updateUser)
			r.Delete("/users/{id}", s.deleteUser)
		})
	})
	return r
}

// ---------------------------------------------------------------------------
// Test controls
// ---------------------------------------------------------------------------

// RequireToken makes every /me, /loans and /admin route demand "Bearer token".
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// AddBook stores b, assigning an id when b.ID is zero.
func (s *Server) AddBook(b library.Book) library.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	s.books[b.ID] = b
	return b
}

func (s *Server) AddAuthor(a library.Author) library.Author {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	s.authors[a.ID] = a
	return a
}

func (s *Server) AddCategory(c library.Category) library.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.categories[c.ID] = c
	return c
}

func (s *Server) AddReview(r library.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, r)
}

// FailLoan makes POST /loans for bookID fail with a 400 carrying message.
func (s *Server) FailLoan(bookID int64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loanFailures[bookID] = message
}

// ClearLoanFailures removes every FailLoan rule.
func (s *Server) ClearLoanFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loanFailures = make(map[int64]string)
}

// Unimplement makes the route pattern (e.g. "GET /admin/users") answer 501.
func (s *Server) Unimplement(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unimplemented[route] = true
}

// FailNext makes the next len(statuses) requests to route answer with those
// statuses before the route behaves normally again.
func (s *Server) FailNext(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// SetDelay slows every response down, to hold requests in flight.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls reports how many requests reached route, e.g. "POST /loans".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Headers returns the request headers seen on route, in arrival order.
func (s *Server) Headers(route string) []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers[route]...)
}

// Loans returns every loan the fake has created.
func (s *Server) Loans() []library.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]library.Loan, 0, len(s.loans))
	for _, l := range s.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// ---------------------------------------------------------------------------
// Middleware and helpers
// ---------------------------------------------------------------------------

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Resolve the pattern up front so counters are keyed like "GET /books/{id}".
		rctx := chi.NewRouteContext()
		pattern := r.URL.Path
		if router, ok := s.Config.Handler.(chi.Routes); ok && router.Match(rctx, r.Method, r.URL.Path) {
			pattern = rctx.RoutePattern()
		}
		route := r.Method + " " + pattern

		s.mu.Lock()
		s.calls[route]++
		s.headers[route] = append(s.headers[route], r.Header.Clone())
		delay := s.delay
		unimplemented := s.unimplemented[route]
		var status int
		if queue := s.failures[route]; len(queue) > 0 {
			status, s.failures[route] = queue[0], queue[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if unimplemented {
			writeError(w, http.StatusNotImplemented, "not implemented")
			return
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Message: "ok", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return def
}

func paginate[T any](items []T, r *http.Request) library.Page[T] {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return library.Page[T]{
		Items:      items[start:end],
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	books := sortedValues(s.books)
	s.mu.Unlock()

	categoryID, _ := strconv.ParseInt(r.URL.Query().Get("categoryId"), 10, 64)
	authorID, _ := strconv.ParseInt(r.URL.Query().Get("authorId"), 10, 64)
	filtered := books[:0:0]
	for _, b := range books {
		if categoryID > 0 && b.CategoryID != categoryID {
			continue
		}
		if authorID > 0 && b.AuthorID != authorID {
			continue
		}
		filtered = append(filtered, b)
	}
	writeJSON(w, http.StatusOK, paginate(filtered, r))
}

func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	s.mu.Lock()
	books := sortedValues(s.books)
	s.mu.Unlock()

	var found []library.Book
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			found = append(found, b)
		}
	}
	writeJSON(w, http.StatusOK, paginate(found, r))
}

func (s *Server) recommendBooks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	books := sortedValues(s.books)
	s.mu.Unlock()

	if r.URL.Query().Get("by") == "rating" {
		sort.SliceStable(books, func(i, j int) bool { return books[i].Rating > books[j].Rating })
	}
	if limit := queryInt(r, "limit", len(books)); limit < len(books) {
		books = books[:limit]
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	b, ok := s.books[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Book not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) listAuthors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	authors := sortedValues(s.authors)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(authors, r))
}

func (s *Server) getAuthor(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	a, ok := s.authors[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Author not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) authorBooks(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	var books []library.Book
	for _, b := range sortedValues(s.books) {
		if b.AuthorID == id {
			books = append(books, b)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(books, r))
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	categories := sortedValues(s.categories)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	c, ok := s.categories[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ---------------------------------------------------------------------------
// Auth and current user
// ---------------------------------------------------------------------------

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &creds) {
		return
	}
	if creds.Password != "secret" {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.mu.Lock()
	token := s.token
	if token == "" {
		token = "test-token"
	}
	me := s.me
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": time.Now().Add(time.Hour).UTC(),
		"user":      me,
	})
}

func (s *Server) getMe(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	me := s.me
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) patchMe(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	if in.Name != "" {
		s.me.Name = in.Name
	}
	if in.Phone != "" {
		s.me.Phone = in.Phone
	}
	me := s.me
	s.users[me.ID] = me
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) myLoans(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var loans []library.Loan
	for _, l := range sortedValues(s.loans) {
		if l.UserID == s.me.ID {
			loans = append(loans, l)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(loans, r))
}

func (s *Server) myReviews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reviews := append([]library.Review(nil), s.reviews...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(reviews, r))
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

func (s *Server) createLoan(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BookID int64 `json:"bookId"`
		Days   int   `json:"days"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.loanFailures[in.BookID]; ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	book, ok := s.books[in.BookID]
	if !ok {
		writeError(w, http.StatusNotFound, "Book not found")
		return
	}
	if in.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days is required")
		return
	}
	now := time.Now().UTC()
	loan := library.Loan{
		ID:         s.id(),
		UserID:     s.me.ID,
		BookID:     book.ID,
		Book:       &book,
		Status:     library.LoanBorrowed,
		BorrowedAt: now,
		DueAt:      now.AddDate(0, 0, in.Days),
	}
	s.loans[loan.ID] = loan
	if book.Stock > 0 {
		book.Stock--
		book.Available = book.Stock > 0
		s.books[book.ID] = book
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) returnLoan(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Loan not found")
		return
	}
	if loan.ReturnedAt != nil {
		writeError(w, http.StatusBadRequest, "Loan already returned")
		return
	}
	now := time.Now().UTC()
	loan.ReturnedAt = &now
	loan.Status = library.LoanReturned
	s.loans[id] = loan
	if book, ok := s.books[loan.BookID]; ok {
		book.Stock++
		book.Available = true
		s.books[book.ID] = book
	}
	writeJSON(w, http.StatusOK, loan)
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func (s *Server) overview(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := library.Overview{
		TotalBooks:      len(s.books),
		TotalAuthors:    len(s.authors),
		TotalCategories: len(s.categories),
		TotalUsers:      len(s.users),
	}
	for _, l := range s.loans {
		switch l.Status {
		case library.LoanOverdue:
			o.OverdueLoans++
		case library.LoanActive, library.LoanBorrowed:
			o.ActiveLoans++
		}
	}
	writeJSON(w, http.StatusOK, o)
}

type bookInput struct {
	Title      string `json:"title"`
	AuthorID   int64  `json:"authorId"`
	CategoryID int64  `json:"categoryId"`
	Stock      int    `json:"stock"`
}

func (s *Server) bookFrom(in bookInput, id int64) library.Book {
	return library.Book{
		ID:         id,
		Title:      in.Title,
		AuthorID:   in.AuthorID,
		Author:     s.authors[in.AuthorID].Name,
		CategoryID: in.CategoryID,
		Category:   s.categories[in.CategoryID].Name,
		Stock:      in.Stock,
		Available:  in.Stock > 0,
	}
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var in bookInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		if strings.EqualFold(b.Title, in.Title) {
			writeError(w, http.StatusConflict, fmt.Sprintf("Book %q already exists", in.Title))
			return
		}
	}
	b := s.bookFrom(in, s.id())
	s.books[b.ID] = b
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in bookInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		writeError(w, http.StatusNotFound, "Book not found")
		return
	}
	b := s.bookFrom(in, id)
	s.books[id] = b
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.loans {
		if l.BookID == id && l.ReturnedAt == nil {
			writeError(w, http.StatusBadRequest, "Cannot delete book with active loans")
			return
		}
	}
	delete(s.books, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createAuthor(w http.ResponseWriter, r *http.Request) {
	var in library.Author
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	in.ID = s.id()
	s.authors[in.ID] = in
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) updateAuthor(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in library.Author
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authors[id]; !ok {
		writeError(w, http.StatusNotFound, "Author not found")
		return
	}
	in.ID = id
	s.authors[id] = in
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) deleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		if b.AuthorID == id {
			writeError(w, http.StatusBadRequest, "Cannot delete author: author has related books")
			return
		}
	}
	delete(s.authors, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var in library.Category
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, in.Name) {
			writeError(w, http.StatusBadRequest, "Category name already exists")
			return
		}
	}
	in.ID = s.id()
	s.categories[in.ID] = in
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in library.Category
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	in.ID = id
	s.categories[id] = in
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminLoans(w http.ResponseWriter, r *http.Request) {
	status := library.LoanStatus(r.URL.Query().Get("status"))
	s.mu.Lock()
	var loans []library.Loan
	for _, l := range sortedValues(s.loans) {
		if status == "" || l.Status == status {
			loans = append(loans, l)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(loans, r))
}

func (s *Server) updateLoan(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in struct {
		Status library.LoanStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Loan not found")
		return
	}
	loan.Status = in.Status
	s.loans[id] = loan
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := sortedValues(s.users)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(users, r))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Role != "" {
		u.Role = in.Role
	}
	s.users[id] = u
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	w.WriteHeader(http.StatusNoContent)
}
