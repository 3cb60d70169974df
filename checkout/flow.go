// Package checkout turns the cart into loans: a loan draft with a derived return
// date, consent gating, and one concurrent loan request per cart line.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"library-storefront/apiclient"
	"library-storefront/cart"
	"library-storefront/gateway"
	"library-storefront/library"
	"library-storefront/query"
)

var (
	ErrEmptyCart            = errors.New("checkout: cart is empty")
	ErrAgreementsRequired   = errors.New("checkout: all agreements must be accepted")
	ErrSubmissionInProgress = errors.New("checkout: submission already in progress")
	ErrSessionCompleted     = errors.New("checkout: session already completed")
)

// State is the position of a checkout session.
type State int

const (
	StateIdle State = iota
	StateReadyToSubmit
	StateSubmitting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadyToSubmit:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoanCreator issues one loan request. *gateway.Loans implements it.
type LoanCreator interface {
	Create(ctx context.Context, req gateway.LoanRequest) (library.Loan, error)
}

// Invalidator marks cached views stale. *query.Cache implements it.
type Invalidator interface {
	Invalidate(r query.Resource, ids ...int64) int
}

// Receipt describes a completed checkout.
type Receipt struct {
	SessionID  string
	FirstBook  library.BookSnapshot
	Loans      []library.Loan
	BorrowDate time.Time
	ReturnDate time.Time
}

// ItemFailure is the outcome of one rejected loan request.
type ItemFailure struct {
	Book library.BookSnapshot
	Err  error
}

// Kind is the API error kind of the failure.
func (f ItemFailure) Kind() apiclient.Kind { return apiclient.KindOf(f.Err) }

// Message is the user-facing text for the failure.
func (f ItemFailure) Message() string { return BorrowFailureMessage(f.Err) }

// SubmitError reports a checkout in which at least one loan request failed.
// Loans created by the other requests are not rolled back.
type SubmitError struct {
	Failures  []ItemFailure
	Confirmed int
	Total     int
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("checkout: %d of %d loans failed: %s",
		len(e.Failures), e.Total, apiclient.MessageOf(e.Failures[0].Err))
}

func (e *SubmitError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// UserMessage is the text shown for the whole batch.
func (e *SubmitError) UserMessage() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("%q: %s", e.Failures[0].Book.Title, e.Failures[0].Message())
	}
	return fmt.Sprintf("%d books could not be borrowed. First: %q: %s",
		len(e.Failures), e.Failures[0].Book.Title, e.Failures[0].Message())
}

// Flow is one checkout session over the shared cart.
type Flow struct {
	cart   *cart.Cart
	loans  LoanCreator
	cache  Invalidator
	logger *slog.Logger

	submitting atomic.Bool

	mu        sync.Mutex
	sessionID string
	draft     *Draft
	state     State
	confirmed map[int64]library.Loan
	receipt   *Receipt
}

// Option configures a Flow.
type Option func(*Flow)

// WithClock replaces time.Now for the draft's date checks.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.draft = NewDraft(now) }
}

// WithLogger sets the flow's logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// New starts a checkout session. cache may be nil.
func New(c *cart.Cart, loans LoanCreator, cache Invalidator, opts ...Option) (*Flow, error) {
	f := &Flow{
		cart:   c,
		loans:  loans,
		cache:  cache,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		draft:  NewDraft(nil),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.reset(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Flow) reset() error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate checkout session id: %w", err)
	}
	f.sessionID = "co-" + id
	f.state = StateIdle
	f.confirmed = make(map[int64]library.Loan)
	f.receipt = nil
	f.draft = NewDraft(f.draft.clock)
	return nil
}

// Reset starts a new session, forgetting confirmed items and the draft.
func (f *Flow) Reset() error {
	if f.submitting.Load() {
		return ErrSubmissionInProgress
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reset()
}

// SessionID identifies this checkout session in idempotency keys.
func (f *Flow) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

// State reports where the session is. Idle and ReadyToSubmit are derived from
// the cart and the consents each time.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Flow) stateLocked() State {
	switch f.state {
	case StateSubmitting, StateCompleted, StateFailed:
		return f.state
	}
	if f.cart.Len() > 0 && f.draft.AllAgreed() {
		return StateReadyToSubmit
	}
	return StateIdle
}

// Draft helpers. Changing the form after a failure returns the flow to Idle or
// ReadyToSubmit.

func (f *Flow) SetDays(days int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edit(func() error { return f.draft.SetDays(days) })
}

func (f *Flow) SetBorrowDate(date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edit(func() error { return f.draft.SetBorrowDate(date) })
}

func (f *Flow) Agree(a Agreement, agreed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edit(func() error { return f.draft.Agree(a, agreed) })
}

func (f *Flow) edit(fn func() error) error {
	if f.state == StateSubmitting {
		return ErrSubmissionInProgress
	}
	if err := fn(); err != nil {
		return err
	}
	if f.state == StateFailed {
		f.state = StateIdle
	}
	return nil
}

// Days, BorrowDate, ReturnDate and AllAgreed read the draft.
func (f *Flow) Days() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Days()
}

func (f *Flow) BorrowDate() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.BorrowDate()
}

func (f *Flow) ReturnDate() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.ReturnDate()
}

func (f *Flow) AllAgreed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.AllAgreed()
}

// Receipt returns the receipt of a completed session.
func (f *Flow) Receipt() (Receipt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receipt == nil {
		return Receipt{}, false
	}
	return *f.receipt, true
}

// Submit requests one loan per distinct cart line, concurrently, and waits for
// all of them. It is rejected without any request when the session already
// completed (call Reset first), the cart is empty, a consent is missing, the
// borrow date has passed, or another Submit is running. When every request
// succeeds the cart is cleared. Otherwise the cart is left as it was, the
// result is a *SubmitError, and books confirmed by this session are skipped
// when Submit is called again.
func (f *Flow) Submit(ctx context.Context) (Receipt, error) {
	if !f.submitting.CompareAndSwap(false, true) {
		return Receipt{}, ErrSubmissionInProgress
	}
	defer f.submitting.Store(false)

	items := f.cart.Items()

	f.mu.Lock()
	if f.state == StateCompleted {
		f.mu.Unlock()
		return Receipt{}, ErrSessionCompleted
	}
	if len(items) == 0 {
		f.mu.Unlock()
		return Receipt{}, ErrEmptyCart
	}
	if !f.draft.AllAgreed() {
		f.mu.Unlock()
		return Receipt{}, ErrAgreementsRequired
	}
	if err := f.draft.Check(); err != nil {
		f.mu.Unlock()
		return Receipt{}, err
	}
	f.state = StateSubmitting
	sessionID := f.sessionID
	days := f.draft.Days()
	borrowDate, returnDate := f.draft.BorrowDate(), f.draft.ReturnDate()
	var pending []cart.LineItem
	for _, it := range items {
		if _, ok := f.confirmed[it.Book.ID]; !ok {
			pending = append(pending, it)
		}
	}
	f.mu.Unlock()

	f.logger.Info("submitting checkout",
		"session", sessionID,
		"items", len(items),
		"pending", len(pending),
		"days", days,
	)

	loans := make([]library.Loan, len(pending))
	errs := make([]error, len(pending))
	var g errgroup.Group
	for i, it := range pending {
		i, it := i, it
		g.Go(func() error {
			key := sessionID + ":" + strconv.FormatInt(it.Book.ID, 10)
			loans[i], errs[i] = f.loans.Create(
				apiclient.WithIdempotencyKey(ctx, key),
				gateway.LoanRequest{BookID: it.Book.ID, Days: days},
			)
			// Each request stands alone; one failure must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()

	var failures []ItemFailure
	created := 0
	for i, it := range pending {
		if errs[i] != nil {
			failures = append(failures, ItemFailure{Book: it.Book, Err: errs[i]})
			continue
		}
		f.confirmed[it.Book.ID] = loans[i]
		created++
	}

	if created > 0 && f.cache != nil {
		f.cache.Invalidate(query.ResourceLoans)
	}

	if len(failures) > 0 {
		f.state = StateFailed
		err := &SubmitError{Failures: failures, Confirmed: len(items) - len(failures), Total: len(items)}
		f.logger.Warn("checkout failed",
			"session", sessionID,
			"failed", len(failures),
			"confirmed", err.Confirmed,
			"error", err,
		)
		return Receipt{}, err
	}

	f.cart.Clear(ctx)
	f.state = StateCompleted

	receipt := Receipt{
		SessionID:  sessionID,
		FirstBook:  items[0].Book,
		BorrowDate: borrowDate,
		ReturnDate: returnDate,
	}
	for _, it := range items {
		receipt.Loans = append(receipt.Loans, f.confirmed[it.Book.ID])
	}
	f.receipt = &receipt
	f.logger.Info("checkout completed", "session", sessionID, "loans", len(receipt.Loans))
	return receipt, nil
}
