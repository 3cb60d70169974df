package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"library-storefront/apiclient"
	"library-storefront/cart"
	"library-storefront/gateway"
	"library-storefront/library"
	"library-storefront/query"
	"library-storefront/storage"
)

type MockLoanCreator struct {
	mock.Mock
}

func (m *MockLoanCreator) Create(ctx context.Context, req gateway.LoanRequest) (library.Loan, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(library.Loan), args.Error(1)
}

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(r query.Resource, ids ...int64) int {
	args := m.Called(r)
	return args.Int(0)
}

func today() time.Time {
	return time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
}

func newCart(t *testing.T, ids ...int64) *cart.Cart {
	t.Helper()
	c := cart.New(storage.NewMemory(), nil)
	for _, id := range ids {
		c.Add(context.Background(), library.BookSnapshot{ID: id, Title: "Book " + string(rune('A'+id))})
	}
	return c
}

func agreeAll(t *testing.T, f *Flow) {
	t.Helper()
	for _, a := range Agreements {
		require.NoError(t, f.Agree(a, true))
	}
}

func withKey(ctx context.Context) bool {
	return apiclient.IdempotencyKey(ctx) != ""
}

func TestDraftReturnDate(t *testing.T) {
	d := NewDraft(today)
	assert.Equal(t, DefaultDays, d.Days())
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), d.BorrowDate())

	require.NoError(t, d.SetDays(5))
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), d.ReturnDate())

	require.NoError(t, d.SetDays(10))
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), d.ReturnDate())

	require.NoError(t, d.SetBorrowDate(time.Date(2025, 1, 30, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), d.ReturnDate())
}

func TestDraftRejectsInvalidInput(t *testing.T) {
	d := NewDraft(today)
	assert.ErrorIs(t, d.SetDays(4), ErrInvalidDuration)
	assert.Equal(t, DefaultDays, d.Days())

	assert.ErrorIs(t, d.SetBorrowDate(today().AddDate(0, 0, -1)), ErrBorrowDateInPast)
	assert.NoError(t, d.SetBorrowDate(today()))

	assert.ErrorIs(t, d.Agree("newsletter", true), ErrUnknownAgreement)
	require.NoError(t, d.Agree(AgreementTerms, true))
	assert.False(t, d.AllAgreed())
	require.NoError(t, d.Agree(AgreementReturnPolicy, true))
	assert.True(t, d.AllAgreed())
}

func TestSubmitGating(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		loans := new(MockLoanCreator)
		f, err := New(newCart(t), loans, nil, WithClock(today))
		require.NoError(t, err)
		agreeAll(t, f)

		_, err = f.Submit(ctx)
		assert.ErrorIs(t, err, ErrEmptyCart)
		assert.Equal(t, StateIdle, f.State())
		loans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing agreement", func(t *testing.T) {
		loans := new(MockLoanCreator)
		f, err := New(newCart(t, 1), loans, nil, WithClock(today))
		require.NoError(t, err)
		require.NoError(t, f.Agree(AgreementTerms, true))
		assert.Equal(t, StateIdle, f.State())

		_, err = f.Submit(ctx)
		assert.ErrorIs(t, err, ErrAgreementsRequired)
		loans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestSubmitOneCallPerDistinctItem(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, 1, 2, 2, 3, 3, 3)
	require.Equal(t, 6, c.TotalItems())

	loans := new(MockLoanCreator)
	for _, id := range []int64{1, 2, 3} {
		loans.On("Create", mock.MatchedBy(withKey), gateway.LoanRequest{BookID: id, Days: 5}).
			Return(library.Loan{ID: 100 + id, BookID: id}, nil).Once()
	}
	cache := new(MockInvalidator)
	cache.On("Invalidate", query.ResourceLoans).Return(3).Once()

	f, err := New(c, loans, cache, WithClock(today))
	require.NoError(t, err)
	require.NoError(t, f.SetDays(5))
	agreeAll(t, f)
	assert.Equal(t, StateReadyToSubmit, f.State())

	receipt, err := f.Submit(ctx)
	require.NoError(t, err)

	loans.AssertExpectations(t)
	loans.AssertNumberOfCalls(t, "Create", 3)
	cache.AssertExpectations(t)
	assert.Equal(t, StateCompleted, f.State())
	assert.Zero(t, c.TotalItems())
	assert.Equal(t, int64(1), receipt.FirstBook.ID)
	assert.Len(t, receipt.Loans, 3)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), receipt.ReturnDate)

	stored, ok := f.Receipt()
	require.True(t, ok)
	assert.Equal(t, receipt.SessionID, stored.SessionID)
}

func TestSubmitAfterCompletionNeedsReset(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, 1)
	loans := new(MockLoanCreator)
	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 1, Days: DefaultDays}).
		Return(library.Loan{ID: 101, BookID: 1}, nil).Once()

	f, err := New(c, loans, nil, WithClock(today))
	require.NoError(t, err)
	agreeAll(t, f)
	first, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, f.State())

	c.Add(ctx, library.BookSnapshot{ID: 1, Title: "Book B"})
	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, ErrSessionCompleted)
	assert.Equal(t, 1, c.Len(), "cart is untouched")
	loans.AssertNumberOfCalls(t, "Create", 1)

	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 1, Days: DefaultDays}).
		Return(library.Loan{ID: 102, BookID: 1}, nil).Once()
	require.NoError(t, f.Reset())
	agreeAll(t, f)
	second, err := f.Submit(ctx)
	require.NoError(t, err)

	loans.AssertNumberOfCalls(t, "Create", 2)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, int64(102), second.Loans[0].ID)
	assert.Zero(t, c.Len())
}

func TestSubmitRejectsBorrowDateThatHasPassed(t *testing.T) {
	now := today()
	clock := func() time.Time { return now }
	loans := new(MockLoanCreator)
	c := newCart(t, 1)

	f, err := New(c, loans, nil, WithClock(clock))
	require.NoError(t, err)
	agreeAll(t, f)

	// The session stays open past midnight.
	now = now.AddDate(0, 0, 1)
	_, err = f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBorrowDateInPast)
	loans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, f.SetBorrowDate(now))
	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 1, Days: DefaultDays}).
		Return(library.Loan{ID: 7, BookID: 1}, nil).Once()
	receipt, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, library.Date(now), receipt.BorrowDate)
}

func TestSubmitPartialFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, 1, 2, 3)

	unavailable := &apiclient.Error{Op: "loans.create", Status: 400, Kind: apiclient.KindNotAvailable, Message: "Book is not available"}
	loans := new(MockLoanCreator)
	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 1, Days: 3}).Return(library.Loan{ID: 11, BookID: 1}, nil).Once()
	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 2, Days: 3}).Return(library.Loan{}, unavailable).Once()
	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 3, Days: 3}).Return(library.Loan{ID: 13, BookID: 3}, nil).Once()
	cache := new(MockInvalidator)
	cache.On("Invalidate", query.ResourceLoans).Return(1)

	f, err := New(c, loans, cache, WithClock(today))
	require.NoError(t, err)
	agreeAll(t, f)

	_, err = f.Submit(ctx)
	require.Error(t, err)

	var submitErr *SubmitError
	require.True(t, errors.As(err, &submitErr))
	require.Len(t, submitErr.Failures, 1)
	assert.Equal(t, int64(2), submitErr.Failures[0].Book.ID)
	assert.Equal(t, apiclient.KindNotAvailable, submitErr.Failures[0].Kind())
	assert.Equal(t, 2, submitErr.Confirmed)
	assert.True(t, errors.Is(err, unavailable))
	assert.Contains(t, submitErr.UserMessage(), "not available right now")

	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, 3, c.Len(), "cart is not cleared on partial failure")
	_, ok := f.Receipt()
	assert.False(t, ok)
	cache.AssertCalled(t, "Invalidate", query.ResourceLoans)

	// Retrying only re-sends the book that failed.
	loans.On("Create", mock.Anything, gateway.LoanRequest{BookID: 2, Days: 3}).Return(library.Loan{ID: 12, BookID: 2}, nil).Once()
	receipt, err := f.Submit(ctx)
	require.NoError(t, err)
	loans.AssertNumberOfCalls(t, "Create", 4)
	assert.Equal(t, StateCompleted, f.State())
	assert.Zero(t, c.Len())
	assert.Equal(t, []int64{11, 12, 13}, []int64{receipt.Loans[0].ID, receipt.Loans[1].ID, receipt.Loans[2].ID})
}

func TestSubmitUsesStableIdempotencyKeys(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, 7)

	var keys []string
	var mu sync.Mutex
	loans := new(MockLoanCreator)
	loans.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			keys = append(keys, apiclient.IdempotencyKey(args.Get(0).(context.Context)))
		}).
		Return(library.Loan{}, &apiclient.Error{Kind: apiclient.KindNetwork}).Twice()

	f, err := New(c, loans, nil, WithClock(today))
	require.NoError(t, err)
	agreeAll(t, f)

	_, err = f.Submit(ctx)
	require.Error(t, err)
	_, err = f.Submit(ctx)
	require.Error(t, err)

	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, f.SessionID()+":7", keys[0])
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	loans := new(MockLoanCreator)
	loans.On("Create", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(library.Loan{ID: 1, BookID: 1}, nil).Once()

	f, err := New(c, loans, nil, WithClock(today))
	require.NoError(t, err)
	agreeAll(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(ctx)
		done <- err
	}()

	<-started
	assert.Equal(t, StateSubmitting, f.State())
	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.ErrorIs(t, f.SetDays(5), ErrSubmissionInProgress)

	close(release)
	require.NoError(t, <-done)
	loans.AssertNumberOfCalls(t, "Create", 1)
}

func TestEditingAfterFailureLeavesFailedState(t *testing.T) {
	c := newCart(t, 1)
	loans := new(MockLoanCreator)
	loans.On("Create", mock.Anything, mock.Anything).
		Return(library.Loan{}, &apiclient.Error{Kind: apiclient.KindQuotaExceeded}).Once()

	f, err := New(c, loans, nil, WithClock(today))
	require.NoError(t, err)
	agreeAll(t, f)
	_, err = f.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, f.State())

	require.NoError(t, f.SetDays(10))
	assert.Equal(t, StateReadyToSubmit, f.State())
}

func TestBorrowFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&apiclient.Error{Kind: apiclient.KindAlreadyBorrowed}, "Return it before borrowing it again."},
		{&apiclient.Error{Kind: apiclient.KindNotAvailable}, "not available right now"},
		{&apiclient.Error{Kind: apiclient.KindQuotaExceeded}, "maximum number of books"},
		{&apiclient.Error{Kind: apiclient.KindServer, Message: "database locked"}, "Could not borrow the book: database locked"},
	}
	for _, tt := range tests {
		assert.Contains(t, BorrowFailureMessage(tt.err), tt.want)
	}
}
