package checkout

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"library-storefront/gateway"
	"library-storefront/library"
)

// DefaultDays is the borrow duration a new draft starts with.
const DefaultDays = 3

// Agreement is a consent the user must give before borrowing.
type Agreement string

const (
	AgreementTerms        Agreement = "terms"
	AgreementReturnPolicy Agreement = "return_on_time"
)

// Agreements is the fixed set of consents checked by AllAgreed.
var Agreements = []Agreement{AgreementTerms, AgreementReturnPolicy}

var (
	ErrInvalidDuration  = errors.New("checkout: borrow duration must be 3, 5 or 10 days")
	ErrBorrowDateInPast = errors.New("checkout: borrow date is before today")
	ErrUnknownAgreement = errors.New("checkout: unknown agreement")
)

// Draft is the loan form: duration, borrow date and consents. The return date is
// never stored; it is derived from the other two on every read.
type Draft struct {
	days       int
	borrowDate time.Time
	agreed     map[Agreement]bool
	clock      func() time.Time
}

// NewDraft returns a draft borrowing today for DefaultDays with nothing agreed.
func NewDraft(clock func() time.Time) *Draft {
	if clock == nil {
		clock = time.Now
	}
	return &Draft{
		days:       DefaultDays,
		borrowDate: library.Date(clock()),
		agreed:     make(map[Agreement]bool, len(Agreements)),
		clock:      clock,
	}
}

func (d *Draft) Days() int { return d.days }

// SetDays changes the duration. Only gateway.BorrowDurations are accepted.
func (d *Draft) SetDays(days int) error {
	if !slices.Contains(gateway.BorrowDurations, days) {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, days)
	}
	d.days = days
	return nil
}

func (d *Draft) BorrowDate() time.Time { return d.borrowDate }

// SetBorrowDate changes the first day of the loan. The time of day is dropped and
// dates before today are rejected.
func (d *Draft) SetBorrowDate(date time.Time) error {
	date = library.Date(date.In(d.clock().Location()))
	if date.Before(library.Date(d.clock())) {
		return ErrBorrowDateInPast
	}
	d.borrowDate = date
	return nil
}

// Check reports ErrBorrowDateInPast when the borrow date, valid when it was
// set, is now before today.
func (d *Draft) Check() error {
	if d.borrowDate.Before(library.Date(d.clock())) {
		return ErrBorrowDateInPast
	}
	return nil
}

// ReturnDate is BorrowDate plus Days calendar days.
func (d *Draft) ReturnDate() time.Time {
	return d.borrowDate.AddDate(0, 0, d.days)
}

// Agree sets one consent flag.
func (d *Draft) Agree(a Agreement, agreed bool) error {
	if !slices.Contains(Agreements, a) {
		return fmt.Errorf("%w: %q", ErrUnknownAgreement, a)
	}
	d.agreed[a] = agreed
	return nil
}

func (d *Draft) Agreed(a Agreement) bool { return d.agreed[a] }

// AllAgreed reports whether every consent in Agreements is given.
func (d *Draft) AllAgreed() bool {
	for _, a := range Agreements {
		if !d.agreed[a] {
			return false
		}
	}
	return true
}
