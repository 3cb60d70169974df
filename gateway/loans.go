package gateway

import (
	"context"

	"library-storefront/apiclient"
	"library-storefront/library"
	"library-storefront/validation"
)

// BorrowDurations are the loan lengths, in days, the API accepts.
var BorrowDurations = []int{3, 5, 10}

// LoanRequest is the body of POST /loans.
type LoanRequest struct {
	BookID int64 `json:"bookId" validate:"required,gt=0"`
	Days   int   `json:"days" validate:"oneof=3 5 10"`
}

// Loans creates and returns loans for the signed-in user.
type Loans struct {
	c *apiclient.Client
	v *validation.Validator
}

// Create requests one loan. The server decides availability and quota; their
// failures surface as business-rule error kinds.
func (l *Loans) Create(ctx context.Context, req LoanRequest) (library.Loan, error) {
	var loan library.Loan
	if err := l.v.Validate("loans.create", req); err != nil {
		return loan, err
	}
	err := l.c.Post(ctx, "loans.create", "/loans", req, &loan)
	return loan, err
}

// Return asks the server to close a loan.
func (l *Loans) Return(ctx context.Context, loanID int64) (library.Loan, error) {
	var loan library.Loan
	err := l.c.Patch(ctx, "loans.return", idPath("/loans", loanID, "return"), nil, &loan)
	return loan, err
}
