package checkout

import "library-storefront/apiclient"

// BorrowFailureMessage is the user-facing text for a rejected loan request.
func BorrowFailureMessage(err error) string {
	switch apiclient.KindOf(err) {
	case apiclient.KindAlreadyBorrowed:
		return "You already have this book and have not returned it. Return it before borrowing it again."
	case apiclient.KindNotAvailable:
		return "This book is not available right now. Try again later or choose another book."
	case apiclient.KindQuotaExceeded:
		return "You have reached the maximum number of books you can borrow. Return a book first."
	case apiclient.KindUnauthorized:
		return "Your session has expired. Log in again to borrow books."
	}
	if msg := apiclient.MessageOf(err); msg != "" {
		return "Could not borrow the book: " + msg
	}
	return "Could not borrow the book."
}
