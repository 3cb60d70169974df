package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed API call. It is decided once, when the response is
// decoded, so callers never have to inspect message strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindAlreadyBorrowed
	KindNotAvailable
	KindQuotaExceeded
	KindDuplicate
	KindHasDependents
	KindConflict
	KindNotImplemented
	KindRateLimited
	KindServer
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindNetwork:         "network",
	KindTimeout:         "timeout",
	KindUnauthorized:    "unauthorized",
	KindForbidden:       "forbidden",
	KindNotFound:        "not_found",
	KindValidation:      "validation",
	KindAlreadyBorrowed: "already_borrowed",
	KindNotAvailable:    "not_available",
	KindQuotaExceeded:   "quota_exceeded",
	KindDuplicate:       "duplicate",
	KindHasDependents:   "has_dependents",
	KindConflict:        "conflict",
	KindNotImplemented:  "not_implemented",
	KindRateLimited:     "rate_limited",
	KindServer:          "server",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Terminal reports whether a failure of this kind will fail again on retry.
func (k Kind) Terminal() bool {
	switch k {
	case KindUnauthorized, KindForbidden, KindNotFound, KindValidation,
		KindAlreadyBorrowed, KindNotAvailable, KindQuotaExceeded,
		KindDuplicate, KindHasDependents, KindConflict, KindNotImplemented:
		return true
	default:
		return false
	}
}

// BusinessRule reports whether the kind is a server-side rule conflict.
func (k Kind) BusinessRule() bool {
	switch k {
	case KindAlreadyBorrowed, KindNotAvailable, KindQuotaExceeded, KindDuplicate, KindHasDependents, KindConflict:
		return true
	default:
		return false
	}
}

// Error is returned by every failed Client call.
type Error struct {
	Op      string // Operation: "books.get", "loans.create", ...
	Method  string
	Path    string
	Status  int // 0 when no response was received
	Kind    Kind
	Message string            // server-provided message, if any
	Fields  map[string]string // per-field validation messages
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, "status %d: ", e.Status)
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Terminal reports whether retrying the call is pointless.
func (e *Error) Terminal() bool { return e.Kind.Terminal() }

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t.Op == "" && t.Status == 0 {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinel errors for use with errors.Is.
var (
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotImplemented = &Error{Kind: KindNotImplemented}
)

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// MessageOf returns the server message carried by err, or err's text.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsTerminal reports whether err is a terminal API error.
func IsTerminal(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Terminal()
}

// messageRules map server message fragments to business-rule kinds. They win
// over 4xx status codes because the API reports most rule conflicts as 400.
// Server, timeout and rate-limit statuses are never reclassified by text.
var messageRules = []struct {
	fragments []string
	kind      Kind
}{
	{[]string{"already borrowed", "not returned"}, KindAlreadyBorrowed},
	{[]string{"not available", "unavailable", "out of stock"}, KindNotAvailable},
	{[]string{"exceeded maximum", "maximum number", "borrow limit"}, KindQuotaExceeded},
	{[]string{"already exists", "duplicate"}, KindDuplicate},
	{[]string{"has related", "has dependent", "cannot delete", "still has"}, KindHasDependents},
}

// Classify decides the kind of a failed response from its status and message.
func Classify(status int, message string) Kind {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusNotImplemented:
		return KindNotImplemented
	case status >= 500:
		return KindServer
	}

	lower := strings.ToLower(message)
	for _, rule := range messageRules {
		for _, f := range rule.fragments {
			if strings.Contains(lower, f) {
				return rule.kind
			}
		}
	}

	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusConflict:
		return KindConflict
	default:
		return KindUnknown
	}
}
