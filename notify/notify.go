// Package notify shows user-facing notifications for command results and
// failures. Repeats of a sign-in or connectivity failure that arrive in quick
// succession are dropped; every other failure is always shown.
package notify

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"library-storefront/apiclient"
)

// DefaultWindow is how long a repeatable failure class stays muted after it was shown.
const DefaultWindow = 5 * time.Second

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "ok"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notifier writes notifications to w. It is safe for concurrent use.
type Notifier struct {
	mu     sync.Mutex
	w      io.Writer
	window time.Duration
	now    func() time.Time
	shown  map[string]time.Time
	muted  []error
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithWindow changes the duplicate suppression window. Zero disables suppression.
func WithWindow(d time.Duration) Option {
	return func(n *Notifier) { n.window = d }
}

// WithMuted marks errors matching any of targets (errors.Is) as repeatable, like
// an unauthorized API error.
func WithMuted(targets ...error) Option {
	return func(n *Notifier) { n.muted = append(n.muted, targets...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

func New(w io.Writer, opts ...Option) *Notifier {
	n := &Notifier{
		w:      w,
		window: DefaultWindow,
		now:    time.Now,
		shown:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) Success(format string, args ...any) {
	n.write(LevelSuccess, fmt.Sprintf(format, args...))
}

func (n *Notifier) Info(format string, args ...any) {
	n.write(LevelInfo, fmt.Sprintf(format, args...))
}

// Error shows the message for err. A repeatable failure is skipped when the same
// class was shown within the window. It reports whether anything was written.
func (n *Notifier) Error(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := n.repeatable(err); ok && n.window > 0 {
		n.mu.Lock()
		now := n.now()
		if last, ok := n.shown[class]; ok && now.Sub(last) < n.window {
			n.mu.Unlock()
			return false
		}
		n.shown[class] = now
		n.mu.Unlock()
	}

	n.write(LevelError, Message(err))
	return true
}

// repeatable reports whether err is a failure that recurs on every call until
// the user signs in or the connection comes back, and the class it is muted under.
func (n *Notifier) repeatable(err error) (string, bool) {
	for _, target := range n.muted {
		if errors.Is(err, target) {
			return "muted:" + target.Error(), true
		}
	}
	var um userMessager
	if errors.As(err, &um) {
		return "", false
	}
	switch apiclient.KindOf(err) {
	case apiclient.KindUnauthorized, apiclient.KindNetwork, apiclient.KindTimeout,
		apiclient.KindRateLimited, apiclient.KindServer:
		return Class(err), true
	}
	return "", false
}

func (n *Notifier) write(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "[%s] %s\n", level, msg)
}

// Class groups errors for duplicate suppression: API errors by kind, anything
// else by its text.
func Class(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		return "message:" + um.UserMessage()
	}
	if kind := apiclient.KindOf(err); kind != apiclient.KindUnknown {
		return "kind:" + kind.String()
	}
	return "message:" + err.Error()
}

type userMessager interface {
	UserMessage() string
}

// Message maps err to the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}

	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case apiclient.KindValidation:
		if apiErr.Message != "" {
			return "Please check your input: " + apiErr.Message + "."
		}
		return "Please check your input."
	case apiclient.KindUnauthorized:
		return "Your session has expired or you are not logged in. Please log in."
	case apiclient.KindForbidden:
		return "You do not have permission to do that."
	case apiclient.KindNotFound:
		return "Not found" + suffix(apiErr.Message)
	case apiclient.KindAlreadyBorrowed:
		return "You already have this book and have not returned it. Return it before borrowing it again."
	case apiclient.KindNotAvailable:
		return "This book is not available right now."
	case apiclient.KindQuotaExceeded:
		return "You have reached the maximum number of books you can borrow."
	case apiclient.KindDuplicate:
		return "That name is already taken" + suffix(apiErr.Message)
	case apiclient.KindHasDependents:
		return "It cannot be deleted while other records still refer to it" + suffix(apiErr.Message)
	case apiclient.KindNotImplemented:
		return "This feature is not supported by the server."
	case apiclient.KindNetwork, apiclient.KindTimeout:
		return "Could not reach the library server. Check your connection and try again."
	case apiclient.KindRateLimited:
		return "Too many requests. Wait a moment and try again."
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}

func suffix(serverMsg string) string {
	if serverMsg == "" {
		return "."
	}
	return ": " + serverMsg
}
