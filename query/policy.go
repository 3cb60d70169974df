package query

import (
	"errors"
	"time"

	"library-storefront/apiclient"
)

// Policy controls how long an entry stays fresh, how long an unused entry is
// kept, and how failed fetches are retried.
type Policy struct {
	Name string

	// StaleTime is how long a successful result is served without a refetch.
	StaleTime time.Duration
	// GCTime is how long an entry nobody reads is kept before Sweep evicts it.
	GCTime time.Duration

	// Retries is the number of extra attempts after the first failure.
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Terminal, when set, marks additional errors as not worth retrying.
	Terminal func(error) bool
}

const (
	defaultRetries   = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Policies per resource class.
var (
	Default = Policy{
		Name:      "default",
		StaleTime: 0,
		GCTime:    5 * time.Minute,
		Retries:   defaultRetries,
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
	}

	Categories = Policy{
		Name:      "categories",
		StaleTime: 5 * time.Minute,
		GCTime:    10 * time.Minute,
		Retries:   3,
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
	}

	BookList = Default.named("books.list", 3*time.Minute, 10*time.Minute)

	BookDetail = Default.named("books.detail", 5*time.Minute, 10*time.Minute)

	Search = Default.named("search", 2*time.Minute, 5*time.Minute)

	Profile = Default.named("profile", 5*time.Minute, 10*time.Minute).terminalOn(
		apiclient.ErrUnauthorized, apiclient.ErrNotFound,
	)

	MyActivity = Default.named("me.activity", 2*time.Minute, 5*time.Minute).terminalOn(
		apiclient.ErrUnauthorized,
	)

	// Admin views change under other admins' hands, so they are always refetched.
	Admin = Default.named("admin", 30*time.Second, 5*time.Minute)
)

func (p Policy) named(name string, stale, gc time.Duration) Policy {
	p.Name = name
	p.StaleTime = stale
	p.GCTime = gc
	return p
}

func (p Policy) terminalOn(targets ...error) Policy {
	p.Terminal = func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
	return p
}

// WithDelays returns a copy of p with different backoff bounds.
func (p Policy) WithDelays(base, ceiling time.Duration) Policy {
	p.BaseDelay = base
	p.MaxDelay = ceiling
	return p
}

// ShouldRetry reports whether a fetch that has failed attempt times (counting
// from 1) with err should be tried again. Terminal API errors never are,
// whatever the policy says.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt > p.Retries {
		return false
	}
	if apiclient.IsTerminal(err) {
		return false
	}
	if p.Terminal != nil && p.Terminal(err) {
		return false
	}
	return true
}

// Backoff returns the delay before retry number attempt (counting from 1):
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = defaultMaxDelay
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
