package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one cached resource: a path such as books/detail/7 plus optional
// filter parameters. Keys with the same path and parameters always render to
// the same string, whatever order the parameters were added in.
type Key struct {
	parts  []string
	params map[string]string
}

// NewKey returns a key for the given path parts.
func NewKey(parts ...string) Key {
	return Key{parts: append([]string(nil), parts...)}
}

// ID appends a numeric path part.
func (k Key) ID(id int64) Key {
	return k.Append(strconv.FormatInt(id, 10))
}

// Append returns a copy of k with more path parts.
func (k Key) Append(parts ...string) Key {
	out := Key{parts: make([]string, 0, len(k.parts)+len(parts)), params: k.params}
	out.parts = append(out.parts, k.parts...)
	out.parts = append(out.parts, parts...)
	return out
}

// With returns a copy of k with one parameter set. Empty values are dropped so an
// unset filter and a missing filter share a key.
func (k Key) With(name string, value any) Key {
	var s string
	switch v := value.(type) {
	case string:
		s = strings.TrimSpace(v)
	case int:
		if v != 0 {
			s = strconv.Itoa(v)
		}
	case int64:
		if v != 0 {
			s = strconv.FormatInt(v, 10)
		}
	case bool:
		if v {
			s = "true"
		}
	case nil:
	default:
		s = strings.TrimSpace(fmt.Sprint(v))
	}

	params := make(map[string]string, len(k.params)+1)
	for n, v := range k.params {
		params[n] = v
	}
	if s == "" {
		delete(params, name)
	} else {
		params[name] = s
	}
	return Key{parts: k.parts, params: params}
}

// WithValues merges url query values, taking the first value of each name.
func (k Key) WithValues(values url.Values) Key {
	for name, vs := range values {
		if len(vs) > 0 {
			k = k.With(name, vs[0])
		}
	}
	return k
}

// HasPrefix reports whether prefix's path is a leading part of k's path and
// every parameter of prefix is set to the same value in k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.parts) > len(k.parts) {
		return false
	}
	for i, p := range prefix.parts {
		if k.parts[i] != p {
			return false
		}
	}
	for name, v := range prefix.params {
		if k.params[name] != v {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(k.parts, "/"))
	if len(k.params) == 0 {
		return b.String()
	}
	names := make([]string, 0, len(k.params))
	for n := range k.params {
		names = append(names, n)
	}
	sort.Strings(names)
	for i, n := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(n))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(k.params[n]))
	}
	return b.String()
}
