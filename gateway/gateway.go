// Package gateway holds one typed wrapper per remote resource. Gateways only shape
// requests and responses; policy (caching, retry, invalidation) lives in package query.
package gateway

import (
	"net/url"
	"strconv"

	"library-storefront/apiclient"
	"library-storefront/validation"
)

// Gateway groups the resource gateways built on one API client.
type Gateway struct {
	Books      *Books
	Authors    *Authors
	Categories *Categories
	Loans      *Loans
	Me         *Me
	Auth       *Auth
	Admin      *Admin
}

// New wires every gateway to c. unsupported lists admin capabilities the deployed
// API does not implement.
func New(c *apiclient.Client, v *validation.Validator, unsupported ...Capability) *Gateway {
	if v == nil {
		v = validation.New()
	}
	return &Gateway{
		Books:      &Books{c: c},
		Authors:    &Authors{c: c},
		Categories: &Categories{c: c},
		Loans:      &Loans{c: c, v: v},
		Me:         &Me{c: c, v: v},
		Auth:       &Auth{c: c, v: v},
		Admin:      newAdmin(c, v, unsupported),
	}
}

// Paging selects one page of a listing. Zero values let the server choose.
type Paging struct {
	Page  int
	Limit int
}

func (p Paging) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func idPath(prefix string, id int64, suffix ...string) string {
	p := prefix + "/" + idString(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
