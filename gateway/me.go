package gateway

import (
	"context"

	"library-storefront/apiclient"
	"library-storefront/library"
	"library-storefront/validation"
)

// ProfileUpdate is the body of PATCH /me. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Phone string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
}

// Me wraps the endpoints scoped to the signed-in user.
type Me struct {
	c *apiclient.Client
	v *validation.Validator
}

func (m *Me) Profile(ctx context.Context) (library.User, error) {
	var user library.User
	err := m.c.Get(ctx, "me.profile", "/me", nil, &user)
	return user, err
}

func (m *Me) Update(ctx context.Context, in ProfileUpdate) (library.User, error) {
	var user library.User
	if err := m.v.Validate("me.update", in); err != nil {
		return user, err
	}
	err := m.c.Patch(ctx, "me.update", "/me", in, &user)
	return user, err
}

func (m *Me) Loans(ctx context.Context, p Paging) (library.Page[library.Loan], error) {
	var page library.Page[library.Loan]
	err := m.c.Get(ctx, "me.loans", "/me/loans", p.values(), &page)
	return page, err
}

func (m *Me) Reviews(ctx context.Context, p Paging) (library.Page[library.Review], error) {
	var page library.Page[library.Review]
	err := m.c.Get(ctx, "me.reviews", "/me/reviews", p.values(), &page)
	return page, err
}
