package gateway

import (
	"context"
	"time"

	"library-storefront/apiclient"
	"library-storefront/library"
	"library-storefront/validation"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login is the data returned by a successful sign-in. ExpiresAt is zero when the
// server leaves expiry to the token itself.
type Login struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      library.User `json:"user"`
}

// Auth wraps sign-in.
type Auth struct {
	c *apiclient.Client
	v *validation.Validator
}

func (a *Auth) Login(ctx context.Context, creds Credentials) (Login, error) {
	var out Login
	if err := a.v.Validate("auth.login", creds); err != nil {
		return out, err
	}
	err := a.c.Post(ctx, "auth.login", "/auth/login", creds, &out)
	return out, err
}
