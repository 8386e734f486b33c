// Package sas issues short-lived read tokens for blob storage assets.
//
// Two interchangeable issuers are provided: LocalIssuer signs SAS tokens in-process
// from a storage account connection string, and RemoteIssuer delegates to an external
// signing service over HTTP. Every issuance failure wraps ErrUnavailable so callers can
// treat them uniformly.
package sas

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable classifies every issuance failure: network errors, non-200 answers,
// malformed payloads and unresolvable accounts.
var ErrUnavailable = errors.New("signed access unavailable")

// Token is a signed access token and the absolute UTC instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer produces a token for a scope. The scope meaning depends on the issuer:
// a blob name for LocalIssuer, a collection id or account/container pair for RemoteIssuer.
type Issuer interface {
	Issue(ctx context.Context, scope string) (*Token, error)
}

// IssuerFunc adapts a function to the Issuer interface.
type IssuerFunc func(ctx context.Context, scope string) (*Token, error)

func (f IssuerFunc) Issue(ctx context.Context, scope string) (*Token, error) {
	return f(ctx, scope)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

func unavailableErr(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, msg, err)
}
