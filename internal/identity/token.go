// Package identity acquires the short-lived bearer tokens a sync run needs:
// one from the host-local managed identity endpoint for the secret store and
// one from the destination's OAuth authority. Tokens live only in memory and
// only for the attempt that acquired them.
package identity

import (
	"errors"
	"time"
)

// Domain names the trust domain a token was issued for.
type Domain string

const (
	DomainLocalIdentity Domain = "local-identity"
	DomainSecretStore   Domain = "secret-store"
	DomainDestination   Domain = "destination"
)

// ErrTokenExpired is returned instead of handing out a token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// Token is a bearer credential scoped to one trust domain.
type Token struct {
	Value     string
	Domain    Domain
	ExpiresOn time.Time
}

// Valid reports whether the token can still be presented at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresOn)
}

// Bearer renders the Authorization header value.
func (t Token) Bearer() string {
	return "Bearer " + t.Value
}

// String keeps token values out of logs.
func (t Token) String() string {
	return string(t.Domain) + " token [REDACTED]"
}
