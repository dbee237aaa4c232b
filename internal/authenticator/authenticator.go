// Package authenticator declares the middleware surface the router expects
// from the authentication layer.
package authenticator

import "net/http"

// Authenticator splits authentication into two composable steps:
// DecodeIdentity extracts an optional identity from the request,
// RequireIdentity rejects requests that carry none.
type Authenticator interface {
	DecodeIdentity(h http.Handler) http.Handler
	RequireIdentity(h http.Handler) http.Handler
}
