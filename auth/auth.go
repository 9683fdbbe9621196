// Package auth implements the pluggable connection-open validator
// consumed by the chat core at the WebSocket upgrade. None of the
// variants are wired into the transport directly; ChatServer holds an
// Authenticator and calls Validate once per upgrade.
package auth

import "net/http"

// Request carries everything an Authenticator variant might need from
// the WebSocket upgrade: query parameters and headers (which also expose
// cookies via http.Request.Cookies-style parsing on the caller side).
type Request struct {
	Query   map[string]string
	Headers http.Header
}

func (r Request) Header(name string) string {
	return r.Headers.Get(name)
}

func (r Request) Cookie(name string) (string, bool) {
	for _, c := range (&http.Request{Header: r.Headers}).Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Authenticator validates a connection-open request. Returning false
// causes ChatServer to close the connection with UNAUTHORIZED.
type Authenticator interface {
	Validate(req Request) bool
}

// NoneAuthenticator always succeeds; the default when no auth is
// configured.
type NoneAuthenticator struct{}

func (NoneAuthenticator) Validate(Request) bool { return true }
