// Package smtp applies the inbox policy to SMTP sessions served by go-smtp:
// authentication, sender blacklist, recipient whitelist, parsing and commit.
package smtp

import (
	"crypto/subtle"
)

// Authenticator checks SMTP AUTH credentials against a single configured identity.
type Authenticator struct {
	username string
	password string
}

// NewAuthenticator creates an Authenticator with the given credentials.
// If either is empty, authentication is disabled.
func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{
		username: username,
		password: password,
	}
}

// Enabled returns true if authentication credentials are configured.
func (a *Authenticator) Enabled() bool {
	return a.username != "" && a.password != ""
}

// Verify compares the credentials in constant time. It fails when
// authentication is disabled.
func (a *Authenticator) Verify(username, password string) error {
	if !a.Enabled() {
		return ErrAuthenticationFailed
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	if userOK&passOK != 1 {
		return ErrAuthenticationFailed
	}
	return nil
}
