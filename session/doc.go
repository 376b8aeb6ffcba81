// Package session manages the OAuth 1.0a credential lifecycle: request
// token issuance, verifier exchange, renewal, revocation, and signing of
// authenticated calls.
package session
