// Package auth implements OAuth 1.0a HMAC-SHA1 request signing: parameter
// canonicalization, signature base string assembly, and Authorization
// header rendering.
package auth
