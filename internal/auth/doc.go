// Package auth inspects the bearer token a session presents to the server.
//
// The client never holds the signing key, so tokens are parsed without
// signature verification. Inspection only exists to fail fast on a token
// that has already expired and to log who the session is connecting as.
package auth
