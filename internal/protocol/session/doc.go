// Package session owns connection-level helpers around the frame codec.
//
// Ownership boundary:
// - Conn: one buffered stream shared by High Tension Messages and
//   newline-delimited Simple Text Messages
// - context cancellation and per-operation deadlines
// - dial/listen with optional TLS and retry backoff
//
// The frame package never times out; deadlines are applied here on the
// underlying net.Conn.
package session
