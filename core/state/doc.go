// Package state keeps the per-actor conversation context used by the flow engine.
// Contexts are keyed by the chat platform user id, persisted as an opaque JSON blob
// through a Repository and resolved to an internal identity before any access.
package state
