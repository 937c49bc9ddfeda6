// Package session provides SessionStore implementations: a volatile
// in-memory store, a SQLite-backed persistent store and a Redis-backed
// store for shared deployments. Sessions are keyed by the
// (application, user, session) triple.
package session
